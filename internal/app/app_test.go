// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-urg/camera-pdf-scraper/internal/app"
	"github.com/dj-urg/camera-pdf-scraper/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Download.OutputDir = filepath.Join(dir, "pdfs")
	cfg.Logging.ErrorLog = filepath.Join(dir, "errors.log")
	cfg.Logging.Development = false
	return cfg
}

func TestNewApp_Success(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.NewApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a)
	defer a.Close()

	assert.NotNil(t, a.GetLogger())
	assert.NotNil(t, a.GetSession())
	assert.Equal(t, cfg.Download.Concurrency, a.GetConfig().Download.Concurrency)

	parsed, err := uuid.Parse(a.RunID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	info, err := os.Stat(cfg.Download.OutputDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewApp_ErrorLogIsWritten(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.NewApp(context.Background(), cfg)
	require.NoError(t, err)
	a.GetLogger().Error("listing fetch failed")
	a.Close()

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(cfg.Logging.ErrorLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "listing fetch failed")
	assert.Contains(t, string(data), a.RunID())
}

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) {
	return f.id, f.err
}

func TestNewApp_UsesIDGenerator(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.NewApp(context.Background(), cfg, app.WithIDGenerator(fixedIDs{id: "run-42"}))
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "run-42", a.RunID())
}

func TestNewApp_IDGeneratorFailure(t *testing.T) {
	cfg := testConfig(t)

	_, err := app.NewApp(context.Background(), cfg, app.WithIDGenerator(fixedIDs{err: errors.New("entropy exhausted")}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run id")
}

func TestNewApp_BadOutputDir(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.Download.OutputDir = blocker

	_, err := app.NewApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewApp_BadErrorLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.ErrorLog = filepath.Join(t.TempDir(), "missing", "errors.log")

	_, err := app.NewApp(context.Background(), cfg)
	assert.Error(t, err)
}
