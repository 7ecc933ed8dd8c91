package session

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionSharesTransport(t *testing.T) {
	t.Parallel()

	s := New("agent/1.0", 6, time.Minute)
	defer s.Close()

	a := s.Client()
	b := s.Client()
	require.Same(t, a.Transport, b.Transport)
	require.Zero(t, a.Timeout, "downloads must not be capped by a total timeout")
	require.Equal(t, "agent/1.0", s.UserAgent())

	tr, ok := s.Transport().(*http.Transport)
	require.True(t, ok)
	require.Equal(t, 7, tr.MaxConnsPerHost)
	require.Equal(t, time.Minute, tr.ResponseHeaderTimeout)
}

func TestSessionClampsConnections(t *testing.T) {
	t.Parallel()

	s := New("", 0, 0)
	tr := s.Transport().(*http.Transport)
	require.Equal(t, 2, tr.MaxConnsPerHost)
	require.Zero(t, tr.ResponseHeaderTimeout)
}
