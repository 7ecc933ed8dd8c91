// Package config locates the scraper configuration file in the standard
// search paths.
package config

import (
	"errors"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SearchPaths are consulted in order for scraper.yaml when --config is not given.
var SearchPaths = []string{
	".",
	"/etc/camera-pdf-scraper/",
	"$HOME/.camera-pdf-scraper",
}

// InitConfig looks for a scraper config file on the global Viper instance.
// A missing file is not an error: defaults and SCRAPER_* environment
// variables still apply. It is registered with cobra.OnInitialize.
func InitConfig() {
	viper.SetConfigName("scraper")
	for _, p := range SearchPaths {
		viper.AddConfigPath(p)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			zap.L().Debug("No config file found; using defaults and environment variables")
			return
		}
		zap.L().Error("Error reading config file", zap.Error(err))
		return
	}
	zap.L().Debug("Found config file", zap.String("path", viper.ConfigFileUsed()))
}

// DiscoveredFile returns the config file found by InitConfig, or "".
func DiscoveredFile() string {
	return viper.ConfigFileUsed()
}
