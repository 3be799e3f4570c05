// Package config provides a thin wrapper around the shared configuration
// loader in pkg/config, exposing the loaded configuration via AppConfig.
package config

import (
	pkgconfig "github.com/opnet-core/indexer/pkg/config"
)

// AppConfig holds the currently loaded configuration for command line tools.
var AppConfig pkgconfig.Config

// LoadConfig loads the configuration for the given environment name and
// stores it in AppConfig. Errors panic, which is acceptable for CLI
// initialisation where failure should abort startup.
func LoadConfig(env string) {
	cfg, err := pkgconfig.Load(env)
	if err != nil {
		panic(err)
	}
	AppConfig = *cfg
}
