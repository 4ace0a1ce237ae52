package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"aegisrt/pkg/logging"
)

const (
	userConfigDir  = ".config/aegisrt"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return filepath.Join(homeDir, userConfigDir)
}

// Load reads config.yaml from configPath, falling back to Default()
// when the file does not exist.
func Load(configPath string) (EngineConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	cfg := Default()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "no config.yaml found at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return EngineConfig{}, fmt.Errorf("reading %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("parsing %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "loaded configuration from %s", configFilePath)
	return cfg, nil
}
