package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"korobok/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "configs/korobok.yaml"
	defaultRunDir     = "/tmp/korobok"
)

// RuntimeConfig holds launcher settings.
type RuntimeConfig struct {
	RunDir            string        `yaml:"runDir"`
	RendezvousTimeout time.Duration `yaml:"rendezvousTimeout"`
}

// DefaultsConfig holds run settings applied when the matching flag is absent.
type DefaultsConfig struct {
	Hostname       string   `yaml:"hostname"`
	SeccompProfile string   `yaml:"seccompProfile"`
	Env            []string `yaml:"env"`
}

// AppConfig holds korobok config.
type AppConfig struct {
	Logger   logger.Config  `yaml:"logger"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads path, or the default location when path is empty. Only
// the default location may be missing.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	if err := loadYAML(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if cfg.Runtime.RunDir == "" {
		cfg.Runtime.RunDir = defaultRunDir
	}
	if cfg.Runtime.RendezvousTimeout < 0 {
		return nil, fmt.Errorf("runtime.rendezvousTimeout must not be negative")
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "warn"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
	return &cfg, nil
}
