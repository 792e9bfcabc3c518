package config

import (
	"errors"
	"slices"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

const (
	GENERAL_CONFIG_KEY = "general-config"
	BROKER_CONFIG_KEY  = "broker-config"
)

// Config is the common shape of every config section.
type Config interface {
	Key() string
	Load() error
	Validate() error
}

type GeneralConfig struct {
	HTTPPort string
	HTTPHost string
	Env      string
	LogLevel string
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load() error {
	gc.HTTPPort = GetEnvOrDefault("HTTP_PORT", "8080")
	gc.HTTPHost = GetEnvOrDefault("HTTP_HOST", "localhost")
	gc.Env = GetEnvOrDefault("ENV", DevEnv)
	gc.LogLevel = GetEnvOrDefault("LOG_LEVEL", "INFO")
	return gc.Validate()
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" || gc.Env == "" {
		return errors.New("invalid server config")
	}
	if !slices.Contains([]string{DevEnv, StagingEnv, ProdEnv}, gc.Env) {
		return errors.New("invalid server env: " + gc.Env)
	}
	return nil
}

// LoadAll loads every section in order and stops at the first failure.
func LoadAll(sections ...Config) error {
	for _, s := range sections {
		if err := s.Load(); err != nil {
			return errors.Join(errors.New(s.Key()), err)
		}
	}
	return nil
}
