package config

import (
	"fmt"
	"github.com/robfig/cron/v3"
)

type IngestConfig struct {
	// Schedule is a standard 5-field cron spec; empty disables periodic ingestion.
	Schedule   string `mapstructure:"schedule"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

func (config IngestConfig) validate() error {
	if config.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", config.Schedule, err)
	}
	return nil
}
