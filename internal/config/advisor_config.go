package config

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
	"time"
)

type AdvisorConfig struct {
	AIKey                string        `mapstructure:"ai_key"`
	Enabled              bool          `mapstructure:"enabled"`
	Model                string        `mapstructure:"model"`
	Timeout              time.Duration `mapstructure:"timeout"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	MaxRequestsPerMinute float32       `mapstructure:"max_requests_per_minute"`
	MaxRequestsPerDay    float32       `mapstructure:"max_requests_per_day"`
}

// Active reports whether failed sources should be diagnosed: a key must be
// configured and the feature switched on.
func (config AdvisorConfig) Active() bool {
	return config.AIKey != "" && config.Enabled
}

func (config AdvisorConfig) validate() error {
	var errs []error

	if config.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if config.MaxRequestsPerMinute < 0 || config.MaxRequestsPerDay < 0 {
		errs = append(errs, fmt.Errorf("rate limits must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}
	return nil
}

func (config AdvisorConfig) bindEnvironmentVariables(v *viper.Viper) error {
	if err := v.BindEnv("advisor.ai_key", "AI_KEY"); err != nil {
		return err
	}
	return v.BindEnv("advisor.enabled", "ADVISOR_ENABLED")
}
