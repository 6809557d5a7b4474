package config

import (
	"fmt"
	"github.com/spf13/viper"
)

type NotifierConfig struct {
	TgToken      string `mapstructure:"tg_token"`
	ChatID       int64  `mapstructure:"chat_id"`
	FailuresOnly bool   `mapstructure:"failures_only"`
}

func (config NotifierConfig) Enabled() bool {
	return config.TgToken != ""
}

func (config NotifierConfig) validate() error {
	if config.TgToken != "" && config.ChatID == 0 {
		return fmt.Errorf("missing variable: chat_id")
	}
	return nil
}

func (config NotifierConfig) bindEnvironmentVariables(v *viper.Viper) error {
	if err := v.BindEnv("notifier.tg_token", "TG_TOKEN"); err != nil {
		return err
	}
	return v.BindEnv("notifier.chat_id", "TG_CHAT_ID")
}
