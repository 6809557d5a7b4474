package config

import (
	"errors"
	"fmt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"os"
)

type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	DB         DBConfig         `mapstructure:"db"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Advisor    AdvisorConfig    `mapstructure:"advisor"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Sources    []SourceConfig   `mapstructure:"sources"`
}

const defaultConfigFile = "./configs/config.yaml"

func Get() *Config {

	configFile := defaultConfigFile
	if value, ok := os.LookupEnv("CONFIG_PATH"); ok && value != "" {
		configFile = value
	}

	config, err := Load(configFile)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func Load(file string) (*Config, error) {

	v := viper.New()
	v.SetConfigFile(file)
	v.AutomaticEnv()

	v.SetDefault("metrics.address", ":8080")
	v.SetDefault("advisor.model", "gemini-1.5-flash")
	v.SetDefault("advisor.timeout", "30s")
	v.SetDefault("advisor.cache_ttl", "6h")
	v.SetDefault("logger.log_level", string(LevelInfo))
	v.SetDefault("logger.output_file", "./logs/errors.log")

	if err := bindEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", file, err)
	}

	config := Config{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func bindEnvironmentVariables(v *viper.Viper) error {
	var errs []error

	logger, db, advisor, notifier := LoggerConfig{}, DBConfig{}, AdvisorConfig{}, NotifierConfig{}

	if err := logger.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := db.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := advisor.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("AdvisorConfig: %w", err))
	}

	if err := notifier.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("NotifierConfig: %w", err))
	}

	if err := v.BindEnv("ingest.schedule", "INGEST_SCHEDULE"); err != nil {
		errs = append(errs, fmt.Errorf("IngestConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	if err := config.DB.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := config.Ingest.validate(); err != nil {
		errs = append(errs, fmt.Errorf("IngestConfig: %w", err))
	}

	if err := config.Advisor.validate(); err != nil {
		errs = append(errs, fmt.Errorf("AdvisorConfig: %w", err))
	}

	if err := config.Notifier.validate(); err != nil {
		errs = append(errs, fmt.Errorf("NotifierConfig: %w", err))
	}

	if err := validateSources(config.Sources); err != nil {
		errs = append(errs, fmt.Errorf("SourcesConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
