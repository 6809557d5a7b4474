package config

// ClassifierConfig overrides the built-in category keyword tables when non-empty.
type ClassifierConfig struct {
	Categories map[string][]string `mapstructure:"categories"`
}
