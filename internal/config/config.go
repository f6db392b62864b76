// Package config manages configuration for the fnforge CLI.
// It uses Viper for unified configuration management from files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/fnforge/fnforge/internal/constants"
)

// Config is the deploy-time configuration: the target project, where the
// uploaded source archives live, and tuning knobs. Values come from
// ~/.fnforge/config.yaml overridden by FNFORGE_* environment variables.
type Config struct {
	Project string `mapstructure:"project" yaml:"project" validate:"required"`

	// LegacyLocation is the appspot location scheduler jobs for gen1
	// endpoints are created in.
	LegacyLocation string `mapstructure:"legacy_location" yaml:"legacy_location" validate:"required"`

	// V1SourceURL is the signed upload URL for the gen1 source archive.
	V1SourceURL string `mapstructure:"v1_source_url" yaml:"v1_source_url" validate:"omitempty,url"`

	// V2Sources maps region to the gs:// object holding that region's gen2
	// source archive.
	V2Sources map[string]string `mapstructure:"v2_sources" yaml:"v2_sources" validate:"omitempty,dive,startswith=gs://"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// Environment selects the log output format: production emits JSON,
	// development emits the colored handler.
	Environment string `mapstructure:"environment" yaml:"environment" validate:"omitempty,oneof=production development"`

	// QueueConcurrency and FunctionConcurrency bound the two executor
	// pools. Zero means the built-in defaults.
	QueueConcurrency    int `mapstructure:"queue_concurrency" validate:"omitempty,min=1"`
	FunctionConcurrency int `mapstructure:"function_concurrency" validate:"omitempty,min=1"`
}

var validate = validator.New()

// Load loads the configuration using Viper. A missing config file is
// acceptable; environment variables alone can carry a full configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := loadConfigFile(v, path); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FNFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToRegionMapHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("legacy_location", "us-central1")
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "development")
	v.SetDefault("queue_concurrency", constants.QueueExecutorConcurrency)
	v.SetDefault("function_concurrency", constants.FunctionExecutorConcurrency)
}

func loadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return viper.ConfigFileNotFoundError{}
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".fnforge"))
	return v.ReadInConfig()
}

// bindEnvVars binds each key explicitly so AutomaticEnv sees nested keys.
func bindEnvVars(v *viper.Viper) {
	keys := []string{
		"project",
		"legacy_location",
		"v1_source_url",
		"v2_sources",
		"log_level",
		"environment",
		"queue_concurrency",
		"function_concurrency",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// stringToRegionMapHookFunc decodes the env-variable form of v2_sources,
// "region=locator,region=locator", into the map the YAML form produces.
func stringToRegionMapHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(map[string]string{}) {
			return data, nil
		}
		raw := data.(string)
		if raw == "" {
			return map[string]string{}, nil
		}
		out := make(map[string]string)
		for _, pair := range strings.Split(raw, ",") {
			region, locator, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || region == "" || locator == "" {
				return nil, fmt.Errorf("malformed region source %q, want region=locator", pair)
			}
			out[region] = locator
		}
		return out, nil
	}
}
