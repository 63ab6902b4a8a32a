package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads configuration from the given file path (or the default search
// paths when path is empty), applies environment overrides, and validates
// the result. Unknown keys in the config file are rejected so typos fail
// fast instead of silently falling back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	loadEnvFile()
	setupViper(v, path)
	setDefaults(v)

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	if err := bindEnvironmentVariables(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment variables: %w", err)
	}

	cfg, err := decodeConfig(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decodeConfig maps merged settings onto the Config struct. ErrorUnused
// rejects unknown keys so typos fail fast instead of silently falling back
// to defaults.
func decodeConfig(settings map[string]any) (*Config, error) {
	cfg := &Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, NewConfigError("", err.Error())
	}

	return cfg, nil
}

// loadEnvFile loads .env file (ignores error if file doesn't exist).
func loadEnvFile() {
	_ = godotenv.Load()
}

// setupViper configures Viper for environment variable and config file reading.
func setupViper(v *viper.Viper, path string) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		return
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
}

// readConfigFile reads the config file. A missing file is only an error when
// an explicit path was given.
func readConfigFile(v *viper.Viper, path string) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if path == "" && errors.As(err, &notFound) {
		return nil
	}

	return NewConfigError("", fmt.Sprintf("failed to read config file: %v", err))
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler", map[string]any{
		"batch_size":           DefaultBatchSize,
		"max_concurrency":      DefaultMaxConcurrency,
		"per_host_concurrency": DefaultPerHostConcurrency,
		"host_delay":           DefaultHostDelay.String(),
		"request_timeout":      DefaultRequestTimeout.String(),
		"url_timeout":          DefaultURLTimeout.String(),
		"retry_attempts":       DefaultRetryAttempts,
		"recrawl_window_days":  DefaultRecrawlWindowDays,
		"user_agent":           DefaultUserAgent,
		"respect_robots":       true,
	})

	v.SetDefault("server", map[string]any{
		"address":       DefaultAPIAddress,
		"read_timeout":  DefaultReadTimeout.String(),
		"write_timeout": DefaultWriteTimeout.String(),
		"idle_timeout":  DefaultIdleTimeout.String(),
	})

	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "console",
		"development": false,
	})

	v.SetDefault("progress", map[string]any{
		"path": DefaultProgressPath,
	})

	v.SetDefault("analyzer", map[string]any{
		"schedule": DefaultAnalyzerSchedule,
		"enabled":  true,
	})
}

// bindEnvironmentVariables binds environment variables to config keys.
func bindEnvironmentVariables(v *viper.Viper) error {
	bindings := map[string][]string{
		"logger.level":            {"LOG_LEVEL"},
		"logger.encoding":         {"LOG_FORMAT"},
		"server.address":          {"API_ADDRESS"},
		"progress.path":           {"PROGRESS_PATH"},
		"crawler.user_agent":      {"CRAWLER_USER_AGENT"},
		"crawler.max_concurrency": {"CRAWLER_MAX_CONCURRENCY"},
		"crawler.batch_size":      {"CRAWLER_BATCH_SIZE"},
	}

	for key, envVars := range bindings {
		if err := v.BindEnv(append([]string{key}, envVars...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	return nil
}
