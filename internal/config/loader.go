package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for solestyle.yaml/.yml in standard locations.
// The search requires an explicit YAML extension so the binary itself never matches.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No file anywhere: ReadInConfig returns ConfigFileNotFoundError,
		// which callers treat as "env vars only".
		viper.SetConfigName("solestyle")
		viper.SetConfigType("yaml")
	}

	// SOLESTYLE_STORAGE_DRIVER overrides storage.driver
	viper.SetEnvPrefix("SOLESTYLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches ., ~/.solestyle and the system config directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".solestyle"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "solestyle"))
		}
	} else {
		paths = append(paths, "/etc/solestyle")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths returns the first solestyle.yaml or .yml found in
// paths, or "".
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "solestyle"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every scalar key so AutomaticEnv sees nested
// values during Unmarshal.
func bindNestedEnvKeys() {
	for _, key := range []string{
		"server.http_addr",
		"server.log_level",
		"server.shutdown_timeout",

		"storage.driver",
		"storage.dir",
		"storage.sqlite_path",
		"storage.redis_addr",
		"storage.redis_prefix",
		"storage.conflict_policy",

		"backup.key",
		"backup.upload_delay",
		"backup.download_delay",
		"backup.delete_delay",

		"auth.password_memory_kib",
		"auth.password_iterations",
		"auth.password_parallelism",
		"auth.admin_password_hash",

		"telemetry.tracing",
		"telemetry.metrics",
		"telemetry.metric_interval",

		"dev_mode",
	} {
		_ = viper.BindEnv(key)
	}
	// server.allowed_origins is a list; set it in the config file.
}

// LoadConfig reads the configuration, applies defaults and dev defaults,
// and validates.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
