package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// Config is the server configuration.
type Config struct {
	Port        int       `yaml:"port"`
	OutputDir   string    `yaml:"output_dir"`
	ArchivePath string    `yaml:"archive_path"` // empty disables the archive
	Log         LogConfig `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:        8080,
		OutputDir:   "web_outputs",
		ArchivePath: "data/history.db",
		Log:         LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the yaml config at path on top of the defaults, then applies
// environment overrides. A missing file is fine: defaults plus environment
// apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Port = p
	}
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		cfg.OutputDir = dir
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}

	return cfg, nil
}

// APIKey resolves the transcription service credential. Returning an error
// here is a configuration fault.
func APIKey() (string, error) {
	key := os.Getenv("LEMONFOX_API_KEY")
	if key == "" {
		return "", fmt.Errorf("LEMONFOX_API_KEY not found in environment variables or .env file")
	}
	return key, nil
}
