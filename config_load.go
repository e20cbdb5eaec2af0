package authcore

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file, layered on top of
// [DefaultConfig]. Duration fields use the "<number><s|m|h|d>" grammar.
// The signing secret is never read from the file; it comes from the
// AUTHCORE_TOKEN_SECRET environment variable, optionally seeded from a
// .env file via [LoadEnvFile].
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.resolveTTLSpecs(); err != nil {
		return cfg, err
	}

	if secret := os.Getenv("AUTHCORE_TOKEN_SECRET"); secret != "" {
		cfg.Token.Secret = []byte(secret)
	}

	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment. Missing files
// are not an error so deployments can rely on real environment variables.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
