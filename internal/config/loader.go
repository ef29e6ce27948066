package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/reportpull/sfauth/pkg/logging"
	"github.com/reportpull/sfauth/pkg/oauth"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/sfauth"
	configFileName = "config.yaml"
)

// Environment variable names. The env layer wins over the YAML file so CI
// and one-off shells can override a workstation config without editing it.
const (
	EnvConsumerKey    = "SF_CONSUMER_KEY"
	EnvConsumerSecret = "SF_CONSUMER_SECRET"
	EnvJWTSubject     = "SF_JWT_SUBJECT"
	EnvPrivateKeyPath = "SF_JWT_PRIVATE_KEY_PATH"
	EnvPrivateKeyAlt  = "SF_JWT_KEY_FILE"
	EnvKeyID          = "SF_JWT_KEY_ID"
	EnvEnvironment    = "SF_ENVIRONMENT"
	EnvInstanceURL    = "SF_INSTANCE_URL"
	EnvAuthMethod     = "SF_AUTH_METHOD"
	EnvClientAuth     = "SF_CLIENT_AUTH"
	EnvAPIVersion     = "SF_API_VERSION"
	EnvScope          = "SF_SCOPE"
	EnvCallbackPort   = "SF_CALLBACK_PORT"
)

// GetDefaultConfigPath returns the per-user configuration directory.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load assembles the credential configuration: defaults, then config.yaml
// from configPath (the default user config directory when empty), then a
// .env file in the working directory, then process environment variables.
// The result is not yet validated; call Validate before using it.
func Load(configPath string) (Config, error) {
	cfg := defaultConfig()

	if configPath == "" {
		p, err := GetDefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		configPath = p
	}

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("Config", "Loaded configuration from %s", configFilePath)
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
	default:
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	// .env in the working directory, if present. Values already exported in
	// the process environment win over the file, which is godotenv's default.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Config", "Failed to load .env file: %v", err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		ServiceID:         DefaultServiceID,
		Environment:       EnvironmentProduction,
		AuthMethod:        AuthMethodBrowser,
		APIVersion:        DefaultAPIVersion,
		Scope:             DefaultScope,
		CallbackPortStart: DefaultCallbackPortStart,
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvConsumerKey); v != "" {
		cfg.ConsumerKey = v
	}
	if v := os.Getenv(EnvConsumerSecret); v != "" {
		cfg.ConsumerSecret = oauth.NewRedacted(v)
	}
	if v := os.Getenv(EnvJWTSubject); v != "" {
		cfg.JWTSubject = v
	}
	if v := os.Getenv(EnvPrivateKeyPath); v != "" {
		cfg.PrivateKeyPath = v
	} else if v := os.Getenv(EnvPrivateKeyAlt); v != "" {
		cfg.PrivateKeyPath = v
	}
	if v := os.Getenv(EnvKeyID); v != "" {
		cfg.KeyID = v
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv(EnvInstanceURL); v != "" {
		cfg.InstanceURL = v
	}
	if v := os.Getenv(EnvAuthMethod); v != "" {
		cfg.AuthMethod = AuthMethod(v)
	}
	if v := os.Getenv(EnvClientAuth); v != "" {
		cfg.ClientAuth = ClientAuth(v)
	}
	if v := os.Getenv(EnvAPIVersion); v != "" {
		cfg.APIVersion = v
	}
	if v := os.Getenv(EnvScope); v != "" {
		cfg.Scope = v
	}
	if v := os.Getenv(EnvCallbackPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			cfg.CallbackPortStart = port
		} else {
			logging.Warn("Config", "Ignoring invalid %s value %q", EnvCallbackPort, v)
		}
	}
}
