package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads the gateway configuration from dir/agentgate.yaml.
// A missing file yields the default configuration.
func Load(dir string) (*Config, error) {
	configFile := filepath.Join(dir, "agentgate.yaml")

	content, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate environment variables
	content = []byte(interpolateEnv(string(content)))

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// interpolateEnv replaces ${env.VAR} and ${VAR} with environment values
func interpolateEnv(content string) string {
	envPattern := regexp.MustCompile(`\$\{env\.([^}]+)\}`)
	content = envPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // keep original if not found
	})

	varPattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := varPattern.FindStringSubmatch(match)[1]
		if strings.Contains(varName, ".") {
			return match
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return content
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Service == "" {
		cfg.Service = "agentgate"
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 4280
	}
	if cfg.ActiveAgent == "" {
		cfg.ActiveAgent = os.Getenv("AGENTGATE_AGENT")
	}
	if cfg.ActiveAgent == "" {
		cfg.ActiveAgent = "summarizer"
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("AGENTGATE_AUTH_TOKEN")
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}
	if cfg.Backend.Name == "" {
		cfg.Backend.Name = os.Getenv("AGENTGATE_BACKEND")
	}
	if cfg.Backend.Name == "" {
		cfg.Backend.Name = "stub"
	}
	cfg.Backend.Name = strings.ToLower(cfg.Backend.Name)
	if cfg.Backend.APIKey == "" {
		switch cfg.Backend.Name {
		case "openai":
			cfg.Backend.APIKey = os.Getenv("OPENAI_API_KEY")
		case "openrouter":
			cfg.Backend.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case "anthropic":
			cfg.Backend.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join("data", "agentgate.db")
	}
	if cfg.Storage.SessionPath == "" {
		cfg.Storage.SessionPath = filepath.Join(filepath.Dir(cfg.Storage.Path), "sessions.db")
	}
	if cfg.PresetsDir == "" {
		cfg.PresetsDir = "presets"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
