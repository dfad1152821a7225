package config

// Config represents the main gateway configuration (agentgate.yaml)
type Config struct {
	Service     string        `yaml:"service" json:"service"`
	Host        string        `yaml:"host" json:"host"`
	Port        int           `yaml:"port" json:"port"`
	ActiveAgent string        `yaml:"active_agent" json:"active_agent"`
	AuthToken   string        `yaml:"auth_token,omitempty" json:"auth_token,omitempty"`
	CORSOrigins string        `yaml:"cors_origins" json:"cors_origins"`
	Backend     BackendConfig `yaml:"backend" json:"backend"`
	Storage     StorageConfig `yaml:"storage" json:"storage"`
	PresetsDir  string        `yaml:"presets_dir" json:"presets_dir"`
	Logging     LoggingConfig `yaml:"logging" json:"logging"`
}

// BackendConfig configures the completion backend
type BackendConfig struct {
	Name    string `yaml:"name" json:"name"`   // stub, openai, openrouter, anthropic
	Model   string `yaml:"model" json:"model"` // backend-specific model id
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// StorageConfig configures the registry and session database
type StorageConfig struct {
	Driver      string `yaml:"driver" json:"driver"`             // sqlite
	Path        string `yaml:"path" json:"path"`                 // registry database file
	SessionPath string `yaml:"session_path" json:"session_path"` // session database file
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}
