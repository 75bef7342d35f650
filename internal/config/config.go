package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TASKLINE_STORAGE_DRIVER.
const EnvPrefix = "TASKLINE_"

// Config models taskline.yml.
type Config struct {
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Engine    EngineConfig    `yaml:"engine" envPrefix:"ENGINE_"`
	Projector ProjectorConfig `yaml:"projector" envPrefix:"PROJECTOR_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

type StorageConfig struct {
	// Driver is sqlite, postgres or memory. memory keeps the event log in
	// process and the read model in an in-memory sqlite database.
	Driver string `yaml:"driver" env:"DRIVER" validate:"oneof=sqlite postgres memory"`
	DSN    string `yaml:"dsn" env:"DSN" validate:"required_if=Driver postgres"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr" env:"ADDR" validate:"required"`
	BasePath          string        `yaml:"base_path" env:"BASE_PATH"`
	WaitForProjection bool          `yaml:"wait_for_projection" env:"WAIT_FOR_PROJECTION"`
	ProjectionTimeout time.Duration `yaml:"projection_timeout" env:"PROJECTION_TIMEOUT" validate:"gte=0"`
}

type EngineConfig struct {
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES" validate:"gte=0,lte=10"`
	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST" validate:"omitempty,gte=4,lte=31"`
}

type ProjectorConfig struct {
	Name      string        `yaml:"name" env:"NAME" validate:"required"`
	Interval  time.Duration `yaml:"interval" env:"INTERVAL" validate:"gt=0"`
	BatchSize int           `yaml:"batch_size" env:"BATCH_SIZE" validate:"gt=0,lte=10000"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret" env:"JWT_SECRET"`
	AllowActorHeader bool   `yaml:"allow_actor_header" env:"ALLOW_ACTOR_HEADER"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT" validate:"omitempty,url"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
}

var validate = validator.New()

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: "sqlite"},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			BasePath:          "/v0",
			WaitForProjection: true,
			ProjectionTimeout: 2 * time.Second,
		},
		Engine:    EngineConfig{MaxRetries: 3},
		Projector: ProjectorConfig{Name: "read-model", Interval: time.Second, BatchSize: 100},
		Auth:      AuthConfig{AllowActorHeader: true},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{ServiceName: "taskline"},
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskline.yml")
}

// Load reads the workspace config, falling back to defaults when the file is
// missing, then applies environment overrides and validates the result.
func Load(workspace string) (*Config, error) {
	return LoadFile(Path(workspace))
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config yaml %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TASKLINE_* variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FromYAML parses and validates config from raw YAML bytes on top of defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write stores cfg as the workspace config file unless one exists.
func Write(workspace string, cfg *Config) (string, error) {
	path := Path(workspace)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}
