// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.digitalcv/config.yaml or ./config.yaml)
//  3. Default values
//
// Security: sensitive values (API keys, passwords, tokens) are masked in
// MarshalJSON so a dumped config never leaks secrets into logs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the OpenAI API key is not set.
	ErrMissingAPIKey = errors.New("missing OpenAI API key")

	// ErrMissingPersonaName indicates the persona name is not set.
	ErrMissingPersonaName = errors.New("missing persona name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidEmbeddingDims indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDims = errors.New("invalid embedding dimensions")

	// ErrInvalidChunking indicates the chunk size/overlap pair is unusable.
	ErrInvalidChunking = errors.New("invalid chunking parameters")
)

// Default model identifiers.
const (
	DefaultChatModel      = "gpt-5-mini"
	DefaultGuardrailModel = "gpt-4o"

	// DefaultEmbeddingModel pairs with the 1536-dimension documents schema.
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultEmbeddingDims  = 1536
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON. When
// adding new secrets, update MarshalJSON.
type Config struct {
	// Persona identity
	PersonaName  string `mapstructure:"persona_name" json:"persona_name"`
	PersonaEmail string `mapstructure:"persona_email" json:"persona_email"`

	// OpenAI configuration
	OpenAIAPIKey   string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	OpenAIBaseURL  string `mapstructure:"openai_base_url" json:"openai_base_url"`
	ChatModel      string `mapstructure:"chat_model" json:"chat_model"`
	GuardrailModel string `mapstructure:"guardrail_model" json:"guardrail_model"`
	EmbeddingModel string `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingDims  int    `mapstructure:"embedding_dims" json:"embedding_dims"`

	// Chat orchestration
	MaxToolRounds  int    `mapstructure:"max_tool_rounds" json:"max_tool_rounds"`
	TranscriptPath string `mapstructure:"transcript_path" json:"transcript_path"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Ingestion configuration
	KnowledgeDir string `mapstructure:"knowledge_dir" json:"knowledge_dir"`
	ChunkSize    int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Pushover notification configuration
	PushoverToken string `mapstructure:"pushover_token" json:"pushover_token"` // SENSITIVE: masked in MarshalJSON
	PushoverUser  string `mapstructure:"pushover_user" json:"pushover_user"`   // SENSITIVE: masked in MarshalJSON

	// Server and logging
	ServeAddr string `mapstructure:"serve_addr" json:"serve_addr"`
	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFile   string `mapstructure:"log_file" json:"log_file"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".digitalcv")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("persona_name", "Daniel Halwell")
	v.SetDefault("persona_email", "danielhalwell@gmail.com")

	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("guardrail_model", DefaultGuardrailModel)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("embedding_dims", DefaultEmbeddingDims)

	v.SetDefault("max_tool_rounds", 8)
	v.SetDefault("transcript_path", "chat_log.txt")

	// PostgreSQL defaults for local development
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "digitalcv")
	v.SetDefault("postgres_password", "digitalcv_dev_password")
	v.SetDefault("postgres_db_name", "digitalcv")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("knowledge_dir", "me")
	v.SetDefault("chunk_size", 2000)
	v.SetDefault("chunk_overlap", 200)

	v.SetDefault("serve_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// bindEnvVariables binds environment variables explicitly. Secrets keep
// their conventional unprefixed names; everything else uses DIGITALCV_.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("openai_base_url", "OPENAI_BASE_URL")
	mustBind("pushover_token", "PUSHOVER_TOKEN")
	mustBind("pushover_user", "PUSHOVER_USER")

	mustBind("persona_name", "DIGITALCV_PERSONA_NAME")
	mustBind("persona_email", "DIGITALCV_PERSONA_EMAIL")
	mustBind("chat_model", "DIGITALCV_CHAT_MODEL")
	mustBind("guardrail_model", "DIGITALCV_GUARDRAIL_MODEL")
	mustBind("embedding_model", "DIGITALCV_EMBEDDING_MODEL")
	mustBind("knowledge_dir", "DIGITALCV_KNOWLEDGE_DIR")
	mustBind("transcript_path", "DIGITALCV_TRANSCRIPT_PATH")
	mustBind("serve_addr", "DIGITALCV_SERVE_ADDR")
	mustBind("log_level", "DIGITALCV_LOG_LEVEL")
	mustBind("log_file", "DIGITALCV_LOG_FILE")
}

// Validate checks the configuration for fatal problems. It is called by
// Load but exported so tests and callers constructing a Config directly can
// reuse it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PersonaName) == "" {
		return ErrMissingPersonaName
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
	}
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	if c.EmbeddingDims < 1 || c.EmbeddingDims > 2000 {
		// pgvector HNSW indexes cap out at 2000 dimensions.
		return fmt.Errorf("%w: %d", ErrInvalidEmbeddingDims, c.EmbeddingDims)
	}
	if c.ChunkSize < 1 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + maskedValue + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	masked.OpenAIAPIKey = maskSecret(c.OpenAIAPIKey)
	masked.PostgresPassword = maskSecret(c.PostgresPassword)
	masked.PushoverToken = maskSecret(c.PushoverToken)
	masked.PushoverUser = maskSecret(c.PushoverUser)
	return json.Marshal(masked)
}
