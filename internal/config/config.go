package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// Config holds all configuration for askpdf
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Upload    UploadConfig    `mapstructure:"upload"`
	RAG       RAGConfig       `mapstructure:"rag"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	History   HistoryConfig   `mapstructure:"history"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	APIKey       string        `mapstructure:"api_key"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
}

// LogConfig selects the zap preset
type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// UploadConfig holds upload handling configuration
type UploadConfig struct {
	TempDir         string `mapstructure:"temp_dir"`
	MaxFileBytes    int64  `mapstructure:"max_file_bytes"`
	MaxRequestBytes int64  `mapstructure:"max_request_bytes"`
}

// RAGConfig holds chunking and retrieval configuration
type RAGConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

// LLMConfig holds the chat model configuration
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig holds the embedding model configuration
type EmbeddingConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BatchSize int           `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// HistoryConfig selects the chat history backend
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	DBPath  string `mapstructure:"db_path"`
}

// History backends
const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
)

// Load loads configuration from .env, file and environment
func Load(configPath string) (*Config, error) {
	// A missing .env is fine; credentials may come from the real environment.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("ASKPDF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyKeyFallbacks(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 30*time.Second)

	v.SetDefault("log.development", false)

	v.SetDefault("upload.temp_dir", "")
	v.SetDefault("upload.max_file_bytes", 32<<20)
	v.SetDefault("upload.max_request_bytes", 128<<20)

	v.SetDefault("rag.chunk_size", 5000)
	v.SetDefault("rag.chunk_overlap", 500)
	v.SetDefault("rag.top_k", 4)

	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemma2-9b-it")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("embedding.timeout", 60*time.Second)

	v.SetDefault("history.backend", HistoryMemory)
	v.SetDefault("history.db_path", "./data/askpdf.db")
}

// applyKeyFallbacks picks up the provider-native key variables when the
// ASKPDF_ ones are unset.
func applyKeyFallbacks(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate reports configuration that must stop the process before it
// accepts any input.
func (c *Config) Validate() error {
	var problems []string
	if c.LLM.APIKey == "" {
		problems = append(problems, "llm.api_key is required (ASKPDF_LLM_API_KEY or GROQ_API_KEY)")
	}
	if c.Embedding.APIKey == "" {
		problems = append(problems, "embedding.api_key is required (ASKPDF_EMBEDDING_API_KEY or OPENAI_API_KEY)")
	}
	if c.RAG.ChunkSize <= 0 {
		problems = append(problems, "rag.chunk_size must be > 0")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		problems = append(problems, "rag.chunk_overlap must be >= 0 and < rag.chunk_size")
	}
	if c.RAG.TopK <= 0 {
		problems = append(problems, "rag.top_k must be > 0")
	}
	switch c.History.Backend {
	case HistoryMemory:
	case HistorySQLite:
		if c.History.DBPath == "" {
			problems = append(problems, "history.db_path is required for the sqlite backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown history.backend %q", c.History.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
