package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the Ellen backend
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Search    SearchConfig    `mapstructure:"search"`
}

// GeneralConfig contains server and auth settings
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	Debug     bool   `mapstructure:"debug"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Env       string `mapstructure:"env"`
}

// ChatConfig controls the chat pipeline.
type ChatConfig struct {
	// Backend selects the stream producer: "openai" or "webhook".
	Backend    string        `mapstructure:"backend"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (c ChatConfig) Validate() error {
	switch c.Backend {
	case "", "openai":
		return nil
	case "webhook":
		if strings.TrimSpace(c.WebhookURL) == "" {
			return fmt.Errorf("chat.webhook_url required when chat.backend is webhook")
		}
		return nil
	default:
		return fmt.Errorf("unknown chat.backend: %s", c.Backend)
	}
}

// ProvidersConfig holds external API provider settings.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures the OpenAI chat-completion backend.
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// DatabasesConfig groups backing store settings.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains relational store settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("databases.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("databases.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains cache settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SearchConfig tunes the retrieval components.
type SearchConfig struct {
	ChunkLimit       int `mapstructure:"chunk_limit"`
	RelatedLimit     int `mapstructure:"related_limit"`
	FallbackDocLimit int `mapstructure:"fallback_doc_limit"`
}

// LoadConfig loads config from file, with ELLEN_* env overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.listen", ":10002")
	v.SetDefault("chat.backend", "openai")
	v.SetDefault("chat.timeout", 2*time.Minute)
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.temperature", 0.3)
	v.SetDefault("providers.openai.timeout", 2*time.Minute)
	v.SetDefault("databases.redis.ttl", time.Hour)
	v.SetDefault("search.chunk_limit", 5)
	v.SetDefault("search.related_limit", 6)
	v.SetDefault("search.fallback_doc_limit", 3)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ELLEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional when env vars carry the settings.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Chat.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Databases.Postgres.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
