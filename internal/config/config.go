package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Netvisor NetvisorConfig `mapstructure:"netvisor"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Matching MatchingConfig `mapstructure:"matching"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// NetvisorConfig holds accounting system integration configuration
type NetvisorConfig struct {
	// UseMock switches the accounting client to the built-in mock. Real
	// credentials are ignored while it is set.
	UseMock        bool          `mapstructure:"use_mock"`
	CustomerID     string        `mapstructure:"customer_id"`
	PrivateKey     string        `mapstructure:"private_key"`
	OrganizationID string        `mapstructure:"organization_id"`
	APITimeout     time.Duration `mapstructure:"api_timeout"`
	// InvoiceLookback bounds how far back invoice discovery lists.
	InvoiceLookback time.Duration `mapstructure:"invoice_lookback"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MatchingConfig holds the matching policy
type MatchingConfig struct {
	// ConfidenceThreshold is the auto-assignment cutoff, inclusive.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// EnableAIMatcher adds the AI matcher behind the heuristic one.
	EnableAIMatcher bool `mapstructure:"enable_ai_matcher"`
}

// ApprovalConfig holds the human approval flow configuration
type ApprovalConfig struct {
	// BaseURL is the public base URL embedded in approval emails.
	BaseURL string `mapstructure:"base_url"`
	// FallbackApprover receives requests for projects without a manager.
	FallbackApprover string `mapstructure:"fallback_approver"`
	// RequestTTL expires pending requests that got no response.
	RequestTTL time.Duration `mapstructure:"request_ttl"`
}

// WorkerConfig holds background worker intervals
type WorkerConfig struct {
	FetchInterval   time.Duration `mapstructure:"fetch_interval"`
	AnalyzeInterval time.Duration `mapstructure:"analyze_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/invoicerobot.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Netvisor defaults
	viper.SetDefault("netvisor.use_mock", true)
	viper.SetDefault("netvisor.api_timeout", 30*time.Second)
	viper.SetDefault("netvisor.invoice_lookback", 30*24*time.Hour)

	// OpenAI defaults
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.vision_model", "gpt-4o")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.timeout", 60*time.Second)

	// Matching defaults
	viper.SetDefault("matching.confidence_threshold", 0.9)
	viper.SetDefault("matching.enable_ai_matcher", true)

	// Approval defaults
	viper.SetDefault("approval.base_url", "http://localhost:8080")
	viper.SetDefault("approval.request_ttl", 7*24*time.Hour)

	// Worker defaults
	viper.SetDefault("worker.fetch_interval", 15*time.Minute)
	viper.SetDefault("worker.analyze_interval", 5*time.Minute)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("netvisor.customer_id", "NETVISOR_CUSTOMER_ID")
	viper.BindEnv("netvisor.private_key", "NETVISOR_PRIVATE_KEY")
	viper.BindEnv("netvisor.organization_id", "NETVISOR_ORGANIZATION_ID")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("approval.fallback_approver", "FALLBACK_APPROVER_EMAIL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !c.Netvisor.UseMock {
		if c.Netvisor.CustomerID == "" {
			return fmt.Errorf("netvisor.customer_id is required")
		}
		if c.Netvisor.PrivateKey == "" {
			return fmt.Errorf("netvisor.private_key is required")
		}
	}

	if c.Matching.EnableAIMatcher && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required when the AI matcher is enabled")
	}

	if c.Matching.ConfidenceThreshold < 0 || c.Matching.ConfidenceThreshold > 1 {
		return fmt.Errorf("matching.confidence_threshold must be between 0 and 1")
	}

	if c.Approval.FallbackApprover == "" {
		return fmt.Errorf("approval.fallback_approver is required")
	}

	return nil
}
