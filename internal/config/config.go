package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Logging     LoggingConfig
	PropertyCRM PropertyCRMConfig
	Kommo       KommoConfig
	Marketing   MarketingConfig
	Retry       RetryConfig
	DatabaseURL string
	RabbitMQURL string
	Mail        MailConfig
	Flags       FlagsConfig
}

type ServerConfig struct {
	Port               string
	AdminToken         string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type PropertyCRMConfig struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
}

type KommoConfig struct {
	URL        string
	APIToken   string
	PipelineID int
	StatusID   int
	Timeout    time.Duration
}

type MarketingConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type RetryConfig struct {
	MaxAttempts      int
	MaxQueueSize     int
	DrainInterval    time.Duration
	DrainMaxInterval time.Duration
	DrainBudget      time.Duration
	DrainConcurrency int
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	AlertTo  string
}

// Enabled reports whether dead-letter alert e-mails can be sent.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.AlertTo != ""
}

type FlagsConfig struct {
	SalesCRMEnabled  bool
	MarketingEnabled bool
	SyncSellers      bool
	SkipLegacyCRM    bool
}

// Load reads envFile (a missing file is fine) and then the process environment.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile, false); err != nil {
		return nil, err
	}
	return fromViper(newViper()), nil
}

func loadEnvFile(envFile string, overload bool) error {
	if envFile == "" {
		return nil
	}
	var err error
	if overload {
		err = godotenv.Overload(envFile)
	} else {
		err = godotenv.Load(envFile)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("erro ao carregar %s: %w", envFile, err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LEADS_RATE_LIMIT_PER_MINUTE", 10)

	v.SetDefault("PROPERTY_CRM_TIMEOUT", "30s")
	v.SetDefault("KOMMO_TIMEOUT", "30s")
	v.SetDefault("MARKETING_TIMEOUT", "30s")

	v.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	v.SetDefault("RETRY_MAX_QUEUE_SIZE", 1000)
	v.SetDefault("RETRY_DRAIN_INTERVAL", "5m")
	v.SetDefault("RETRY_DRAIN_MAX_INTERVAL", "1h")
	v.SetDefault("RETRY_DRAIN_BUDGET", "2m")
	v.SetDefault("RETRY_DRAIN_CONCURRENCY", 4)

	v.SetDefault("MAIL_PORT", 587)

	v.SetDefault("LEADS_SALES_CRM_ENABLED", false)
	v.SetDefault("LEADS_MARKETING_ENABLED", false)
	v.SetDefault("LEADS_SYNC_SELLERS", false)
	v.SetDefault("LEADS_SKIP_LEGACY_CRM", false)
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:               v.GetString("PORT"),
			AdminToken:         v.GetString("ADMIN_TOKEN"),
			CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			RateLimitPerMinute: v.GetInt("LEADS_RATE_LIMIT_PER_MINUTE"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		PropertyCRM: PropertyCRMConfig{
			URL:      v.GetString("PROPERTY_CRM_URL"),
			User:     v.GetString("PROPERTY_CRM_USER"),
			Password: v.GetString("PROPERTY_CRM_PASSWORD"),
			Timeout:  v.GetDuration("PROPERTY_CRM_TIMEOUT"),
		},
		Kommo: KommoConfig{
			URL:        v.GetString("KOMMO_URL"),
			APIToken:   v.GetString("KOMMO_API_TOKEN"),
			PipelineID: v.GetInt("KOMMO_PIPELINE_ID"),
			StatusID:   v.GetInt("KOMMO_STATUS_ID"),
			Timeout:    v.GetDuration("KOMMO_TIMEOUT"),
		},
		Marketing: MarketingConfig{
			URL:     v.GetString("MARKETING_URL"),
			APIKey:  v.GetString("MARKETING_API_KEY"),
			Timeout: v.GetDuration("MARKETING_TIMEOUT"),
		},
		Retry: RetryConfig{
			MaxAttempts:      v.GetInt("RETRY_MAX_ATTEMPTS"),
			MaxQueueSize:     v.GetInt("RETRY_MAX_QUEUE_SIZE"),
			DrainInterval:    v.GetDuration("RETRY_DRAIN_INTERVAL"),
			DrainMaxInterval: v.GetDuration("RETRY_DRAIN_MAX_INTERVAL"),
			DrainBudget:      v.GetDuration("RETRY_DRAIN_BUDGET"),
			DrainConcurrency: v.GetInt("RETRY_DRAIN_CONCURRENCY"),
		},
		DatabaseURL: v.GetString("DATABASE_URL"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		Mail: MailConfig{
			Host:     v.GetString("MAIL_HOST"),
			Port:     v.GetInt("MAIL_PORT"),
			User:     v.GetString("MAIL_USER"),
			Password: v.GetString("MAIL_PASS"),
			AlertTo:  v.GetString("ALERT_EMAIL"),
		},
		Flags: flagsFromViper(v),
	}
}

func flagsFromViper(v *viper.Viper) FlagsConfig {
	return FlagsConfig{
		SalesCRMEnabled:  v.GetBool("LEADS_SALES_CRM_ENABLED"),
		MarketingEnabled: v.GetBool("LEADS_MARKETING_ENABLED"),
		SyncSellers:      v.GetBool("LEADS_SYNC_SELLERS"),
		SkipLegacyCRM:    v.GetBool("LEADS_SKIP_LEGACY_CRM"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.PropertyCRM.URL == "" && !c.Flags.SkipLegacyCRM {
		errs = append(errs, errors.New("PROPERTY_CRM_URL é obrigatório"))
	}
	if c.Flags.SalesCRMEnabled && c.Kommo.URL == "" {
		errs = append(errs, errors.New("KOMMO_URL é obrigatório com LEADS_SALES_CRM_ENABLED"))
	}
	if c.Flags.MarketingEnabled && c.Marketing.URL == "" {
		errs = append(errs, errors.New("MARKETING_URL é obrigatório com LEADS_MARKETING_ENABLED"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_ATTEMPTS inválido: %d", c.Retry.MaxAttempts))
	}
	if c.Retry.MaxQueueSize < 1 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_QUEUE_SIZE inválido: %d", c.Retry.MaxQueueSize))
	}
	if c.Retry.DrainConcurrency < 1 {
		errs = append(errs, fmt.Errorf("RETRY_DRAIN_CONCURRENCY inválido: %d", c.Retry.DrainConcurrency))
	}
	if c.Retry.DrainInterval < 0 || c.Retry.DrainBudget < 0 {
		errs = append(errs, errors.New("intervalos de drain não podem ser negativos"))
	}
	if c.Server.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Errorf("LEADS_RATE_LIMIT_PER_MINUTE inválido: %d", c.Server.RateLimitPerMinute))
	}

	return errors.Join(errs...)
}
