// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Review        ReviewConfig            `mapstructure:"review"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	UsePlaintext   bool   `mapstructure:"use_plaintext"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
	AuditIndex string   `mapstructure:"audit_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// --- Specific Configuration Sections ---

// KeycloakConfig points at the realm holding external applicant accounts.
type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type AuthConfig struct {
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
}

type SESConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
}

type SNSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	PdfPreviewTopicARN string `mapstructure:"pdf_preview_topic_arn"`
}

type AWSConfig struct {
	Region string    `mapstructure:"region"`
	SES    SESConfig `mapstructure:"ses"`
	SNS    SNSConfig `mapstructure:"sns"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	UseTLS      bool   `mapstructure:"use_tls"`
	DefaultFrom string `mapstructure:"default_from"`
}

// ConditionsConfig locates the licence conditions calculation engine.
type ConditionsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// IntegrationConfig holds settings for AWS, SMTP and the conditions engine.
type IntegrationConfig struct {
	AWS        AWSConfig        `mapstructure:"aws"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Conditions ConditionsConfig `mapstructure:"conditions"`
}

// NotificationConfig selects the email provider and sender identity.
type NotificationConfig struct {
	Provider  string `mapstructure:"provider"` // ses | smtp
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	BaseURL   string `mapstructure:"base_url"` // link rendered into emails
}

// ReviewConfig holds workflow tunables.
type ReviewConfig struct {
	AmendmentResponseDays int `mapstructure:"amendment_response_days"`
	DirectoryCacheTTL     int `mapstructure:"directory_cache_ttl"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	HTTPAddress    string `mapstructure:"http_address"`
}
