package models

type Configuration struct {
	App       AppConfiguration       `mapstructure:"app"       validate:"required"`
	Database  DatabaseConfiguration  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfiguration      `mapstructure:"auth"      validate:"required"`
	Cache     CacheConfiguration     `mapstructure:"cache"     validate:"required"`
	Events    EventsConfiguration    `mapstructure:"events"    validate:"required"`
	Notifier  NotifierConfiguration  `mapstructure:"notifier"  validate:"required"`
	Activity  ActivityConfiguration  `mapstructure:"activity"  validate:"required"`
	Telemetry TelemetryConfiguration `mapstructure:"telemetry"`
}

type AppConfiguration struct {
	Profile              string   `mapstructure:"profile"                validate:"oneof=default api worker"`
	AdminEmail           string   `mapstructure:"admin_email"            validate:"required,email"`
	AdminPassword        string   `mapstructure:"admin_password"         validate:"required"`
	APIURL               string   `mapstructure:"api_url"                validate:"required"`
	AllowedOrigins       []string `mapstructure:"allowed_origins"        validate:"required"`
	JWTSecret            string   `mapstructure:"jwt_secret"             validate:"required"`
	EncryptionKey        string   `mapstructure:"encryption_key"         validate:"len=32"`
	PendingSessionExpiry int      `mapstructure:"pending_session_expiry" validate:"gte=1,lte=30"`
	SessionExpiry        int      `mapstructure:"session_expiry"         validate:"gte=1,lte=168"`
	ResetTokenExpiry     int      `mapstructure:"reset_token_expiry"     validate:"gte=1,lte=30"`
	LogLevel             string   `mapstructure:"log_level"              validate:"oneof=debug info warn error fatal panic"`
	Port                 int      `mapstructure:"port"                   validate:"gte=80,lte=65535"`
	TrustedProxies       []string `mapstructure:"trusted_proxies"        validate:"required"`
	WebURL               string   `mapstructure:"web_url"                validate:"required"`
	AttemptRetentionDays int      `mapstructure:"attempt_retention_days" validate:"gte=1,lte=365"`
}

type DatabaseConfiguration struct {
	Type     string `mapstructure:"type"     validate:"required,oneof=postgres sqlite"`
	Host     string `mapstructure:"host"     validate:"required_if=Type postgres"`
	Port     int32  `mapstructure:"port"     validate:"omitempty,gte=80,lte=65535"`
	User     string `mapstructure:"user"     validate:"required_if=Type postgres"`
	Password string `mapstructure:"password" validate:"required_if=Type postgres"`
	Name     string `mapstructure:"name"     validate:"required_if=Type postgres"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"     validate:"required_if=Type sqlite"`
}

type AuthConfiguration struct {
	Providers map[string]ProviderConfiguration `mapstructure:"providers" validate:"omitempty,dive"`
}

type ProviderConfiguration struct {
	Name    string            `mapstructure:"name"    validate:"required_if=Type oidc"`
	Type    ProviderType      `mapstructure:"type"    validate:"required,oneof=local oidc"`
	OIDC    OIDCConfiguration `mapstructure:"oidc"    validate:"required_if=Type oidc"`
	Domains []string          `mapstructure:"domains"`
}

type OIDCConfiguration struct {
	ClientID     string `mapstructure:"client_id"     validate:"required_if=Type oidc"`
	ClientSecret string `mapstructure:"client_secret" validate:"required_if=Type oidc"`
	Issuer       string `mapstructure:"issuer"        validate:"required_if=Type oidc"`
}

type CacheConfiguration struct {
	Type   string                    `mapstructure:"type"   validate:"required,oneof=redis valkey"`
	Redis  *RedisCacheConfiguration  `mapstructure:"redis"  validate:"required_if=Type redis"`
	Valkey *ValkeyCacheConfiguration `mapstructure:"valkey" validate:"required_if=Type valkey"`
}

type RedisCacheConfiguration struct {
	Hosts         []string `mapstructure:"hosts"`
	Password      string   `mapstructure:"password"`
	TLSEnabled    bool     `mapstructure:"tls_enabled"`
	TLSServerName string   `mapstructure:"tls_server_name"`
}

type ValkeyCacheConfiguration struct {
	Hosts         []string `mapstructure:"hosts"`
	Password      string   `mapstructure:"password"`
	TLSEnabled    bool     `mapstructure:"tls_enabled"`
	TLSServerName string   `mapstructure:"tls_server_name"`
}

type QueueConfig struct {
	Name string `mapstructure:"name" validate:"required"`
}

type EventsConfiguration struct {
	Type      string                 `mapstructure:"type"      validate:"required,oneof=jetstream gcp aws memory"`
	Queues    map[string]QueueConfig `mapstructure:"queues"    validate:"required"`
	Jetstream *JetStreamEventsConfig `mapstructure:"jetstream" validate:"required_if=Type jetstream"`
	PubSub    *PubSubConfiguration   `mapstructure:"gcp"       validate:"required_if=Type gcp"`
}

type PubSubConfiguration struct {
	ProjectID          string `mapstructure:"project_id"          validate:"required"`
	SubscriptionSuffix string `mapstructure:"subscription_suffix"`
}

type JetStreamEventsConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port string `mapstructure:"port" validate:"required"`
}

type MailerConfiguration struct {
	Host          string `mapstructure:"host"            validate:"required"`
	Port          int    `mapstructure:"port"            validate:"required"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	Sender        string `mapstructure:"sender"          validate:"required"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	SkipVerifyTLS bool   `mapstructure:"skip_verify_tls"`
}

type NotifierConfiguration struct {
	Type       string                           `mapstructure:"type"       validate:"required,oneof=smtp filesystem"`
	SMTP       *MailerConfiguration             `mapstructure:"smtp"       validate:"required_if=Type smtp"`
	Filesystem *FilesystemNotifierConfiguration `mapstructure:"filesystem" validate:"required_if=Type filesystem"`
}

type FilesystemNotifierConfiguration struct {
	Directory string `mapstructure:"directory" validate:"required"`
}

type ActivityConfiguration struct {
	Type       string                           `mapstructure:"type"       validate:"required,oneof=loki filesystem"`
	Loki       *LokiConfiguration               `mapstructure:"loki"       validate:"required_if=Type loki"`
	Filesystem *FilesystemActivityConfiguration `mapstructure:"filesystem" validate:"required_if=Type filesystem"`
}

type FilesystemActivityConfiguration struct {
	Directory string `mapstructure:"directory" validate:"required"`
}

type LokiConfiguration struct {
	Endpoint string `mapstructure:"endpoint" validate:"required,http_url"`
}

type TelemetryConfiguration struct {
	Tracing   *TracingConfiguration   `mapstructure:"tracing"`
	Profiling *ProfilingConfiguration `mapstructure:"profiling"`
}

type TracingConfiguration struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" validate:"required_if=Enabled true"`
}

type ProfilingConfiguration struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address" validate:"required_if=Enabled true"`
}

// AuthConfig groups authentication-related configuration for services.
// This reduces the number of individual fields passed to services and
// makes it easier to add new auth-related config without modifying service structs.
type AuthConfig struct {
	JWTSecret            string
	EncryptionKey        string
	PendingSessionExpiry int
	SessionExpiry        int
	ResetTokenExpiry     int
	WebURL               string
}

// GetAuthConfig extracts authentication configuration from AppConfiguration.
func (c *AppConfiguration) GetAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:            c.JWTSecret,
		EncryptionKey:        c.EncryptionKey,
		PendingSessionExpiry: c.PendingSessionExpiry,
		SessionExpiry:        c.SessionExpiry,
		ResetTokenExpiry:     c.ResetTokenExpiry,
		WebURL:               c.WebURL,
	}
}
