package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	Sidecar   SidecarConfig
	RPC       RPCConfig
	Event     EventConfig
	RabbitMQ  RabbitMQConfig
	Billing   BillingConfig
	Telemetry TelemetryConfig
	Swagger   SwaggerConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	SlowThreshold   time.Duration // statements slower than this log at warn; zero disables
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
}

// SwaggerConfig controls the /swagger API documentation endpoint
type SwaggerConfig struct {
	Enabled    bool
	AllowedIPs []string // single addresses or CIDR ranges; empty allows everyone
}

// GRPCConfig holds the inbound gRPC server settings of a domain service
type GRPCConfig struct {
	Port string
}

// SidecarConfig locates the co-located sidecar. All outbound calls and
// publishes go through it.
type SidecarConfig struct {
	Host     string
	HTTPPort int
	GRPCPort int
}

// GRPCAddress returns host:grpc_port
func (s SidecarConfig) GRPCAddress() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.GRPCPort))
}

// HTTPBaseURL returns http://host:http_port
func (s SidecarConfig) HTTPBaseURL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
}

// ServiceTargetConfig describes one remote domain service reachable through the sidecar
type ServiceTargetConfig struct {
	Proto   string `mapstructure:"proto"`
	Package string `mapstructure:"package"`
	Service string `mapstructure:"service"`
	AppID   string `mapstructure:"app_id"`
}

// RPCConfig holds outbound RPC settings
type RPCConfig struct {
	DefaultTimeout time.Duration
	ProtoDir       string
	Services       map[string]ServiceTargetConfig
}

// EventConfig holds event publishing and ingestion configuration
type EventConfig struct {
	Publisher        string // sidecar, rabbitmq, outbox
	PubSubName       string
	PublishTimeout   time.Duration
	DedupeDeliveries bool
	DedupeBackend    string // memory, redis
	DedupeTTL        time.Duration
	OutboxDelegate   string // sidecar, rabbitmq
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int
	CleanupEnabled   bool
	CleanupRetention time.Duration
}

// RabbitMQConfig holds the broker settings used by the rabbitmq publisher
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// BillingConfig holds invoice generation settings
type BillingConfig struct {
	TaxRate        decimal.Decimal
	Currency       string
	DueDays        int
	CounterBackend string // database, redis
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
	ProfilingEnabled  bool
	ProfilingServer   string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERP_ prefix (e.g., ERP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		GRPC: GRPCConfig{
			Port: v.GetString("grpc.port"),
		},
		Sidecar: SidecarConfig{
			Host:     v.GetString("sidecar.host"),
			HTTPPort: v.GetInt("sidecar.http_port"),
			GRPCPort: v.GetInt("sidecar.grpc_port"),
		},
		RPC: RPCConfig{
			DefaultTimeout: v.GetDuration("rpc.default_timeout"),
			ProtoDir:       v.GetString("rpc.proto_dir"),
		},
		Event: EventConfig{
			Publisher:        v.GetString("event.publisher"),
			PubSubName:       v.GetString("event.pubsub_name"),
			PublishTimeout:   v.GetDuration("event.publish_timeout"),
			DedupeDeliveries: v.GetBool("event.dedupe_deliveries"),
			DedupeBackend:    v.GetString("event.dedupe_backend"),
			DedupeTTL:        v.GetDuration("event.dedupe_ttl"),
			OutboxDelegate:   v.GetString("event.outbox_delegate"),
			BatchSize:        v.GetInt("event.batch_size"),
			PollInterval:     v.GetDuration("event.poll_interval"),
			MaxRetries:       v.GetInt("event.max_retries"),
			CleanupEnabled:   v.GetBool("event.cleanup_enabled"),
			CleanupRetention: v.GetDuration("event.cleanup_retention"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("rabbitmq.url"),
			Exchange: v.GetString("rabbitmq.exchange"),
		},
		Billing: BillingConfig{
			Currency:       v.GetString("billing.currency"),
			DueDays:        v.GetInt("billing.due_days"),
			CounterBackend: v.GetString("billing.counter_backend"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
	}

	cfg.Swagger = SwaggerConfig{
		Enabled:    cfg.App.Env != "production",
		AllowedIPs: v.GetStringSlice("swagger.allowed_ips"),
	}
	if v.IsSet("swagger.enabled") {
		cfg.Swagger.Enabled = v.GetBool("swagger.enabled")
	}

	cfg.Billing.TaxRate = DefaultTaxRate
	if raw := v.GetString("billing.tax_rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("billing.tax_rate: %w", err)
		}
		cfg.Billing.TaxRate = rate
	}

	if v.IsSet("rpc.services") {
		services := make(map[string]ServiceTargetConfig)
		if err := v.UnmarshalKey("rpc.services", &services); err != nil {
			return nil, fmt.Errorf("rpc.services: %w", err)
		}
		cfg.RPC.Services = services
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultTaxRate is applied when billing.tax_rate is not configured
var DefaultTaxRate = decimal.RequireFromString("0.21")

// DefaultServices are the domain services the gateway knows about when
// rpc.services is not configured.
func DefaultServices() map[string]ServiceTargetConfig {
	return map[string]ServiceTargetConfig{
		"billing": {
			Proto: "billing/v1/billing.proto", Package: "autoshop.billing.v1",
			Service: "BillingService", AppID: "billing-service",
		},
		"customers": {
			Proto: "workshop/v1/workshop.proto", Package: "autoshop.workshop.v1",
			Service: "CustomerService", AppID: "customer-service",
		},
		"vehicles": {
			Proto: "workshop/v1/workshop.proto", Package: "autoshop.workshop.v1",
			Service: "VehicleService", AppID: "customer-service",
		},
		"parts": {
			Proto: "workshop/v1/workshop.proto", Package: "autoshop.workshop.v1",
			Service: "PartService", AppID: "inventory-service",
		},
		"work-orders": {
			Proto: "workshop/v1/workshop.proto", Package: "autoshop.workshop.v1",
			Service: "WorkOrderService", AppID: "workorder-service",
		},
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "autoshop"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "autoshop"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.GRPC.Port == "" {
		cfg.GRPC.Port = "50051"
	}
	if cfg.Sidecar.Host == "" {
		cfg.Sidecar.Host = "127.0.0.1"
	}
	if cfg.Sidecar.HTTPPort == 0 {
		cfg.Sidecar.HTTPPort = 3500
	}
	if cfg.Sidecar.GRPCPort == 0 {
		cfg.Sidecar.GRPCPort = 50001
	}
	if cfg.RPC.DefaultTimeout == 0 {
		cfg.RPC.DefaultTimeout = 10 * time.Second
	}
	if cfg.RPC.ProtoDir == "" {
		cfg.RPC.ProtoDir = "api/proto"
	}
	if len(cfg.RPC.Services) == 0 {
		cfg.RPC.Services = DefaultServices()
	}
	if cfg.Event.Publisher == "" {
		cfg.Event.Publisher = "sidecar"
	}
	if cfg.Event.PubSubName == "" {
		cfg.Event.PubSubName = "pubsub"
	}
	if cfg.Event.PublishTimeout == 0 {
		cfg.Event.PublishTimeout = 5 * time.Second
	}
	if cfg.Event.DedupeBackend == "" {
		cfg.Event.DedupeBackend = "memory"
	}
	if cfg.Event.DedupeTTL == 0 {
		cfg.Event.DedupeTTL = 24 * time.Hour
	}
	if cfg.Event.OutboxDelegate == "" {
		cfg.Event.OutboxDelegate = "sidecar"
	}
	if cfg.Event.BatchSize == 0 {
		cfg.Event.BatchSize = 100
	}
	if cfg.Event.PollInterval == 0 {
		cfg.Event.PollInterval = 5 * time.Second
	}
	if cfg.Event.MaxRetries == 0 {
		cfg.Event.MaxRetries = 5
	}
	if cfg.Event.CleanupRetention == 0 {
		cfg.Event.CleanupRetention = 168 * time.Hour
	}
	if cfg.RabbitMQ.Exchange == "" {
		cfg.RabbitMQ.Exchange = "autoshop.events"
	}
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "EUR"
	}
	if cfg.Billing.DueDays == 0 {
		cfg.Billing.DueDays = 30
	}
	if cfg.Billing.CounterBackend == "" {
		cfg.Billing.CounterBackend = "database"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	var errs []error

	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, fmt.Errorf("database.max_open_conns must be positive"))
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns))
	}
	if c.RPC.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("rpc.default_timeout cannot be negative"))
	}
	for id, svc := range c.RPC.Services {
		if svc.Proto == "" || svc.Service == "" || svc.AppID == "" {
			errs = append(errs, fmt.Errorf("rpc.services.%s requires proto, service and app_id", id))
		}
	}

	switch c.Event.Publisher {
	case "sidecar", "outbox":
	case "rabbitmq":
		if c.RabbitMQ.URL == "" {
			errs = append(errs, fmt.Errorf("rabbitmq.url is required when event.publisher is rabbitmq"))
		}
	default:
		errs = append(errs, fmt.Errorf("event.publisher must be one of sidecar, rabbitmq, outbox, got %q", c.Event.Publisher))
	}
	if c.Event.OutboxDelegate != "sidecar" && c.Event.OutboxDelegate != "rabbitmq" {
		errs = append(errs, fmt.Errorf("event.outbox_delegate must be sidecar or rabbitmq, got %q", c.Event.OutboxDelegate))
	}
	if c.Event.DedupeBackend != "memory" && c.Event.DedupeBackend != "redis" {
		errs = append(errs, fmt.Errorf("event.dedupe_backend must be memory or redis, got %q", c.Event.DedupeBackend))
	}

	if c.Billing.TaxRate.IsNegative() || c.Billing.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("billing.tax_rate must be between 0 and 1, got %s", c.Billing.TaxRate))
	}
	if len(c.Billing.Currency) != 3 {
		errs = append(errs, fmt.Errorf("billing.currency must be an ISO 4217 code, got %q", c.Billing.Currency))
	}
	if c.Billing.CounterBackend != "database" && c.Billing.CounterBackend != "redis" {
		errs = append(errs, fmt.Errorf("billing.counter_backend must be database or redis, got %q", c.Billing.CounterBackend))
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password is required in production"))
		}
		if c.Database.SSLMode == "disable" {
			errs = append(errs, fmt.Errorf("database.sslmode cannot be 'disable' in production"))
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				errs = append(errs, fmt.Errorf("cors_allow_origins cannot be '*' in production"))
			}
		}
		if c.Swagger.Enabled && len(c.Swagger.AllowedIPs) == 0 {
			errs = append(errs, fmt.Errorf("swagger endpoint must be disabled or restricted by swagger.allowed_ips in production"))
		}
	}
	for _, entry := range c.Swagger.AllowedIPs {
		if !validIPOrCIDR(entry) {
			errs = append(errs, fmt.Errorf("swagger.allowed_ips: %q is neither an IP address nor a CIDR range", entry))
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio))
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServer == "" {
		errs = append(errs, fmt.Errorf("telemetry.profiling_server is required when profiling is enabled"))
	}

	return errors.Join(errs...)
}

func validIPOrCIDR(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
