package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"
)

type Config struct {
	HTTPAddr           string
	HTTPRequestTimeout time.Duration
	GRPCAddr           string
	GRPCRequestTimeout time.Duration
	StorageBackend     string
	DatabaseURL        string
	DBAutoMigrate      bool
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	DBConnMaxIdleTime  time.Duration
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
	LogLevel           string
}

// Load reads an optional .env file from the working directory, then the
// environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("CAREBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// An empty CAREBOOK_GRPC_ADDR disables the gRPC listener.
	v.AllowEmptyEnv(true)

	v.SetDefault("http.addr", ":3000")
	v.SetDefault("http.port", "")
	v.SetDefault("http.request_timeout", "15s")
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("grpc.request_timeout", "10s")
	v.SetDefault("storage.backend", StorageBackendPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "carebook")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")

	_ = v.BindEnv("http.addr", "CAREBOOK_HTTP_ADDR", "HTTP_ADDR")
	_ = v.BindEnv("http.port", "CAREBOOK_HTTP_PORT", "PORT")
	_ = v.BindEnv("http.request_timeout", "CAREBOOK_HTTP_REQUEST_TIMEOUT")
	_ = v.BindEnv("grpc.addr", "CAREBOOK_GRPC_ADDR", "GRPC_ADDR")
	_ = v.BindEnv("grpc.request_timeout", "CAREBOOK_GRPC_REQUEST_TIMEOUT")
	_ = v.BindEnv("storage.backend", "CAREBOOK_STORAGE_BACKEND")
	_ = v.BindEnv("database.url", "CAREBOOK_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.auto_migrate", "CAREBOOK_DATABASE_AUTO_MIGRATE")
	_ = v.BindEnv("database.max_open_conns", "CAREBOOK_DATABASE_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "CAREBOOK_DATABASE_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "CAREBOOK_DATABASE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "CAREBOOK_DATABASE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("database.host", "CAREBOOK_DATABASE_HOST", "DB_HOST")
	_ = v.BindEnv("database.port", "CAREBOOK_DATABASE_PORT", "DB_PORT")
	_ = v.BindEnv("database.user", "CAREBOOK_DATABASE_USER", "DB_USERNAME")
	_ = v.BindEnv("database.password", "CAREBOOK_DATABASE_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("database.name", "CAREBOOK_DATABASE_NAME", "DB_NAME")
	_ = v.BindEnv("cors.allowed_origins", "CAREBOOK_CORS_ALLOWED_ORIGINS", "CORS_ALLOWED_ORIGINS")
	_ = v.BindEnv("shutdown.timeout", "CAREBOOK_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "CAREBOOK_LOG_LEVEL", "LOG_LEVEL")

	httpTimeout, err := time.ParseDuration(v.GetString("http.request_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("http.request_timeout: %w", err)
	}
	grpcTimeout, err := time.ParseDuration(v.GetString("grpc.request_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("grpc.request_timeout: %w", err)
	}
	shutdownTimeout, err := time.ParseDuration(v.GetString("shutdown.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("shutdown.timeout: %w", err)
	}
	connMaxLifetime, err := time.ParseDuration(v.GetString("database.conn_max_lifetime"))
	if err != nil {
		return Config{}, fmt.Errorf("database.conn_max_lifetime: %w", err)
	}
	connMaxIdleTime, err := time.ParseDuration(v.GetString("database.conn_max_idle_time"))
	if err != nil {
		return Config{}, fmt.Errorf("database.conn_max_idle_time: %w", err)
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("storage.backend")))
	switch backend {
	case StorageBackendPostgres, StorageBackendMemory:
	default:
		return Config{}, fmt.Errorf("storage.backend: unknown backend %q", backend)
	}

	httpAddr := strings.TrimSpace(v.GetString("http.addr"))
	if port := strings.TrimSpace(v.GetString("http.port")); port != "" {
		host, _, err := net.SplitHostPort(httpAddr)
		if err != nil {
			host = ""
		}
		httpAddr = net.JoinHostPort(host, port)
	}

	databaseURL := strings.TrimSpace(v.GetString("database.url"))
	if databaseURL == "" {
		databaseURL = composeDatabaseURL(v)
	}

	return Config{
		HTTPAddr:           httpAddr,
		HTTPRequestTimeout: httpTimeout,
		GRPCAddr:           strings.TrimSpace(v.GetString("grpc.addr")),
		GRPCRequestTimeout: grpcTimeout,
		StorageBackend:     backend,
		DatabaseURL:        databaseURL,
		DBAutoMigrate:      v.GetBool("database.auto_migrate"),
		DBMaxOpenConns:     v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:     v.GetInt("database.max_idle_conns"),
		DBConnMaxLifetime:  connMaxLifetime,
		DBConnMaxIdleTime:  connMaxIdleTime,
		CORSAllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		ShutdownTimeout:    shutdownTimeout,
		LogLevel:           v.GetString("log.level"),
	}, nil
}

// composeDatabaseURL builds a connection URL from discrete DB_* settings.
func composeDatabaseURL(v *viper.Viper) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(v.GetString("database.host"), v.GetString("database.port")),
		Path:     "/" + v.GetString("database.name"),
		RawQuery: "sslmode=disable",
	}
	if password := v.GetString("database.password"); password != "" {
		u.User = url.UserPassword(v.GetString("database.user"), password)
	} else {
		u.User = url.User(v.GetString("database.user"))
	}
	return u.String()
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
