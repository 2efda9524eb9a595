package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"carebook/backend/internal/config"
	"carebook/backend/internal/observability/metrics"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/service/patients"
	"carebook/backend/internal/store"
	"carebook/backend/internal/store/memory"
	"carebook/backend/internal/store/postgres"
	grpcTransport "carebook/backend/internal/transport/grpc"
	"carebook/backend/internal/transport/rest"
)

const serviceName = "carebook-server"

func main() {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Clinic patient and appointment scheduling server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(log *slog.Logger, m *postgres.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return logVersion(log, m, "migrations applied")
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			return withMigrator(func(log *slog.Logger, m *postgres.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return logVersion(log, m, "migrations rolled back")
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(log *slog.Logger, m *postgres.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(log *slog.Logger, m *postgres.Migrator) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if cfg.StorageBackend != config.StorageBackendPostgres {
		return fmt.Errorf("migrations require the %s storage backend, got %s", config.StorageBackendPostgres, cfg.StorageBackend)
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	m, err := postgres.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("migrator close failed", slog.Any("err", err))
		}
	}()
	return fn(log, m)
}

func logVersion(log *slog.Logger, m *postgres.Migrator, msg string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info(msg, slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}

// setup loads configuration and installs the JSON logger at the configured
// level as the default.
func setup() (config.Config, *slog.Logger, error) {
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, log, fmt.Errorf("config load: %w", err)
	}

	log = newLogger(parseLogLevel(cfg.LogLevel))
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", serviceName),
	)
}

type storage struct {
	patients     store.PatientRepository
	appointments store.AppointmentRepository
	health       rest.Pinger
	close        func() error
}

func openStorage(cfg config.Config, log *slog.Logger) (storage, error) {
	if cfg.StorageBackend == config.StorageBackendMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		s := memory.New()
		return storage{
			patients:     s.Patients(),
			appointments: s.Appointments(),
			health:       s,
			close:        func() error { return nil },
		}, nil
	}

	if cfg.DBAutoMigrate {
		log.Info("applying migrations", databaseLogArgs(cfg.DatabaseURL)...)
		m, err := postgres.NewMigrator(cfg.DatabaseURL)
		if err != nil {
			return storage{}, err
		}
		err = m.Up()
		if cerr := m.Close(); cerr != nil {
			log.Warn("migrator close failed", slog.Any("err", cerr))
		}
		if err != nil {
			return storage{}, err
		}
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return storage{}, err
	}
	return storage{
		patients:     postgres.NewPatientRepo(db),
		appointments: postgres.NewAppointmentRepo(db),
		health:       postgres.NewPinger(db),
		close:        func() error { return postgres.Close(db) },
	}, nil
}

func runServer() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("storage", cfg.StorageBackend),
		slog.String("log_level", cfg.LogLevel),
	)

	st, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn("storage close failed", slog.Any("err", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	schedMetrics := metrics.NewSchedulingMetrics(reg)

	patientSvc := patients.NewService(st.patients, st.appointments, schedMetrics)
	appointmentSvc := appointments.NewService(st.appointments, st.patients, schedMetrics)

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: rest.NewRouter(rest.Config{
			Patients:           patientSvc,
			Appointments:       appointmentSvc,
			Health:             st.health,
			Logger:             log,
			Metrics:            metrics.NewHTTPMetrics(reg),
			MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			RequestTimeout:     cfg.HTTPRequestTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error("http listen failed", slog.Any("err", err), slog.String("http_addr", cfg.HTTPAddr))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	var (
		grpcServer   *grpc.Server
		healthServer *health.Server
	)
	if cfg.GRPCAddr != "" {
		grpcServer = grpc.NewServer(
			grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
		)
		grpcTransport.RegisterSchedulingServer(grpcServer, grpcTransport.NewSchedulingServer(appointmentSvc, log))

		healthServer = health.NewServer()
		healthServer.SetServingStatus(grpcTransport.ServiceName, healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcServer, healthServer)

		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
			shutdownHTTP(log, httpServer, cfg.ShutdownTimeout)
			return err
		}
		go func() {
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr))
	} else {
		log.Info("grpc server disabled")
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-errCh:
		log.Error("server stopped with error", slog.Any("err", serveErr))
	}

	if healthServer != nil {
		healthServer.Shutdown()
	}
	shutdownHTTP(log, httpServer, cfg.ShutdownTimeout)
	if grpcServer != nil {
		shutdownGRPC(log, grpcServer, cfg.ShutdownTimeout)
	}
	return serveErr
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func shutdownHTTP(log *slog.Logger, s *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown timed out; forcing close", slog.Any("err", err))
		_ = s.Close()
		return
	}
	log.Info("http server stopped")
}

func shutdownGRPC(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
