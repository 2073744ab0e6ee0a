package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/auth"
	"github.com/wolfeidau/payroll/internal/journal"
	"github.com/wolfeidau/payroll/internal/ledger"
	"github.com/wolfeidau/payroll/internal/logger"
	"github.com/wolfeidau/payroll/internal/server"
	"github.com/wolfeidau/payroll/internal/store"
	memorystore "github.com/wolfeidau/payroll/internal/store/memory"
	postgresstore "github.com/wolfeidau/payroll/internal/store/postgres"
	"github.com/wolfeidau/payroll/internal/telemetry"
)

// ServeCmd runs the payroll ledger server.
type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"localhost:8993" env:"PAYROLL_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves cleartext HTTP/2 when empty" default:"" env:"PAYROLL_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"PAYROLL_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" env:"PAYROLL_CORS_ORIGINS"`

	// Ledger configuration
	ProgramID string `help:"program ID that namespaces derived addresses" default:"${program_id}" env:"PAYROLL_PROGRAM_ID"`
	Audience  string `help:"required audience of signer tokens, usually the public server URL" default:"" env:"PAYROLL_AUDIENCE"`

	// Faucet configuration
	Faucet         bool          `help:"enable the airdrop faucet (development only)" default:"false" env:"PAYROLL_FAUCET"`
	FaucetMax      uint64        `help:"maximum lamports per airdrop" default:"10000000000" env:"PAYROLL_FAUCET_MAX"`
	FaucetCooldown time.Duration `help:"minimum time between airdrops per client IP" default:"10s" env:"PAYROLL_FAUCET_COOLDOWN"`

	// Telemetry
	Tracing          bool    `help:"enable tracing" default:"false" env:"PAYROLL_TRACING"`
	TraceSampleRatio float64 `help:"fraction of traces sampled" default:"1" env:"PAYROLL_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"PAYROLL_STORE_TYPE" enum:"memory,postgres"`
	JournalPath   string             `help:"journal file for the memory store, state is lost on restart when empty" default:"" env:"PAYROLL_JOURNAL" type:"path"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

// PostgresStoreFlags configure the PostgreSQL account store.
type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`
	QueryTimeout    int32 `help:"query timeout in seconds" default:"10"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"PAYROLL_POSTGRES_AUTO_MIGRATE"`
}

// validate is only called when the postgres store is selected.
func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	if s.MinConns > s.MaxConns {
		return fmt.Errorf("--postgres-min-conns (%d) exceeds --postgres-max-conns (%d)", s.MinConns, s.MaxConns)
	}
	return nil
}

// Validate is called by kong after parsing.
func (c *ServeCmd) Validate() error {
	if (c.Cert == "") != (c.Key == "") {
		return errors.New("--cert and --key must be provided together")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("--trace-sample-ratio must be between 0 and 1, got %g", c.TraceSampleRatio)
	}
	if _, err := address.Parse(c.ProgramID); err != nil {
		return fmt.Errorf("invalid --program-id: %w", err)
	}
	if c.StoreType == "postgres" {
		return c.PostgresStore.validate()
	}
	return nil
}

// warnings lists configuration that is unsafe outside development.
func (c *ServeCmd) warnings() []string {
	var warnings []string
	if c.Faucet {
		warnings = append(warnings, "Faucet is enabled (--faucet). This should only be used in development!")
	}
	if c.Audience == "" {
		warnings = append(warnings, "Signer tokens are not bound to an audience (--audience), a captured token can be replayed against any server until it expires")
	}
	if c.Cert == "" {
		warnings = append(warnings, "TLS is disabled, signer tokens travel in cleartext")
	}
	return warnings
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	var interceptors []connect.Interceptor
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "payroll-server",
			Version:     globals.Version,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create OTEL interceptor: %w", err)
		}
		interceptors = append(interceptors, otelInterceptor)
	}

	accountStore, closeStore, err := c.openStore(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	program := ledger.New(accountStore, ledger.WithProgramID(address.MustParse(c.ProgramID)))

	srv := server.NewServer(program, server.Config{
		Auth:        auth.Config{Audience: c.Audience},
		CORSOrigins: c.CORSOrigins,
		Faucet: server.FaucetConfig{
			Enabled:     c.Faucet,
			MaxLamports: c.FaucetMax,
			Cooldown:    c.FaucetCooldown,
		},
	})

	for _, warning := range c.warnings() {
		log.Warn().Msg(warning)
	}

	httpServer := configureHTTPServer(c.Listen, srv.Handler(log, interceptors...))

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", c.Listen).
			Str("program_id", program.ProgramID().String()).
			Bool("tls", c.Cert != "").
			Msg("Starting HTTP server")

		if c.Cert != "" {
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// openStore creates the configured account store and returns a func that releases it.
func (c *ServeCmd) openStore(ctx context.Context, log zerolog.Logger) (store.AccountStore, func(), error) {
	switch c.StoreType {
	case "postgres":
		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		accountStore, err := postgresstore.NewAccountStore(ctx, pool, &postgresstore.AccountStoreConfig{
			AutoMigrate:         c.PostgresStore.AutoMigrate,
			QueryTimeoutSeconds: c.PostgresStore.QueryTimeout,
		})
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create account store: %w", err)
		}

		monitorCtx, cancel := context.WithCancel(ctx)
		go accountStore.MonitorPool(monitorCtx, 30*time.Second)

		log.Info().Bool("auto_migrate", c.PostgresStore.AutoMigrate).Msg("Using PostgreSQL account store")

		return accountStore, func() {
			cancel()
			pool.Close()
		}, nil

	default:
		if c.JournalPath == "" {
			log.Warn().Msg("Using in-memory account store without a journal, state is lost on restart")
			return memorystore.NewAccountStore(), func() {}, nil
		}

		j, err := journal.Open(c.JournalPath)
		if err != nil {
			return nil, nil, err
		}

		accountStore := memorystore.NewAccountStore(memorystore.WithJournal(j))
		if err := accountStore.Restore(ctx); err != nil {
			_ = j.Close()
			return nil, nil, fmt.Errorf("failed to restore from journal: %w", err)
		}

		log.Info().Str("journal", c.JournalPath).Msg("Using in-memory account store with journal")

		return accountStore, func() {
			if err := j.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close journal")
			}
		}, nil
	}
}
