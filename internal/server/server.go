package server

import (
	"net/http"
	"time"

	"connectrpc.com/authn"
	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/auth"
	httpmiddleware "github.com/wolfeidau/payroll/internal/http"
	"github.com/wolfeidau/payroll/internal/ledger"
	"github.com/wolfeidau/payroll/internal/logger"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// FaucetConfig controls the development airdrop endpoint.
type FaucetConfig struct {
	Enabled     bool
	MaxLamports uint64
	Cooldown    time.Duration
}

// Config holds the HTTP facing settings of the server.
type Config struct {
	// Auth configures signer token verification.
	Auth auth.Config

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string

	Faucet FaucetConfig
}

// Server wraps the HTTP handler and the payroll service
type Server struct {
	cfg     Config
	service *PayrollService
}

// NewServer creates a new server for program
func NewServer(program *ledger.Program, cfg Config) *Server {
	cfg.Auth.PublicPaths = append(cfg.Auth.PublicPaths, api.PublicProcedures...)

	return &Server{
		cfg:     cfg,
		service: NewPayrollService(program, cfg.Faucet),
	}
}

// Handler returns the HTTP handler for the server. It serves HTTP/1.1 and
// cleartext HTTP/2 so gRPC clients work without TLS.
func (s *Server) Handler(log zerolog.Logger, interceptors ...connect.Interceptor) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	interceptors = append([]connect.Interceptor{logger.NewConnectRequests(log)}, interceptors...)

	path, handler := api.NewPayrollServiceHandler(s.service, connect.WithInterceptors(interceptors...))

	authMiddleware := authn.NewMiddleware(auth.NewVerifier(s.cfg.Auth).AuthFunc())
	mux.Handle(path, authMiddleware.Wrap(handler))

	log.Info().Str("path", path).Bool("faucet", s.cfg.Faucet.Enabled).Msg("Payroll service registered")

	var root http.Handler = mux
	root = withCORS(s.cfg.CORSOrigins, root)
	root = httpmiddleware.ClientIPMiddleware(log)(root)

	return h2c.NewHandler(root, &http2.Server{})
}

// withCORS adds CORS support to a Connect HTTP handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return h
	}

	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: append(connectcors.AllowedHeaders(), "Authorization"),
		ExposedHeaders: append(connectcors.ExposedHeaders(), api.ErrorHeader),
	})
	return middleware.Handler(h)
}
