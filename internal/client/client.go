package client

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"connectrpc.com/connect"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/auth"
	"github.com/wolfeidau/payroll/internal/ledger"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration

	// Key signs instruction tokens. Queries work without one.
	Key ed25519.PrivateKey

	// Audience is placed in signer tokens. Defaults to ServerURL.
	Audience string
	TokenTTL time.Duration
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8993",
		Timeout:   30 * time.Second,
		TokenTTL:  auth.DefaultTokenTTL,
	}
}

// New creates a payroll service client.
func New(cfg Config, opts ...connect.ClientOption) *api.PayrollServiceClient {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.Key != nil {
		audience := cfg.Audience
		if audience == "" {
			audience = cfg.ServerURL
		}
		opts = append(opts, connect.WithInterceptors(NewTokenInterceptor(cfg.Key, audience, cfg.TokenTTL)))
	}

	return api.NewPayrollServiceClient(httpClient, cfg.ServerURL, opts...)
}

// NewTokenInterceptor signs a fresh token for every instruction call.
// Public procedures are sent without one.
func NewTokenInterceptor(key ed25519.PrivateKey, audience string, ttl time.Duration) connect.UnaryInterceptorFunc {
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && !slices.Contains(api.PublicProcedures, req.Spec().Procedure) {
				token, err := auth.IssueToken(key, audience, ttl)
				if err != nil {
					return nil, fmt.Errorf("failed to sign token: %w", err)
				}
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

// Error returns err with the ledger error it carries attached, so callers can
// use errors.Is against ledger errors. Errors without one are returned unchanged.
func Error(err error) error {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return err
	}

	lerr, ok := ledger.ErrorByName(connectErr.Meta().Get(api.ErrorHeader))
	if !ok {
		return err
	}

	return &remoteError{ledger: lerr, err: connectErr}
}

type remoteError struct {
	ledger *ledger.Error
	err    *connect.Error
}

func (e *remoteError) Error() string {
	return e.err.Message()
}

func (e *remoteError) Unwrap() []error {
	return []error{e.ledger, e.err}
}
