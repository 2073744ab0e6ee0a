package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"connectrpc.com/authn"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/address"
)

// Config controls token verification.
type Config struct {
	// Audience, when set, must appear in the token's aud claim.
	Audience string

	// MaxTTL bounds the lifetime a token may claim. Defaults to 15 minutes.
	MaxTTL time.Duration

	// Leeway tolerates clock skew between client and server. Defaults to 30 seconds.
	Leeway time.Duration

	// PublicPaths are served without a token. /health is always public.
	PublicPaths []string
}

func (c *Config) applyDefaults() {
	if c.MaxTTL <= 0 {
		c.MaxTTL = 15 * time.Minute
	}
	if c.Leeway <= 0 {
		c.Leeway = 30 * time.Second
	}
}

// Verifier checks self-certifying signer tokens: the token is signed by the ed25519
// key whose base58 encoding is the subject.
type Verifier struct {
	cfg Config
	now func() time.Time
}

// NewVerifier creates a verifier.
func NewVerifier(cfg Config) *Verifier {
	cfg.applyDefaults()
	return &Verifier{cfg: cfg, now: time.Now}
}

// Verify returns the identity that signed tokenStr.
func (v *Verifier) Verify(tokenStr string) (address.Address, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	var signer address.Address

	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		sub, err := t.Claims.GetSubject()
		if err != nil {
			return nil, err
		}
		signer, err = address.Parse(sub)
		if err != nil {
			return nil, fmt.Errorf("invalid subject: %w", err)
		}
		return signer.PublicKey(), nil
	}, opts...)
	if err != nil {
		return address.Zero, err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.IssuedAt == nil {
		return address.Zero, errors.New("invalid claims")
	}

	if lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time); lifetime > v.cfg.MaxTTL {
		return address.Zero, fmt.Errorf("token lifetime %s exceeds %s", lifetime, v.cfg.MaxTTL)
	}

	return signer, nil
}

// AuthFunc returns an authn.AuthFunc that authenticates Bearer tokens.
// The signer identity can be retrieved with Signer.
func (v *Verifier) AuthFunc() authn.AuthFunc {
	return func(ctx context.Context, req *http.Request) (any, error) {
		if req.URL.Path == "/health" || slices.Contains(v.cfg.PublicPaths, req.URL.Path) {
			return nil, nil
		}

		tokenStr, ok := authn.BearerToken(req)
		if !ok {
			return nil, authn.Errorf("missing bearer token")
		}

		signer, err := v.Verify(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("path", req.URL.Path).Msg("JWT verification failed")
			return nil, authn.Errorf("invalid token")
		}

		return signer, nil
	}
}

// Signer returns the authenticated identity of the request.
func Signer(ctx context.Context) (address.Address, bool) {
	signer, ok := authn.GetInfo(ctx).(address.Address)
	return signer, ok
}

// WithSigner returns a context carrying signer, as the authn middleware does.
func WithSigner(ctx context.Context, signer address.Address) context.Context {
	return authn.SetInfo(ctx, signer)
}
