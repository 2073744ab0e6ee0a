package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payroll/internal/address"
)

func generateKey(t *testing.T) (ed25519.PrivateKey, address.Address) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	identity, err := address.FromPublicKey(pub)
	require.NoError(t, err)
	return priv, identity
}

func bearerRequest(path, token string) *http.Request {
	req := &http.Request{URL: &url.URL{Path: path}, Header: http.Header{}}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	return req
}

func TestVerifier(t *testing.T) {
	const audience = "http://localhost:8993"
	key, identity := generateKey(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	v := NewVerifier(Config{Audience: audience})
	v.now = func() time.Time { return now }

	t.Run("valid token", func(t *testing.T) {
		token, err := issueToken(key, audience, now, time.Minute)
		require.NoError(t, err)

		signer, err := v.Verify(token)
		require.NoError(t, err)
		require.Equal(t, identity, signer)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := issueToken(key, audience, now.Add(-time.Hour), time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("within leeway", func(t *testing.T) {
		token, err := issueToken(key, audience, now.Add(-80*time.Second), time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.NoError(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token, err := issueToken(key, "https://other.example", now, time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
	})

	t.Run("lifetime too long", func(t *testing.T) {
		token, err := issueToken(key, audience, now, 24*time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.ErrorContains(t, err, "exceeds")
	})

	t.Run("subject claims another identity", func(t *testing.T) {
		_, other := generateKey(t)
		claims := &jwt.RegisteredClaims{
			Subject:   other.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("subject is not an address", func(t *testing.T) {
		claims := &jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.Error(t, err)
	})

	t.Run("token without expiry", func(t *testing.T) {
		claims := &jwt.RegisteredClaims{
			Subject:  identity.String(),
			Audience: jwt.ClaimStrings{audience},
			IssuedAt: jwt.NewNumericDate(now),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
	})

	t.Run("token signed with wrong algorithm", func(t *testing.T) {
		claims := &jwt.RegisteredClaims{
			Subject:   identity.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := v.Verify("invalid.token.string")
		require.ErrorIs(t, err, jwt.ErrTokenMalformed)
	})
}

func TestVerifierAuthFunc(t *testing.T) {
	key, identity := generateKey(t)
	authFunc := NewVerifier(Config{PublicPaths: []string{"/payroll.v1.PayrollService/GetBalance"}}).AuthFunc()

	t.Run("health check endpoint", func(t *testing.T) {
		info, err := authFunc(context.Background(), bearerRequest("/health", ""))
		require.NoError(t, err)
		require.Nil(t, info)
	})

	t.Run("public procedure", func(t *testing.T) {
		info, err := authFunc(context.Background(), bearerRequest("/payroll.v1.PayrollService/GetBalance", ""))
		require.NoError(t, err)
		require.Nil(t, info)
	})

	t.Run("missing bearer token", func(t *testing.T) {
		info, err := authFunc(context.Background(), bearerRequest("/payroll.v1.PayrollService/Withdraw", ""))
		require.Error(t, err)
		require.Nil(t, info)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := IssueToken(key, "", DefaultTokenTTL)
		require.NoError(t, err)

		info, err := authFunc(context.Background(), bearerRequest("/payroll.v1.PayrollService/Withdraw", token))
		require.NoError(t, err)
		require.Equal(t, identity, info)
	})

	t.Run("invalid token", func(t *testing.T) {
		info, err := authFunc(context.Background(), bearerRequest("/payroll.v1.PayrollService/Withdraw", "invalid.token.string"))
		require.Error(t, err)
		require.Nil(t, info)
	})
}

func TestSigner(t *testing.T) {
	_, identity := generateKey(t)

	_, ok := Signer(context.Background())
	require.False(t, ok)

	signer, ok := Signer(WithSigner(context.Background(), identity))
	require.True(t, ok)
	require.Equal(t, identity, signer)
}

func TestIssueToken_invalidKey(t *testing.T) {
	_, err := IssueToken(ed25519.PrivateKey([]byte{1, 2, 3}), "", time.Minute)
	require.Error(t, err)
}
