package auth

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfeidau/payroll/internal/address"
)

// DefaultTokenTTL is the lifetime of tokens minted by clients.
const DefaultTokenTTL = 5 * time.Minute

// IssueToken signs a token asserting that the holder of key is the signer.
// The subject is the base58 identity of the key, so the token verifies against itself.
func IssueToken(key ed25519.PrivateKey, audience string, ttl time.Duration) (string, error) {
	return issueToken(key, audience, time.Now(), ttl)
}

func issueToken(key ed25519.PrivateKey, audience string, now time.Time, ttl time.Duration) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", errors.New("invalid ed25519 private key")
	}

	identity, err := address.FromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return "", err
	}

	claims := &jwt.RegisteredClaims{
		Subject:   identity.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "payroll-cli",
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(key)
}
