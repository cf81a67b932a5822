package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"
	"time"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is what a verified token asserts.
type Claims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// TokenService signs and verifies EdDSA JWTs whose subject is a user id.
type TokenService struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
	now        func() time.Time
}

// ParseTokenTTL reads a TOKEN_EXPIRE_TIME value. "never", "0" and the empty
// string mean tokens do not expire.
func ParseTokenTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "never" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// NewTokenService generates a fresh ed25519 key pair. Tokens do not survive a
// restart.
func NewTokenService(ttl time.Duration) (*TokenService, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &TokenService{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// NewTokenServiceFromPath reads raw ed25519 private and public keys from disk.
func NewTokenServiceFromPath(privatePath, publicPath string, ttl time.Duration) (*TokenService, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 key sizes: private %d, public %d", len(privateKeyData), len(publicKeyData))
	}
	return &TokenService{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// CreateToken signs a token with sub = userID and, when a TTL is set, exp.
func (s *TokenService) CreateToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.privateKey)
}

// VerifyToken checks the signature and expiry of a token and returns its
// claims. Every failure is an authentication error.
func (s *TokenService) VerifyToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperr.New(apperr.CodeAuthentication, "missing token")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeAuthentication, "invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeAuthentication, "invalid subject")
	}
	out := &Claims{UserID: userID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
