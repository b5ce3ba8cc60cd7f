package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidSecret = errors.New("invalid secret key")
	ErrMissingToken  = errors.New("authorization token is missing")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

const (
	adminSubject = "onfa-admin"
	tokenIssuer  = "onfa-ticketing"
)

// Claims of an admin session token.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer trades the shared admin secret for a short lived HS256 token.
type Issuer struct {
	secret     []byte
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewIssuer generates a throwaway signing key when none is configured, so
// tokens stop validating after a restart.
func NewIssuer(secret, signingKey string, ttl time.Duration) *Issuer {
	key := []byte(signingKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: []byte(secret), signingKey: key, ttl: ttl, now: time.Now}
}

// Enabled is false when no admin secret is configured; admin routes are then open.
func (i *Issuer) Enabled() bool {
	return len(i.secret) > 0
}

func (i *Issuer) Login(secret string) (string, time.Time, error) {
	if !i.Enabled() {
		return i.sign()
	}
	given := []byte(strings.TrimSpace(secret))
	if subtle.ConstantTimeCompare(given, i.secret) != 1 {
		return "", time.Time{}, ErrInvalidSecret
	}
	return i.sign()
}

func (i *Issuer) sign() (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   adminSubject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(adminSubject),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// ExtractTokenFromRequest reads a bearer token, falling back to the token
// query parameter which EventSource clients have to use.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, nil
		}
		return "", ErrMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}
	return parts[1], nil
}
