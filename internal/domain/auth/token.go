package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dronewatch-server-go/internal/platform/errors"
)

const (
	defaultTTL = time.Hour
	issuer     = "dronewatch"
)

// ErrInvalidToken covers every rejected bearer token.
var ErrInvalidToken = errors.New(errors.KindTransport, "auth.verify", "invalid token")

// AuthToken signs and verifies operator scoped JWT tokens.
type AuthToken struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthToken builds a token helper using the provided secret.
func NewAuthToken(secretKey string) (*AuthToken, error) {
	if secretKey == "" {
		return nil, errors.New(errors.KindConfig, "auth.new", "auth token secret cannot be empty")
	}
	return &AuthToken{
		secretKey: []byte(secretKey),
		ttl:       defaultTTL,
		now:       time.Now,
	}, nil
}

// WithTTL allows customising the expiration duration.
func (at *AuthToken) WithTTL(ttl time.Duration) *AuthToken {
	if ttl > 0 {
		at.ttl = ttl
	}
	return at
}

// GenerateToken issues a JWT for subject.
func (at *AuthToken) GenerateToken(subject string) (string, error) {
	now := at.now()
	claims := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(at.ttl)),
	})
	signed, err := claims.SignedString(at.secretKey)
	if err != nil {
		return "", errors.Wrap(errors.KindTransport, "auth.generate", "failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken validates the JWT and returns its subject.
func (at *AuthToken) VerifyToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return at.secretKey, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(at.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", &errors.Error{Kind: errors.KindTransport, Op: "auth.verify", Message: "invalid token", Cause: err}
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
