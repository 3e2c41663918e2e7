// Package auth verifies the bearer tokens issued by the identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vogiaan1904/listenroom/config"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

var (
	ErrTokenEmpty               = errors.New("token is empty")
	ErrTokenInvalid             = errors.New("token is invalid")
	ErrTokenUnexpectedSignature = errors.New("unexpected signing method")
	ErrTokenInvalidClaims       = errors.New("token claims are invalid")
)

// Identity is the verified caller.
type Identity struct {
	UserID string
	Admin  bool
}

type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
	Issue(userID string, admin bool, ttl time.Duration) (string, error)
}

type jwtVerifier struct {
	conf config.JWTConfig
	l    logger.Logger
}

func NewVerifier(conf config.JWTConfig, l logger.Logger) Verifier {
	return &jwtVerifier{
		conf: conf,
		l:    l,
	}
}

func (v *jwtVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrTokenEmpty
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.conf.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.conf.Issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenUnexpectedSignature
		}
		return []byte(v.conf.Secret), nil
	}, opts...)
	if err != nil {
		v.l.Warnf(ctx, "Invalid JWT token: %v", err)
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return Identity{}, ErrTokenInvalidClaims
	}

	return Identity{UserID: claims.Subject, Admin: claims.Admin}, nil
}

// Issue signs a token for userID. Used by tooling and tests; production
// tokens come from the identity service.
func (v *jwtVerifier) Issue(userID string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.conf.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(v.conf.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenStr, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
