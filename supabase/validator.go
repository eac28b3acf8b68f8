package supabase

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is malformed, badly signed or otherwise invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingSubject is returned when a correctly signed token carries no subject
	ErrMissingSubject = errors.New("token missing sub claim")
)

// SigningMethod is the only algorithm accepted for Supabase tokens
const SigningMethod = "RS256"

// Config holds configuration for Validator
type Config struct {
	// PublicKeyPEM overrides the Supabase signing key. Empty means SupabasePublicKeyPEM.
	PublicKeyPEM string

	// Leeway is the clock skew tolerated on exp/nbf checks
	Leeway time.Duration
}

// Validator verifies Supabase access tokens against a single fixed RSA public key.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

// NewValidator parses the signing key and builds a Validator
func NewValidator(config Config) (*Validator, error) {
	pemKey := config.PublicKeyPEM
	if pemKey == "" {
		pemKey = SupabasePublicKeyPEM
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	// Audience is not checked: Supabase does not issue one the gate can rely on
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{SigningMethod}),
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}

	return &Validator{
		publicKey: publicKey,
		parser:    jwt.NewParser(opts...),
	}, nil
}

// VerifyToken checks the token signature and structure and returns its claims
func (v *Validator) VerifyToken(ctx context.Context, tokenString string) (*VerifiedClaims, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingSubject, err)
	}
	if sub == "" {
		return nil, ErrMissingSubject
	}

	return &VerifiedClaims{
		Subject: sub,
		Payload: claims,
	}, nil
}
