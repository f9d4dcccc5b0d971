package tokenizer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

const (
	DefaultIssuer   = "payroll-auth"
	DefaultAudience = "session:access"
)

var (
	ErrIssuerMismatch   = errors.New("unexpected issuer")
	ErrAudienceMismatch = errors.New("unexpected audience")
	ErrMissingClaims    = errors.New("missing required claims")
)

// JWTTokenizer implements the Tokenizer interface with HS256 JWTs.
// The key is read-only after construction, so one instance serves all goroutines.
type JWTTokenizer struct {
	signKey  []byte
	issuer   string
	audience string
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey []byte, issuer, audience string) ports.Tokenizer {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if audience == "" {
		audience = DefaultAudience
	}
	key := make([]byte, len(signKey))
	copy(key, signKey)
	return &JWTTokenizer{signKey: key, issuer: issuer, audience: audience}
}

// Sign converts access claims to a signed JWT
func (j *JWTTokenizer) Sign(claims core.AccessClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   claims.Subject,
			Audience:  jwt.ClaimStrings{j.audience},
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ID:        claims.ID,
		},
		Wallet: claims.Wallet,
	})

	signed, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// Parse verifies the signature, algorithm, issuer and audience and returns the
// claims. Time-based claims are not checked here.
func (j *JWTTokenizer) Parse(tokenStr string) (core.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return j.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return core.AccessClaims{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return core.AccessClaims{}, fmt.Errorf("invalid claims type")
	}

	if claims.Issuer != j.issuer {
		return core.AccessClaims{}, ErrIssuerMismatch
	}
	if !slices.Contains(claims.Audience, j.audience) {
		return core.AccessClaims{}, ErrAudienceMismatch
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil || claims.Subject == "" {
		return core.AccessClaims{}, ErrMissingClaims
	}

	return core.AccessClaims{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Wallet:    claims.Wallet,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
