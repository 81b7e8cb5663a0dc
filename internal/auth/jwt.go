// Package auth validates bearer tokens carrying a tenant_id claim, ported
// from the teacher's apps/rag-loader/internal/auth/jwt.go and generalised:
// memoryd has no user/role model, so only the tenant claim survives.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is the JWT payload memoryd issues and accepts.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Validator validates and issues HS256 tokens carrying a tenant_id claim.
type Validator struct {
	secretKey []byte
	issuer    string
}

// NewValidator builds a Validator. A nil/empty secretKey means auth is
// disabled; callers check Enabled() before wiring the middleware.
func NewValidator(secretKey []byte, issuer string) *Validator {
	return &Validator{secretKey: secretKey, issuer: issuer}
}

// Enabled reports whether a secret key was configured.
func (v *Validator) Enabled() bool {
	return len(v.secretKey) > 0
}

// ValidateBearer extracts and validates the token from an
// "Authorization: Bearer <token>" header value.
func (v *Validator) ValidateBearer(authHeader string) (*Claims, error) {
	tokenString, err := extractBearerToken(authHeader)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TenantID == "" {
		return nil, errors.New("token missing tenant_id claim")
	}
	return claims, nil
}

// IssueToken mints a token for tenantID, valid for ttl. Only the tests
// call it; memoryd has no signup flow of its own.
func (v *Validator) IssueToken(tenantID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secretKey)
}

func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}
