package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campus-relay/domain"
	"campus-relay/errors"
)

// ConnectionClaims is what the account service puts inside the JWT a
// client presents at WebSocket upgrade.
type ConnectionClaims struct {
	IdentityID domain.IdentityID `json:"identity_id"`
	Role       domain.Role       `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates connection tokens. The secret is
// shared with the account service that issues tokens at login.
type TokenManager struct {
	secret   []byte
	issuer   string
	duration time.Duration
}

func NewTokenManager(secret []byte, issuer string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: secret, issuer: issuer, duration: duration}
}

// Generate creates a signed JWT for an identity. The relay itself only
// needs this for tooling and tests; production tokens come from the
// account service with the same secret.
func (m *TokenManager) Generate(identityID domain.IdentityID, role domain.Role) (string, error) {
	now := time.Now()
	claims := &ConnectionClaims{
		IdentityID: identityID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and checks the signature and expiration of a token.
func (m *TokenManager) Validate(tokenString string) (*ConnectionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ConnectionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ConnectionClaims)
	if !ok || !token.Valid || claims.IdentityID <= 0 {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
