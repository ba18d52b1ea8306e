package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fleetway/fleetway/internal/domain"
)

type Claims struct {
	TokenType string `json:"token_type"`
	Username  string `json:"username,omitempty"`
	Elevated  bool   `json:"elevated,omitempty"`
	Role      string `json:"role,omitempty"`
	FamilyID  string `json:"family_id,omitempty"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
}

func NewJWTManager(issuer, audience, secret string) *JWTManager {
	return &JWTManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(secret),
	}
}

func (m *JWTManager) SignAccessToken(account *domain.Account, role domain.Role, ttl time.Duration) (string, error) {
	claims := Claims{
		TokenType: "access",
		Username:  account.Username,
		Elevated:  account.Elevated,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   account.ID,
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        newJTI(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// SignRefreshToken carries only identity and lineage: the session record id
// as jti and the rotation family. Everything else lives in storage.
func (m *JWTManager) SignRefreshToken(accountID, sessionID, familyID string, ttl time.Duration) (string, error) {
	claims := Claims{
		TokenType: "refresh",
		FamilyID:  familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   accountID,
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        sessionID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *JWTManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, "access")
}

func (m *JWTManager) ParseRefreshToken(raw string) (*Claims, error) {
	return m.parse(raw, "refresh")
}

func (m *JWTManager) parse(raw, tokenType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}
