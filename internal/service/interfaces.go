package service

import (
	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/security"
)

// AccessTokenVerifier is what authorization middleware needs from the token
// engine: stateless claim verification.
type AccessTokenVerifier interface {
	VerifyAccessToken(raw string) *security.Claims
}

// RoleResolver is what route guards need from the RBAC engine.
type RoleResolver interface {
	HighestRole(accountID string) (domain.Role, bool, error)
}
