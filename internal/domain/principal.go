package domain

import (
	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/role"
)

// AuthMethod describes how a caller authenticated with the API.
type AuthMethod string

const (
	AuthMethodJWT     AuthMethod = "jwt"
	AuthMethodGateway AuthMethod = "gateway"
)

// Principal captures normalized caller identity independent of auth mechanism.
type Principal struct {
	ID           string
	AuthMethod   AuthMethod
	Email        string
	Role         role.Role
	EnterpriseID string
}

// Owner scopes conversation operations to this principal.
func (p Principal) Owner() conversation.Owner {
	return conversation.Owner{
		UserID:       p.ID,
		Email:        p.Email,
		Role:         p.Role,
		EnterpriseID: p.EnterpriseID,
	}
}
