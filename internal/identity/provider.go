// Package identity is the boundary to the identity provider. Credential
// storage and password hashing are external concerns; filehub only consumes
// the Provider interface and ships a small token-based implementation.
package identity

import (
	"context"

	"github.com/anuwat/filehub/internal/errs"
)

// Role of an authenticated principal.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the principal may perform write operations.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Credentials presented at login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Provider authenticates credentials into tokens and authorizes tokens back
// into principals.
type Provider interface {
	Authenticate(ctx context.Context, creds Credentials) (string, error)
	Authorize(ctx context.Context, token string) (*Principal, error)
}

// ErrInvalidCredentials is returned by Authenticate on a bad username or
// password.
var ErrInvalidCredentials = errs.New(errs.KindUnauthorized, "invalid credentials")

// ErrInvalidToken is returned by Authorize for missing, malformed or
// expired tokens.
var ErrInvalidToken = errs.New(errs.KindUnauthorized, "invalid token")
