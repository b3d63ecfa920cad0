package identity

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/anuwat/filehub/internal/config"
)

// Claims carried by filehub tokens.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TokenProvider is the built-in Provider: users come from configuration and
// tokens are HS256 JWTs.
type TokenProvider struct {
	secret   []byte
	validity time.Duration
	users    map[string]config.User
}

// NewTokenProvider builds a provider from the configured user list.
func NewTokenProvider(secret string, validity time.Duration, users []config.User) *TokenProvider {
	byName := make(map[string]config.User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	return &TokenProvider{secret: []byte(secret), validity: validity, users: byName}
}

// Authenticate checks the credentials and returns a signed token.
func (p *TokenProvider) Authenticate(_ context.Context, creds Credentials) (string, error) {
	u, ok := p.users[creds.Username]
	if !ok || u.Password != creds.Password {
		return "", ErrInvalidCredentials
	}

	role := Role(u.Role)
	if role != RoleAdmin {
		role = RoleUser
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Username: u.Username,
		Role:     string(role),
	})
	return token.SignedString(p.secret)
}

// Authorize validates a token and returns the principal it carries.
func (p *TokenProvider) Authorize(_ context.Context, tokenString string) (*Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Principal{Username: claims.Username, Role: Role(claims.Role)}, nil
}
