package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Role names. Keep these stable; they are part of the upstream API contract
// and of the route policy table.
const (
	RoleDocente = "DOCENTE"
	RoleAdmin   = "ADMIN"
	RoleSuper   = "SUPER"
)

// Claims are the only supported access-credential claims shape for the
// console. The upstream API signs these; the console only verifies them.
// The role claim authorizes route access, so it must never be trusted from
// a token whose signature did not verify.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
