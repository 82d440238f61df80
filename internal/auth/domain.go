package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates the request carried no bearer token.
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken indicates the token failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Principal describes the authenticated caller.
type Principal struct {
	MemberID     string
	FederationID string
}

// Claims is the JWT payload accepted by the engine.
type Claims struct {
	Federation string `json:"fed"`
	jwt.RegisteredClaims
}
