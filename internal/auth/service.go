package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service verifies and issues HS256 bearer tokens.
type Service struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(secret, issuer string) *Service {
	return &Service{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses the raw token and returns the principal it names.
func (s *Service) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.NewParser(opts...).ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Federation == "" {
		return Principal{}, fmt.Errorf("%w: subject and federation required", ErrInvalidToken)
	}
	return Principal{MemberID: claims.Subject, FederationID: claims.Federation}, nil
}

// Issue signs a token for the principal. Used by tooling and tests.
func (s *Service) Issue(p Principal, ttl time.Duration) (string, error) {
	if p.MemberID == "" || p.FederationID == "" {
		return "", errors.New("auth: principal requires member and federation")
	}
	now := s.now()
	claims := Claims{
		Federation: p.FederationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.MemberID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
