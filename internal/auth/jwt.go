package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// TokenIssuer mints and verifies the HS256 bearer tokens callers present.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Mint signs a token carrying the caller's identity and capability list.
func (i *TokenIssuer) Mint(caller Caller) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  caller.ID,
		"name": caller.Name,
		"caps": caller.Capabilities,
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a bearer token back into a Caller. Expiry is enforced by
// the jwt library; anything malformed comes back as ErrInvalidToken.
func (i *TokenIssuer) Verify(tokenStr string) (Caller, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Caller{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Caller{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Caller{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)

	var caps []string
	if raw, ok := claims["caps"].([]any); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok {
				caps = append(caps, s)
			}
		}
	}

	return Caller{ID: sub, Name: name, Capabilities: caps}, nil
}
