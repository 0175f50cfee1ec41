// Package identity models the verified caller attached to incoming
// operations. Identity is supplied by an external provider; this package
// only turns credentials into Caller values and mints guest tokens.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"poll-service/internal/apperror"
)

// Caller is the verified identity attached to a request. Email may be
// empty; anonymous read-only requests carry no Caller at all.
type Caller struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// GuestTokens issues and verifies short-lived HS256 tokens for guest
// identities, so the app is usable without an account.
type GuestTokens struct {
	secret []byte
	expiry time.Duration
}

func NewGuestTokens(secret string, expiry time.Duration) *GuestTokens {
	return &GuestTokens{secret: []byte(secret), expiry: expiry}
}

// Issue creates a fresh guest identity and returns it with its signed token.
func (g *GuestTokens) Issue() (Caller, string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return Caller{}, "", fmt.Errorf("generate guest id: %w", err)
	}
	suffix := hex.EncodeToString(buf)

	caller := Caller{
		ID:    "guest_" + suffix,
		Name:  "Guest " + suffix,
		Email: fmt.Sprintf("guest-%s@example.com", suffix),
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   caller.ID,
		"name":  caller.Name,
		"email": caller.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(g.expiry).Unix(),
	})

	signed, err := token.SignedString(g.secret)
	if err != nil {
		return Caller{}, "", fmt.Errorf("sign guest token: %w", err)
	}
	return caller, signed, nil
}

// Verify parses a guest token and returns the Caller it encodes.
func (g *GuestTokens) Verify(tokenString string) (Caller, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		return Caller{}, apperror.Wrap(apperror.KindUnauthorized, "invalid or expired token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Caller{}, apperror.New(apperror.KindUnauthorized, "invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	if sub == "" || name == "" {
		return Caller{}, apperror.New(apperror.KindUnauthorized, "invalid token claims")
	}

	return Caller{ID: sub, Name: name, Email: email}, nil
}
