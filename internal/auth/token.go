package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoJWKS       = errors.New("no JWKS URL provided")
)

// StandardClaims represents the standard claims in a JWT token.
type StandardClaims struct {
	Sub    string `json:"sub"`
	UserId string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Identity contains the user information extracted from a validated token.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// DisplayName returns the best human-readable name for the identity.
func (i Identity) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	default:
		return i.UserID
	}
}

// TokenValidator validates bearer tokens and extracts the caller identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (Identity, error)
}

// identityFromClaims prioritizes sub, then user_id, then email as the user ID.
func identityFromClaims(sub, userID, email, name string) (Identity, error) {
	identity := Identity{Email: email, Name: name}
	switch {
	case sub != "":
		identity.UserID = sub
	case userID != "":
		identity.UserID = userID
	case email != "":
		identity.UserID = email
	default:
		return Identity{}, fmt.Errorf("%w: no sub, user_id, or email found in token claims", ErrInvalidToken)
	}
	return identity, nil
}
