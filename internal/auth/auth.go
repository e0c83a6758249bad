package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidClaims = errors.New("invalid token claims")

type Authenticator interface {
	GenerateTokens(userID int64, role string) (string, string, error)
	ValidateAccessToken(token string) (*jwt.Token, error)
	ValidateRefreshToken(token string) (*jwt.Token, error)
}

// Subject extracts the user id and role from a validated token.
func Subject(token *jwt.Token) (int64, string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrInvalidClaims
	}

	// MapClaims decodes JSON numbers as float64.
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return 0, "", ErrInvalidClaims
	}
	role, _ := claims["role"].(string)
	return int64(sub), role, nil
}
