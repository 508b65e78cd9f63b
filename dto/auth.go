package dto

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest is the operator login payload.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the issued bearer token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenClaims are the JWT claims issued to an authenticated operator.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
