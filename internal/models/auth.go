package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds portal credentials. The password is forwarded to the portal and never stored.
type LoginRequest struct {
	StudentID string `json:"student_id" validate:"required,max=32"`
	Password  string `json:"password" validate:"required"`
}

// SyncRequest re-runs the portal sync for the authenticated student.
type SyncRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	StudentID string `json:"student_id"`
	jwt.RegisteredClaims
}
