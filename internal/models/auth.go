package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	DisplayName     string          `json:"display_name"`
	Role            UserRole        `json:"role"`
	MembershipState MembershipState `json:"membership_state"`
}

// NewUserInfo projects a user onto its public shape.
func NewUserInfo(u *User) UserInfo {
	return UserInfo{
		ID:              u.ID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		Role:            u.Role,
		MembershipState: u.MembershipState,
	}
}

// LoginResponse returns the issued access token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
