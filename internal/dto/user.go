package dto

import "github.com/noah-isme/consejo-api/internal/models"

// ListUsersQuery filters the admin user listing. Search matches email or
// display name.
type ListUsersQuery struct {
	Search   string `form:"search" validate:"max=100"`
	Role     string `form:"role" validate:"omitempty,oneof=ADMIN MEMBER"`
	State    string `form:"membership_state" validate:"omitempty,oneof=pending_approval approved rejected banned"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// CreateUserRequest lets an admin open an account directly. Role defaults to
// MEMBER and membership to approved.
type CreateUserRequest struct {
	Email           string                 `json:"email" validate:"required,email,max=254"`
	Password        string                 `json:"password" validate:"required,min=8,max=72"`
	DisplayName     string                 `json:"display_name" validate:"required,min=2,max=80"`
	Role            models.UserRole        `json:"role" validate:"omitempty,oneof=ADMIN MEMBER"`
	MembershipState models.MembershipState `json:"membership_state" validate:"omitempty,oneof=pending_approval approved rejected banned"`
}

// UpdateUserRequest changes an account's role or membership state. Setting
// membership_state to banned blocks login and voting.
type UpdateUserRequest struct {
	Role            *models.UserRole        `json:"role" validate:"omitempty,oneof=ADMIN MEMBER"`
	MembershipState *models.MembershipState `json:"membership_state" validate:"omitempty,oneof=pending_approval approved rejected banned"`
}
