package dto

// CreatePetitionRequest raises a new petition.
type CreatePetitionRequest struct {
	Title       string   `json:"title" validate:"required,min=5,max=200"`
	Description string   `json:"description" validate:"required,min=10,max=10000"`
	Images      []string `json:"images" validate:"max=5,dive,url"`
	VideoURL    *string  `json:"video_url,omitempty" validate:"omitempty,url"`
}

// ListPetitionsQuery binds petition listing query parameters.
type ListPetitionsQuery struct {
	State         string `form:"state" validate:"omitempty,oneof=in_review approved not_approved closed"`
	Author        string `form:"author"`
	IncludeHidden bool   `form:"include_hidden"`
	Page          int    `form:"page" validate:"omitempty,min=1"`
	PageSize      int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// ModeratePetitionRequest is an admin edit; absent fields are left unchanged.
type ModeratePetitionRequest struct {
	Hidden      *bool   `json:"hidden,omitempty"`
	Close       bool    `json:"close,omitempty"`
	Title       *string `json:"title,omitempty" validate:"omitempty,min=5,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=10,max=10000"`
}
