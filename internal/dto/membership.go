package dto

// SubmitMembershipRequest is the applicant's introduction.
type SubmitMembershipRequest struct {
	Text     string `json:"text" validate:"required,min=20,max=4000"`
	PhotoURL string `json:"photo_url" validate:"required,url"`
}
