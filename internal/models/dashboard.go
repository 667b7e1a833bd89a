package models

import "time"

// DashboardSummary aggregates community-wide counters for admins.
type DashboardSummary struct {
	Users              UserCounts     `json:"users"`
	Petitions          PetitionCounts `json:"petitions"`
	MembershipRequests RequestCounts  `json:"membership_requests"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// UserCounts breaks down accounts by membership state.
type UserCounts struct {
	Total    int `json:"total"`
	Admins   int `json:"admins"`
	Pending  int `json:"pending_approval"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Banned   int `json:"banned"`
}

// PetitionCounts breaks down petitions by state plus engagement totals.
type PetitionCounts struct {
	Total       int `json:"total"`
	InReview    int `json:"in_review"`
	Approved    int `json:"approved"`
	NotApproved int `json:"not_approved"`
	Closed      int `json:"closed"`
	Hidden      int `json:"hidden"`
	Votes       int `json:"votes"`
	Likes       int `json:"likes"`
}

// RequestCounts breaks down membership requests by state.
type RequestCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Votes    int `json:"votes"`
}
