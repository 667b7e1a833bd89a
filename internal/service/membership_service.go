package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

type membershipRequestRepository interface {
	Create(ctx context.Context, req *models.MembershipRequest) error
	FindByID(ctx context.Context, id string) (*models.RealMembershipRequest, error)
	FindByApplicant(ctx context.Context, userID string) (*models.MembershipRequest, error)
	ListWithApplicants(ctx context.Context, state models.MembershipRequestState) ([]models.RealMembershipRequest, error)
	ListPendingApplicantsWithoutRequest(ctx context.Context) ([]models.Applicant, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type voteLister interface {
	ListByTarget(ctx context.Context, target models.VoteTarget, targetID string) ([]models.Vote, error)
}

// MembershipRequestDetail is a request together with the votes cast on it.
type MembershipRequestDetail struct {
	Request models.RealMembershipRequest `json:"request"`
	Votes   []models.Vote                `json:"votes"`
}

// MembershipService manages applicants' requests to join.
type MembershipService struct {
	repo      membershipRequestRepository
	users     userReader
	votes     voteLister
	tx        txRunner
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(repo membershipRequestRepository, users userReader, votes voteLister, tx txRunner, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *MembershipService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipService{repo: repo, users: users, votes: votes, tx: tx, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// Submit files the applicant's request. Only users still pending approval may
// apply, and only once.
func (s *MembershipService) Submit(ctx context.Context, applicantID string, req dto.SubmitMembershipRequest) (*models.MembershipRequest, error) {
	req.Text = strings.TrimSpace(req.Text)
	req.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership request payload")
	}

	user, err := s.users.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if user.MembershipState != models.MembershipPendingApproval {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only accounts pending approval can submit a membership request")
	}

	request := &models.MembershipRequest{
		ApplicantUserID: applicantID,
		Text:            req.Text,
		PhotoURL:        req.PhotoURL,
		State:           models.MembershipRequestPending,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrRequestExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "membership request already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit membership request")
	}
	s.logger.Info("membership request submitted", zap.String("request_id", request.ID), zap.String("user_id", applicantID))
	return request, nil
}

// Mine returns the caller's own request.
func (s *MembershipService) Mine(ctx context.Context, applicantID string) (*models.MembershipRequest, error) {
	req, err := s.repo.FindByApplicant(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no membership request submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership request")
	}
	return req, nil
}

// Get returns one request with its votes.
func (s *MembershipService) Get(ctx context.Context, id string) (*MembershipRequestDetail, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "membership request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership request")
	}
	votes, err := s.votes.ListByTarget(ctx, models.TargetMembershipRequest, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership votes")
	}
	if votes == nil {
		votes = []models.Vote{}
	}
	return &MembershipRequestDetail{Request: *req, Votes: votes}, nil
}

// List merges stored requests in state with placeholders for pending users
// that have not applied yet. Placeholders only appear when listing pending
// (or all) requests. Newest first.
func (s *MembershipService) List(ctx context.Context, state models.MembershipRequestState) ([]models.MembershipRequestEntry, error) {
	switch state {
	case "", models.MembershipRequestPending, models.MembershipRequestApproved, models.MembershipRequestRejected:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown membership request state")
	}

	stored, err := s.repo.ListWithApplicants(ctx, state)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list membership requests")
	}

	var synthetic []models.Applicant
	if state == "" || state == models.MembershipRequestPending {
		synthetic, err = s.repo.ListPendingApplicantsWithoutRequest(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending applicants")
		}
	}

	type dated struct {
		at    time.Time
		entry models.MembershipRequestEntry
	}
	rows := make([]dated, 0, len(stored)+len(synthetic))
	for _, r := range stored {
		rows = append(rows, dated{at: r.CreatedAt, entry: r})
	}
	for _, a := range synthetic {
		rows = append(rows, dated{at: a.CreatedAt, entry: models.SyntheticMembershipRequest{Applicant: a}})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.After(rows[j].at) })

	entries := make([]models.MembershipRequestEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.entry
	}
	return entries, nil
}

// Delete removes a request and every vote cast on it in one transaction.
// Spent vote budget is not refunded and the applicant keeps their membership
// state; a pending applicant shows up again as a synthetic entry.
func (s *MembershipService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	var (
		removed      *models.MembershipRequest
		votesRemoved int
	)
	err := s.tx.Do(ctx, func(store repository.VotingStore) error {
		req, err := store.LockMembershipRequest(ctx, id)
		if err != nil {
			return err
		}
		n, err := store.DeleteVotes(ctx, models.TargetMembershipRequest, id)
		if err != nil {
			return err
		}
		if err := store.DeleteMembershipRequest(ctx, id); err != nil {
			return err
		}
		removed, votesRemoved = req, n
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "membership request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete membership request")
	}

	s.logger.Info("membership request deleted",
		zap.String("request_id", id), zap.String("actor_id", actor.UserID), zap.Int("votes_removed", votesRemoved))
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action:     models.AuditActionRequestDelete,
		Resource:   "membership_request",
		ResourceID: id,
		Old:        removed,
		New:        map[string]int{"votes_removed": votesRemoved},
	})
	return nil
}
