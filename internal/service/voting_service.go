package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

type budgetConsumer interface {
	ConsumeWithin(ctx context.Context, store repository.VotingStore, userID string, cfg models.PolicyConfig) (bool, error)
}

// VotingService records votes on membership requests and petitions. Each cast
// runs as a single serializable unit of work: the vote, the tally, the budget
// unit and any state resolution commit together or not at all.
type VotingService struct {
	tx        txRunner
	policy    policyReader
	budget    budgetConsumer
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewVotingService constructs a VotingService.
func NewVotingService(tx txRunner, policy policyReader, budget budgetConsumer, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *VotingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VotingService{
		tx:        tx,
		policy:    policy,
		budget:    budget,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// CastMembershipVote records or changes voterID's vote on a membership request.
// A first vote spends one unit of the voter's budget and, for approvals,
// counts against the daily approval cap.
func (s *VotingService) CastMembershipVote(ctx context.Context, voterID, requestID string, req dto.CastVoteRequest) (*models.VoteReceipt, error) {
	return s.cast(ctx, models.TargetMembershipRequest, voterID, requestID, req)
}

// CastPetitionVote records or changes voterID's vote on a petition.
func (s *VotingService) CastPetitionVote(ctx context.Context, voterID, petitionID string, req dto.CastVoteRequest) (*models.VoteReceipt, error) {
	return s.cast(ctx, models.TargetPetition, voterID, petitionID, req)
}

type ballot struct {
	target   models.VoteTarget
	voterID  string
	targetID string
	choice   models.VoteChoice
	comment  *string
}

func (s *VotingService) cast(ctx context.Context, target models.VoteTarget, voterID, targetID string, req dto.CastVoteRequest) (*models.VoteReceipt, error) {
	b, err := s.validateBallot(target, voterID, targetID, req)
	if err != nil {
		return nil, err
	}
	cfg, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var receipt *models.VoteReceipt
	for attempt := 0; attempt < 2; attempt++ {
		receipt, err = s.castOnce(ctx, b, *cfg)
		if !errors.Is(err, repository.ErrDuplicateVote) {
			break
		}
		// A concurrent cast by the same voter won the insert; the retry sees it as an update.
		s.logger.Debug("duplicate vote insert, retrying as update",
			zap.String("target", string(target)), zap.String("target_id", targetID), zap.String("voter_id", voterID))
	}
	s.metrics.ObserveVoteTransaction(target, time.Since(start))

	if err != nil {
		s.metrics.RecordVote(target, b.choice, VoteOutcomeRejected)
		return nil, s.translate(err)
	}

	outcome := VoteOutcomeRecorded
	if receipt.PreviousChoice != nil {
		outcome = VoteOutcomeUpdated
	}
	s.metrics.RecordVote(target, b.choice, outcome)

	if receipt.Resolved && target == models.TargetMembershipRequest {
		state := models.MembershipRequestState(receipt.State)
		s.metrics.RecordMembershipResolution(state)
		s.logger.Info("membership request resolved",
			zap.String("request_id", targetID), zap.String("state", receipt.State),
			zap.Int("approvals", receipt.Tally.Approvals), zap.Int("rejections", receipt.Tally.Rejections))
		recordAudit(ctx, s.audit, s.logger, &models.JWTClaims{UserID: voterID}, auditEntry{
			Action:     models.AuditActionMembershipStatus,
			Resource:   "membership_request",
			ResourceID: targetID,
			New:        map[string]interface{}{"state": state, "tally": receipt.Tally},
			Source:     "voting-service",
		})
	}
	return receipt, nil
}

func (s *VotingService) validateBallot(target models.VoteTarget, voterID, targetID string, req dto.CastVoteRequest) (ballot, error) {
	if voterID == "" {
		return ballot{}, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(targetID) == "" {
		return ballot{}, appErrors.Clone(appErrors.ErrValidation, "target id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return ballot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vote payload")
	}
	if target == models.TargetMembershipRequest && req.Choice == models.ChoiceDiscuss {
		return ballot{}, appErrors.Clone(appErrors.ErrValidation, "membership votes must approve or reject")
	}

	var comment *string
	if req.Comment != nil {
		trimmed := strings.TrimSpace(*req.Comment)
		if trimmed != "" {
			comment = &trimmed
		}
	}
	if req.Choice.RequiresComment() && (comment == nil || utf8.RuneCountInString(*comment) < dto.MinCommentLength) {
		return ballot{}, appErrors.Clone(appErrors.ErrValidation, "a comment of at least 4 characters is required to reject or discuss")
	}

	return ballot{target: target, voterID: voterID, targetID: targetID, choice: req.Choice, comment: comment}, nil
}

func (s *VotingService) castOnce(ctx context.Context, b ballot, cfg models.PolicyConfig) (*models.VoteReceipt, error) {
	var receipt *models.VoteReceipt
	err := s.tx.Do(ctx, func(store repository.VotingStore) error {
		voter, err := store.LockUser(ctx, b.voterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrUnauthorized, "voter account not found")
			}
			return err
		}
		if !voter.IsMember() {
			return appErrors.ErrMembershipNeeded
		}

		var tally models.Tally
		var applicantID string
		switch b.target {
		case models.TargetMembershipRequest:
			req, err := store.LockMembershipRequest(ctx, b.targetID)
			if err != nil {
				return notFoundOr(err, "membership request not found")
			}
			if req.State.Terminal() {
				return appErrors.Clone(appErrors.ErrNotFound, "membership request is no longer open for voting")
			}
			tally = models.Tally{Approvals: req.ApprovalCount, Rejections: req.RejectionCount}
			applicantID = req.ApplicantUserID
		default:
			petition, err := store.LockPetition(ctx, b.targetID)
			if err != nil {
				return notFoundOr(err, "petition not found")
			}
			if petition.State.Terminal() || petition.Hidden {
				return appErrors.Clone(appErrors.ErrNotFound, "petition is no longer open for voting")
			}
			if petition.AuthorUserID == b.voterID {
				return appErrors.ErrSelfVote
			}
			tally = models.Tally{Approvals: petition.ApprovalCount, Rejections: petition.RejectionCount}
		}

		existing, err := store.FindVote(ctx, b.target, b.voterID, b.targetID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		now := s.now().UTC()
		result := &models.VoteReceipt{Target: b.target, TargetID: b.targetID}

		if existing == nil && b.target == models.TargetMembershipRequest {
			consumed, err := s.budget.ConsumeWithin(ctx, store, b.voterID, cfg)
			if err != nil {
				return err
			}
			if !consumed {
				return appErrors.ErrCapacityExhausted
			}
			result.BudgetConsumed = true

			if b.choice == models.ChoiceApprove && cfg.DailyApprovalCap > 0 {
				approvals, err := store.CountApprovalsSince(ctx, b.voterID, startOfDayUTC(now))
				if err != nil {
					return err
				}
				if approvals >= cfg.DailyApprovalCap {
					return appErrors.ErrRateLimited
				}
			}
		}

		var previous *models.VoteChoice
		var vote models.Vote
		if existing == nil {
			vote = models.Vote{
				VoterUserID: b.voterID,
				TargetID:    b.targetID,
				Choice:      b.choice,
				Comment:     b.comment,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := store.InsertVote(ctx, b.target, &vote); err != nil {
				return err
			}
		} else {
			prevChoice := existing.Choice
			previous = &prevChoice
			vote = *existing
			vote.Choice = b.choice
			vote.Comment = b.comment
			vote.UpdatedAt = now
			if err := store.UpdateVote(ctx, b.target, &vote); err != nil {
				return err
			}
		}
		result.Vote = vote
		result.PreviousChoice = previous

		if dApprovals, dRejections := TallyDelta(previous, b.choice); dApprovals != 0 || dRejections != 0 {
			tally, err = store.AdjustTally(ctx, b.target, b.targetID, dApprovals, dRejections)
			if err != nil {
				return err
			}
		}
		result.Tally = tally

		switch b.target {
		case models.TargetMembershipRequest:
			population, err := store.CountUsers(ctx)
			if err != nil {
				return err
			}
			state := ResolveMembershipState(tally.Approvals, tally.Rejections, RequiredApprovals(population))
			result.State = string(state)
			if state.Terminal() {
				if err := s.resolveMembership(ctx, store, b.targetID, applicantID, state, now); err != nil {
					return err
				}
				result.Resolved = true
			}
		default:
			state := ResolvePetitionState(tally.Approvals, tally.Rejections, cfg)
			result.State = string(state)
			if state.Terminal() {
				if err := store.SetPetitionState(ctx, b.targetID, state, &now); err != nil {
					return err
				}
				result.Resolved = true
			}
		}

		receipt = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *VotingService) resolveMembership(ctx context.Context, store repository.VotingStore, requestID, applicantID string, state models.MembershipRequestState, now time.Time) error {
	if err := store.SetMembershipRequestState(ctx, requestID, state, &now); err != nil {
		return err
	}
	membership := models.MembershipApproved
	if state == models.MembershipRequestRejected {
		membership = models.MembershipRejected
	}
	changed, err := store.CascadeMembership(ctx, applicantID, membership, now)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.Warn("applicant membership left unchanged",
			zap.String("user_id", applicantID), zap.String("request_state", string(state)))
	}
	return nil
}

func (s *VotingService) translate(err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		switch {
		case errors.Is(appErr, appErrors.ErrCapacityExhausted):
			s.metrics.RecordBudgetRejection()
		case errors.Is(appErr, appErrors.ErrRateLimited):
			s.metrics.RecordRateLimited()
		}
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "vote target not found")
	case errors.Is(err, repository.ErrDuplicateVote):
		return appErrors.Clone(appErrors.ErrConflict, "vote is being recorded by another request, try again")
	default:
		s.logger.Error("vote cast failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
	}
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return err
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
