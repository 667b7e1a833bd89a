package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

const (
	defaultPetitionPageSize = 20
	popularPetitionLimit    = 20
)

type petitionRepository interface {
	Create(ctx context.Context, p *models.Petition) error
	FindByID(ctx context.Context, id string) (*models.Petition, error)
	List(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, int, error)
	Popular(ctx context.Context, limit int) ([]models.Petition, error)
	AddLike(ctx context.Context, petitionID, userID string, at time.Time) (int, error)
	Moderate(ctx context.Context, id string, change models.PetitionModeration, at time.Time) (*models.Petition, error)
}

// PetitionDetail is a petition together with the votes cast on it.
type PetitionDetail struct {
	Petition models.Petition `json:"petition"`
	Votes    []models.Vote   `json:"votes"`
}

// PetitionService handles petition lifecycle outside of voting.
type PetitionService struct {
	repo      petitionRepository
	users     userReader
	votes     voteLister
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPetitionService constructs a PetitionService.
func NewPetitionService(repo petitionRepository, users userReader, votes voteLister, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *PetitionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PetitionService{repo: repo, users: users, votes: votes, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// Create raises a petition on behalf of an approved member.
func (s *PetitionService) Create(ctx context.Context, authorID string, req dto.CreatePetitionRequest) (*models.Petition, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid petition payload")
	}
	if err := s.requireMember(ctx, authorID); err != nil {
		return nil, err
	}

	petition := &models.Petition{
		AuthorUserID: authorID,
		Title:        req.Title,
		Description:  req.Description,
		Images:       append([]string{}, req.Images...),
		VideoURL:     req.VideoURL,
		State:        models.PetitionInReview,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, petition); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create petition")
	}
	return petition, nil
}

// List returns a page of petitions. Hidden petitions are only listed for admins.
func (s *PetitionService) List(ctx context.Context, query dto.ListPetitionsQuery, viewer *models.JWTClaims) ([]models.Petition, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid petition filter")
	}
	filter := models.PetitionFilter{
		AuthorUserID:  query.Author,
		IncludeHidden: query.IncludeHidden && isAdmin(viewer),
		Page:          query.Page,
		PageSize:      query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPetitionPageSize
	}
	if query.State != "" {
		state := models.PetitionState(query.State)
		filter.State = &state
	}

	petitions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list petitions")
	}
	if petitions == nil {
		petitions = []models.Petition{}
	}
	return petitions, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Popular returns the most liked visible petitions.
func (s *PetitionService) Popular(ctx context.Context) ([]models.Petition, error) {
	petitions, err := s.repo.Popular(ctx, popularPetitionLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list popular petitions")
	}
	if petitions == nil {
		petitions = []models.Petition{}
	}
	return petitions, nil
}

// Get returns a petition with its votes.
func (s *PetitionService) Get(ctx context.Context, id string, viewer *models.JWTClaims) (*PetitionDetail, error) {
	petition, err := s.visible(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	votes, err := s.votes.ListByTarget(ctx, models.TargetPetition, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load petition votes")
	}
	if votes == nil {
		votes = []models.Vote{}
	}
	return &PetitionDetail{Petition: *petition, Votes: votes}, nil
}

// Like records the viewer's like and returns the new like count.
func (s *PetitionService) Like(ctx context.Context, petitionID string, viewer *models.JWTClaims) (int, error) {
	if viewer == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if err := s.requireMember(ctx, viewer.UserID); err != nil {
		return 0, err
	}
	if _, err := s.visible(ctx, petitionID, viewer); err != nil {
		return 0, err
	}

	likes, err := s.repo.AddLike(ctx, petitionID, viewer.UserID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyLiked) {
			return 0, appErrors.Clone(appErrors.ErrConflict, "petition already liked")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to like petition")
	}
	return likes, nil
}

// Moderate applies an admin change. Closing is terminal and only possible here.
func (s *PetitionService) Moderate(ctx context.Context, id string, req dto.ModeratePetitionRequest, actor *models.JWTClaims) (*models.Petition, error) {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		req.Description = &trimmed
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid moderation payload")
	}
	if req.Hidden == nil && !req.Close && req.Title == nil && req.Description == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no moderation change supplied")
	}

	before, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "petition not found", "failed to load petition")
	}

	after, err := s.repo.Moderate(ctx, id, models.PetitionModeration{
		Hidden:      req.Hidden,
		Close:       req.Close,
		Title:       req.Title,
		Description: req.Description,
	}, s.now().UTC())
	if err != nil {
		return nil, notFoundOrInternal(err, "petition not found", "failed to moderate petition")
	}

	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action:     models.AuditActionPetitionModerate,
		Resource:   "petition",
		ResourceID: id,
		Old:        before,
		New:        after,
		Source:     "petition-service",
	})
	return after, nil
}

func (s *PetitionService) visible(ctx context.Context, id string, viewer *models.JWTClaims) (*models.Petition, error) {
	petition, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "petition not found", "failed to load petition")
	}
	if petition.Hidden && !isAdmin(viewer) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "petition not found")
	}
	return petition, nil
}

func (s *PetitionService) requireMember(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if !user.IsMember() {
		return appErrors.ErrMembershipNeeded
	}
	return nil
}

func isAdmin(claims *models.JWTClaims) bool {
	return claims != nil && claims.Role == models.RoleAdmin
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
