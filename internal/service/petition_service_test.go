package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

type petitionRepoStub struct {
	petitions  map[string]models.Petition
	likes      map[string]bool
	lastFilter models.PetitionFilter
}

func newPetitionRepoStub() *petitionRepoStub {
	return &petitionRepoStub{petitions: map[string]models.Petition{}, likes: map[string]bool{}}
}

func (s *petitionRepoStub) Create(ctx context.Context, p *models.Petition) error {
	p.ID = uuid.NewString()
	s.petitions[p.ID] = *p
	return nil
}

func (s *petitionRepoStub) FindByID(ctx context.Context, id string) (*models.Petition, error) {
	p, ok := s.petitions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s *petitionRepoStub) List(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, int, error) {
	s.lastFilter = filter
	var out []models.Petition
	for _, p := range s.petitions {
		if p.Hidden && !filter.IncludeHidden {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (s *petitionRepoStub) Popular(ctx context.Context, limit int) ([]models.Petition, error) {
	return nil, nil
}

func (s *petitionRepoStub) AddLike(ctx context.Context, petitionID, userID string, at time.Time) (int, error) {
	key := petitionID + "|" + userID
	if s.likes[key] {
		return 0, repository.ErrAlreadyLiked
	}
	s.likes[key] = true
	p := s.petitions[petitionID]
	p.Likes++
	s.petitions[petitionID] = p
	return p.Likes, nil
}

func (s *petitionRepoStub) Moderate(ctx context.Context, id string, change models.PetitionModeration, at time.Time) (*models.Petition, error) {
	p, ok := s.petitions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if change.Hidden != nil {
		p.Hidden = *change.Hidden
	}
	if change.Title != nil {
		p.Title = *change.Title
	}
	if change.Close {
		p.State = models.PetitionClosed
		p.ResolvedAt = &at
	}
	s.petitions[id] = p
	return &p, nil
}

func petitionUsers() *userRepoStub {
	return &userRepoStub{users: map[string]models.User{
		"member":  {ID: "member", MembershipState: models.MembershipApproved},
		"other":   {ID: "other", MembershipState: models.MembershipApproved},
		"pending": {ID: "pending", MembershipState: models.MembershipPendingApproval},
	}}
}

func TestPetitionServiceCreate(t *testing.T) {
	repo := newPetitionRepoStub()
	svc := NewPetitionService(repo, petitionUsers(), voteListerStub{}, nil, nil, nil)

	req := dto.CreatePetitionRequest{
		Title:       "More benches in the park",
		Description: "The park has two benches for the whole square.",
		Images:      []string{"https://example.com/a.jpg"},
	}
	p, err := svc.Create(context.Background(), "member", req)
	require.NoError(t, err)
	assert.Equal(t, models.PetitionInReview, p.State)
	assert.Equal(t, "member", p.AuthorUserID)
	assert.Len(t, repo.petitions, 1)

	_, err = svc.Create(context.Background(), "pending", req)
	assert.True(t, errors.Is(err, appErrors.ErrMembershipNeeded))

	req.Images = []string{"1", "2", "3", "4", "5", "6"}
	_, err = svc.Create(context.Background(), "member", req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPetitionServiceHiddenVisibleToAdminsOnly(t *testing.T) {
	repo := newPetitionRepoStub()
	repo.petitions["p1"] = models.Petition{ID: "p1", Hidden: true, State: models.PetitionInReview}
	repo.petitions["p2"] = models.Petition{ID: "p2", State: models.PetitionInReview}
	svc := NewPetitionService(repo, petitionUsers(), voteListerStub{}, nil, nil, nil)
	member := &models.JWTClaims{UserID: "member", Role: models.RoleMember}
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	_, err := svc.Get(context.Background(), "p1", member)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	detail, err := svc.Get(context.Background(), "p1", admin)
	require.NoError(t, err)
	assert.Equal(t, "p1", detail.Petition.ID)

	list, page, err := svc.List(context.Background(), dto.ListPetitionsQuery{IncludeHidden: true}, member)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.False(t, repo.lastFilter.IncludeHidden)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPetitionPageSize, page.PageSize)

	list, _, err = svc.List(context.Background(), dto.ListPetitionsQuery{IncludeHidden: true, State: "in_review"}, admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	require.NotNil(t, repo.lastFilter.State)
	assert.Equal(t, models.PetitionInReview, *repo.lastFilter.State)
}

func TestPetitionServiceLike(t *testing.T) {
	repo := newPetitionRepoStub()
	repo.petitions["p1"] = models.Petition{ID: "p1", State: models.PetitionInReview}
	svc := NewPetitionService(repo, petitionUsers(), voteListerStub{}, nil, nil, nil)
	member := &models.JWTClaims{UserID: "member"}

	likes, err := svc.Like(context.Background(), "p1", member)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	_, err = svc.Like(context.Background(), "p1", member)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	likes, err = svc.Like(context.Background(), "p1", &models.JWTClaims{UserID: "other"})
	require.NoError(t, err)
	assert.Equal(t, 2, likes)

	_, err = svc.Like(context.Background(), "missing", member)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPetitionServiceModerate(t *testing.T) {
	repo := newPetitionRepoStub()
	repo.petitions["p1"] = models.Petition{ID: "p1", Title: "Old title", State: models.PetitionApproved}
	audit := &auditRepoStub{}
	svc := NewPetitionService(repo, petitionUsers(), voteListerStub{}, audit, nil, nil)
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	hidden := true
	updated, err := svc.Moderate(context.Background(), "p1", dto.ModeratePetitionRequest{Hidden: &hidden, Close: true}, admin)
	require.NoError(t, err)
	assert.True(t, updated.Hidden)
	assert.Equal(t, models.PetitionClosed, updated.State)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPetitionModerate, audit.logs[0].Action)
	require.NotNil(t, audit.logs[0].UserID)
	assert.Equal(t, "admin", *audit.logs[0].UserID)

	_, err = svc.Moderate(context.Background(), "p1", dto.ModeratePetitionRequest{}, admin)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Moderate(context.Background(), "missing", dto.ModeratePetitionRequest{Close: true}, admin)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
