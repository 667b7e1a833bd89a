package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/middleware"
	"github.com/noah-isme/consejo-api/internal/models"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

type fakeVotingSrv struct {
	err       error
	lastVoter string
	lastID    string
	lastReq   dto.CastVoteRequest
	target    models.VoteTarget
}

func (f *fakeVotingSrv) CastMembershipVote(ctx context.Context, voterID, requestID string, req dto.CastVoteRequest) (*models.VoteReceipt, error) {
	return f.record(models.TargetMembershipRequest, voterID, requestID, req)
}

func (f *fakeVotingSrv) CastPetitionVote(ctx context.Context, voterID, petitionID string, req dto.CastVoteRequest) (*models.VoteReceipt, error) {
	return f.record(models.TargetPetition, voterID, petitionID, req)
}

func (f *fakeVotingSrv) record(target models.VoteTarget, voterID, id string, req dto.CastVoteRequest) (*models.VoteReceipt, error) {
	f.target, f.lastVoter, f.lastID, f.lastReq = target, voterID, id, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.VoteReceipt{Target: target, TargetID: id, State: "pending", BudgetConsumed: true}, nil
}

func newVoteContext(body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/votes", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "target-1"}}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestVoteHandlerCastMembership(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeVotingSrv{}
	handler := NewVoteHandler(srv)

	c, rec := newVoteContext(`{"choice":"approve"}`, &models.JWTClaims{UserID: "voter-1"})
	handler.CastMembership(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TargetMembershipRequest, srv.target)
	assert.Equal(t, "voter-1", srv.lastVoter)
	assert.Equal(t, "target-1", srv.lastID)
	assert.Equal(t, models.ChoiceApprove, srv.lastReq.Choice)
	assert.Equal(t, true, decodeEnvelope(t, rec).Data["budget_consumed"])
}

func TestVoteHandlerCastPetitionMapsDomainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appErrors.ErrCapacityExhausted, http.StatusTooManyRequests, "CAPACITY_EXHAUSTED"},
		{appErrors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{appErrors.ErrSelfVote, http.StatusForbidden, "SELF_VOTE_FORBIDDEN"},
		{appErrors.Clone(appErrors.ErrNotFound, "petition not found"), http.StatusNotFound, "NOT_FOUND"},
		{appErrors.Clone(appErrors.ErrValidation, "comment required"), http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		handler := NewVoteHandler(&fakeVotingSrv{err: tc.err})
		c, rec := newVoteContext(`{"choice":"reject","comment":"nope"}`, &models.JWTClaims{UserID: "voter-1"})
		handler.CastPetition(c)

		assert.Equal(t, tc.status, rec.Code)
		envelope := decodeEnvelope(t, rec)
		if assert.NotNil(t, envelope.Error) {
			assert.Equal(t, tc.code, envelope.Error.Code)
		}
	}
}

func TestVoteHandlerRejectsAnonymousAndMalformed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeVotingSrv{}
	handler := NewVoteHandler(srv)

	c, rec := newVoteContext(`{"choice":"approve"}`, nil)
	handler.CastPetition(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newVoteContext(`{"choice":`, &models.JWTClaims{UserID: "voter-1"})
	handler.CastPetition(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.lastVoter)
}
