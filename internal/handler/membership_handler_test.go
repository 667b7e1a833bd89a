package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/middleware"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/service"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

type fakeMembershipSrv struct {
	lastState models.MembershipRequestState
	deleted   []string
}

func (f *fakeMembershipSrv) Submit(ctx context.Context, applicantID string, req dto.SubmitMembershipRequest) (*models.MembershipRequest, error) {
	return &models.MembershipRequest{ID: "r-1", ApplicantUserID: applicantID, Text: req.Text, State: models.MembershipRequestPending}, nil
}

func (f *fakeMembershipSrv) Mine(ctx context.Context, applicantID string) (*models.MembershipRequest, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "membership request not found")
}

func (f *fakeMembershipSrv) Get(ctx context.Context, id string) (*service.MembershipRequestDetail, error) {
	return &service.MembershipRequestDetail{Request: models.RealMembershipRequest{MembershipRequest: models.MembershipRequest{ID: id}}}, nil
}

func (f *fakeMembershipSrv) List(ctx context.Context, state models.MembershipRequestState) ([]models.MembershipRequestEntry, error) {
	f.lastState = state
	return []models.MembershipRequestEntry{
		models.RealMembershipRequest{MembershipRequest: models.MembershipRequest{ID: "r-1", State: models.MembershipRequestPending}},
		models.SyntheticMembershipRequest{Applicant: models.Applicant{UserID: "u-2", DisplayName: "Luis"}},
	}, nil
}

func (f *fakeMembershipSrv) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if id == "missing" {
		return appErrors.Clone(appErrors.ErrNotFound, "membership request not found")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestMembershipHandlerListTagsEntryKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeMembershipSrv{}
	handler := NewMembershipHandler(srv)

	c, rec := jsonContext(http.MethodGet, "/membership-requests?state=pending", "")
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MembershipRequestPending, srv.lastState)

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "real", body.Data[0]["kind"])
	assert.Equal(t, "synthetic", body.Data[1]["kind"])
}

func TestMembershipHandlerSubmitAndMine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMembershipHandler(&fakeMembershipSrv{})
	claims := &models.JWTClaims{UserID: "u-1"}

	c, rec := jsonContext(http.MethodPost, "/membership-requests", `{"text":"I have lived here for ten years","photo_url":"https://example.com/me.jpg"}`)
	c.Set(middleware.ContextUserKey, claims)
	handler.Submit(c)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u-1", decodeEnvelope(t, rec).Data["applicant_user_id"])

	c, rec = jsonContext(http.MethodGet, "/membership-requests/mine", "")
	c.Set(middleware.ContextUserKey, claims)
	handler.Mine(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMembershipHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeMembershipSrv{}
	handler := NewMembershipHandler(srv)
	admin := &models.JWTClaims{UserID: "a-1", Role: models.RoleAdmin}

	c, rec := jsonContext(http.MethodDelete, "/admin/membership-requests/r-1", "")
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	c.Set(middleware.ContextUserKey, admin)
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"r-1"}, srv.deleted)

	c, rec = jsonContext(http.MethodDelete, "/admin/membership-requests/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Set(middleware.ContextUserKey, admin)
	handler.Delete(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = jsonContext(http.MethodDelete, "/admin/membership-requests/r-2", "")
	c.Params = gin.Params{{Key: "id", Value: "r-2"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, srv.deleted, 1)
}
