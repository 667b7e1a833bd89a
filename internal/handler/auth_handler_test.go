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

type fakeAuthSrv struct {
	lastLogin dto.LoginRequest
}

func (f *fakeAuthSrv) Register(ctx context.Context, req dto.RegisterRequest) (*models.LoginResponse, error) {
	if req.Email == "taken@example.com" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	return &models.LoginResponse{AccessToken: "token", User: models.UserInfo{Email: req.Email, MembershipState: models.MembershipApproved}}, nil
}

func (f *fakeAuthSrv) Login(ctx context.Context, req dto.LoginRequest) (*models.LoginResponse, error) {
	f.lastLogin = req
	return &models.LoginResponse{AccessToken: "token"}, nil
}

func (f *fakeAuthSrv) Profile(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID, MembershipState: models.MembershipPendingApproval}, nil
}

type fakeBudgetSrv struct{}

func (fakeBudgetSrv) Status(ctx context.Context, userID string) (*models.BudgetStatus, error) {
	return &models.BudgetStatus{VoteBudget: 7, SecondsUntilNext: 42, MaxVoteBudget: 10, RegenIntervalMinutes: 2}, nil
}

func jsonContext(method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("User-Agent", "handler-test")
	return c, rec
}

func TestAuthHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := jsonContext(http.MethodPost, "/auth/register", `{"email":"new@example.com","password":"longenough","display_name":"New"}`)
	handler.Register(c)
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = jsonContext(http.MethodPost, "/auth/register", `{"email":"taken@example.com","password":"longenough","display_name":"New"}`)
	handler.Register(c)
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = jsonContext(http.MethodPost, "/auth/register", `not json`)
	handler.Register(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerLoginCapturesClientMetadata(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, rec := jsonContext(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"secret"}`)
	handler.Login(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@example.com", srv.lastLogin.Email)
	assert.Equal(t, "handler-test", srv.lastLogin.UserAgent)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := jsonContext(http.MethodGet, "/auth/me", "")
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = jsonContext(http.MethodGet, "/auth/me", "")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-9"})
	handler.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-9", decodeEnvelope(t, rec).Data["id"])
}

func TestBudgetHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBudgetHandler(fakeBudgetSrv{})

	c, rec := jsonContext(http.MethodGet, "/me/vote-budget", "")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1"})
	handler.Status(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec).Data
	assert.Equal(t, float64(7), data["vote_budget"])
	assert.Equal(t, float64(42), data["seconds_until_next"])
}
