package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/consejo-api/internal/models"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

type fakeDashboardSrv struct {
	resp *models.DashboardSummary
	hit  bool
	err  error
}

func (f *fakeDashboardSrv) Summary(context.Context) (*models.DashboardSummary, bool, error) {
	return f.resp, f.hit, f.err
}

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Meta       map[string]interface{} `json:"meta"`
	Pagination map[string]interface{} `json:"pagination"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type listEnvelope struct {
	Data       []map[string]interface{} `json:"data"`
	Pagination map[string]interface{}   `json:"pagination"`
}

func decodeListEnvelope(t *testing.T, rec *httptest.ResponseRecorder) listEnvelope {
	t.Helper()
	var envelope listEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestDashboardHandlerSummaryCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		resp: &models.DashboardSummary{Users: models.UserCounts{Total: 12, Admins: 1}},
		hit:  true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	users := envelope.Data["users"].(map[string]interface{})
	assert.Equal(t, float64(12), users["total"])
}

func TestDashboardHandlerSummaryError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		err: appErrors.Wrap(errors.New("boom"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard"),
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INTERNAL_ERROR", envelope.Error.Code)
}
