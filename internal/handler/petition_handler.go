package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/service"
	"github.com/noah-isme/consejo-api/pkg/response"
)

type petitionService interface {
	Create(ctx context.Context, authorID string, req dto.CreatePetitionRequest) (*models.Petition, error)
	List(ctx context.Context, query dto.ListPetitionsQuery, viewer *models.JWTClaims) ([]models.Petition, *models.Pagination, error)
	Popular(ctx context.Context) ([]models.Petition, error)
	Get(ctx context.Context, id string, viewer *models.JWTClaims) (*service.PetitionDetail, error)
	Like(ctx context.Context, petitionID string, viewer *models.JWTClaims) (int, error)
	Moderate(ctx context.Context, id string, req dto.ModeratePetitionRequest, actor *models.JWTClaims) (*models.Petition, error)
}

// PetitionHandler exposes petition endpoints.
type PetitionHandler struct {
	service petitionService
}

// NewPetitionHandler constructs the handler.
func NewPetitionHandler(service petitionService) *PetitionHandler {
	return &PetitionHandler{service: service}
}

// List godoc
// @Summary List petitions
// @Description Paginated petitions, newest first. include_hidden is honoured for admins only.
// @Tags Petitions
// @Produce json
// @Param state query string false "in_review, approved, not_approved or closed"
// @Param author query string false "Author user ID"
// @Param include_hidden query bool false "Admins only"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /petitions [get]
func (h *PetitionHandler) List(c *gin.Context) {
	var query dto.ListPetitionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid petition filter"))
		return
	}
	petitions, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, petitions, pagination)
}

// Popular godoc
// @Summary Most liked petitions
// @Tags Petitions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /petitions/popular [get]
func (h *PetitionHandler) Popular(c *gin.Context) {
	petitions, err := h.service.Popular(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, petitions, nil)
}

// Create godoc
// @Summary Raise a petition
// @Tags Petitions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreatePetitionRequest true "Petition"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /petitions [post]
func (h *PetitionHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreatePetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid petition payload"))
		return
	}
	petition, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, petition)
}

// Get godoc
// @Summary Petition detail with votes
// @Tags Petitions
// @Produce json
// @Param id path string true "Petition ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /petitions/{id} [get]
func (h *PetitionHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Like godoc
// @Summary Like a petition
// @Tags Petitions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Petition ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /petitions/{id}/like [post]
func (h *PetitionHandler) Like(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	likes, err := h.service.Like(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"petition_id": c.Param("id"), "likes": likes}, nil)
}

// Moderate godoc
// @Summary Moderate a petition
// @Description Hide, unhide, edit or close a petition. Closing is terminal.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Petition ID"
// @Param payload body dto.ModeratePetitionRequest true "Change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/petitions/{id} [patch]
func (h *PetitionHandler) Moderate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ModeratePetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid moderation payload"))
		return
	}
	petition, err := h.service.Moderate(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, petition, nil)
}
