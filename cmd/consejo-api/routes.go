package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/handler"
	"github.com/noah-isme/consejo-api/internal/middleware"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/service"
	"github.com/noah-isme/consejo-api/pkg/config"
	"github.com/noah-isme/consejo-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/consejo-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/consejo-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth       *handler.AuthHandler
	budget     *handler.BudgetHandler
	votes      *handler.VoteHandler
	membership *handler.MembershipHandler
	petitions  *handler.PetitionHandler
	policy     *handler.PolicyHandler
	users      *handler.UserHandler
	dashboard  *handler.DashboardHandler
	exports    *handler.ExportHandler
	metrics    *handler.MetricsHandler
	tokens     middleware.TokenValidator
	audit      middleware.AuditWriter
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	api := r.Group(prefix)
	authRequired := middleware.JWT(h.tokens)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	auth := api.Group("/auth")
	auth.POST("/register", h.auth.Register)
	auth.POST("/login", h.auth.Login)
	auth.GET("/me", authRequired, h.auth.Me)

	api.GET("/me/vote-budget", authRequired, h.budget.Status)

	requests := api.Group("/membership-requests", authRequired)
	requests.GET("", h.membership.List)
	requests.POST("", h.membership.Submit)
	requests.GET("/mine", h.membership.Mine)
	requests.GET("/:id", h.membership.Get)
	requests.POST("/:id/votes", h.votes.CastMembership)

	petitions := api.Group("/petitions")
	petitions.GET("", middleware.OptionalJWT(h.tokens), h.petitions.List)
	petitions.GET("/popular", h.petitions.Popular)
	petitions.GET("/:id", middleware.OptionalJWT(h.tokens), h.petitions.Get)
	petitions.POST("", authRequired, h.petitions.Create)
	petitions.POST("/:id/votes", authRequired, h.votes.CastPetition)
	petitions.POST("/:id/like", authRequired, h.petitions.Like)

	admin := api.Group("/admin", authRequired, adminOnly)
	admin.GET("/policy", h.policy.Get)
	admin.PUT("/policy", h.policy.Update)
	admin.PATCH("/petitions/:id", h.petitions.Moderate)
	admin.GET("/membership-requests", h.membership.List)
	admin.DELETE("/membership-requests/:id", h.membership.Delete)
	admin.GET("/users", h.users.List)
	admin.POST("/users", h.users.Create)
	admin.GET("/users/:id", h.users.Get)
	admin.PATCH("/users/:id", h.users.Update)
	admin.GET("/dashboard", h.dashboard.Summary)

	if h.exports != nil {
		admin.POST("/exports", h.exports.Request)
		admin.GET("/exports/:id", h.exports.Status)
		api.GET("/exports/download", middleware.Audit(h.audit, logr, models.AuditActionExportDownload, "export_job"), h.exports.Download)
	}

	return r
}
