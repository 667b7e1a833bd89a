package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/consejo-api/api/swagger"
	"github.com/noah-isme/consejo-api/internal/handler"
	"github.com/noah-isme/consejo-api/internal/repository"
	"github.com/noah-isme/consejo-api/internal/service"
	"github.com/noah-isme/consejo-api/pkg/cache"
	"github.com/noah-isme/consejo-api/pkg/config"
	"github.com/noah-isme/consejo-api/pkg/database"
	"github.com/noah-isme/consejo-api/pkg/jobs"
	"github.com/noah-isme/consejo-api/pkg/logger"
)

// @title Consejo API
// @version 1.0.0
// @description Membership-gated community petitions with budgeted, threshold-resolved voting
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to ensure schema", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	requestRepo := repository.NewMembershipRequestRepository(db)
	petitionRepo := repository.NewPetitionRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	txManager := repository.NewTxManager(db, cfg.Database.TxMaxRetries, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Policy.CacheTTL, logr, redisClient != nil)
	policySvc := service.NewPolicyService(policyRepo, cacheSvc, auditRepo, cfg.Policy, validate, logr)
	budgetSvc := service.NewBudgetService(txManager, policySvc, logr)
	votingSvc := service.NewVotingService(txManager, policySvc, budgetSvc, auditRepo, metrics, validate, logr)
	membershipSvc := service.NewMembershipService(requestRepo, userRepo, voteRepo, txManager, auditRepo, validate, logr)
	petitionSvc := service.NewPetitionService(petitionRepo, userRepo, voteRepo, auditRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, policySvc, auditRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, logr, service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL})
	authSvc := service.NewAuthService(userRepo, policySvc, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		BootstrapMembers:  cfg.Bootstrap.AutoApproveMembers,
	})

	if cfg.Bootstrap.AdminEmail != "" {
		if err := authSvc.SeedAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminDisplayName); err != nil {
			logr.Fatal("failed to seed admin account", zap.Error(err))
		}
	}

	handlers := routeHandlers{
		auth:       handler.NewAuthHandler(authSvc),
		budget:     handler.NewBudgetHandler(budgetSvc),
		votes:      handler.NewVoteHandler(votingSvc),
		membership: handler.NewMembershipHandler(membershipSvc),
		petitions:  handler.NewPetitionHandler(petitionSvc),
		policy:     handler.NewPolicyHandler(policySvc),
		users:      handler.NewUserHandler(userSvc),
		dashboard:  handler.NewDashboardHandler(dashboardSvc),
		metrics: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
		tokens: authSvc,
		audit:  auditRepo,
	}

	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		exportQueue, handlers.exports, err = startExports(ctx, cfg, exportDeps{
			db:        db,
			petitions: petitionRepo,
			requests:  requestRepo,
			audit:     auditRepo,
			metrics:   metrics,
			validate:  validate,
			logger:    logr,
		})
		if err != nil {
			logr.Fatal("failed to start export pipeline", zap.Error(err))
		}
	}

	r := newRouter(cfg, logr, metrics, handlers)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}
