package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditEntry describes one audited change; values are marshalled to JSON.
type auditEntry struct {
	Action     string
	Resource   string
	ResourceID string
	Old        interface{}
	New        interface{}
	Source     string
}

func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor *models.JWTClaims, entry auditEntry) {
	if audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: strPtr(entry.ResourceID),
		IPAddress:  "system",
		UserAgent:  entry.Source,
	}
	if entry.Old != nil {
		log.OldValues, _ = json.Marshal(entry.Old)
	}
	if entry.New != nil {
		log.NewValues, _ = json.Marshal(entry.New)
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}
