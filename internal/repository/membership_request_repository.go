package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/consejo-api/internal/models"
)

// ErrRequestExists is returned when an applicant already has a request.
var ErrRequestExists = errors.New("membership request already exists")

// MembershipRequestRepository persists membership requests.
type MembershipRequestRepository struct {
	db *sqlx.DB
}

// NewMembershipRequestRepository constructs the repository.
func NewMembershipRequestRepository(db *sqlx.DB) *MembershipRequestRepository {
	return &MembershipRequestRepository{db: db}
}

// Create inserts a pending request.
func (r *MembershipRequestRepository) Create(ctx context.Context, req *models.MembershipRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.State == "" {
		req.State = models.MembershipRequestPending
	}
	const query = `INSERT INTO membership_requests (id, applicant_user_id, text, photo_url, approval_count, rejection_count, state, created_at, resolved_at)
VALUES (:id, :applicant_user_id, :text, :photo_url, :approval_count, :rejection_count, :state, :created_at, :resolved_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		if isUniqueViolation(err) {
			return ErrRequestExists
		}
		return fmt.Errorf("create membership request: %w", err)
	}
	return nil
}

// FindByID returns a request with its applicant.
func (r *MembershipRequestRepository) FindByID(ctx context.Context, id string) (*models.RealMembershipRequest, error) {
	query := realRequestSelect + ` WHERE mr.id = $1`
	var row realRequestRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find membership request: %w", err)
	}
	entry := row.toModel()
	return &entry, nil
}

// FindByApplicant returns the applicant's own request.
func (r *MembershipRequestRepository) FindByApplicant(ctx context.Context, userID string) (*models.MembershipRequest, error) {
	query := `SELECT ` + membershipRequestColumns + ` FROM membership_requests WHERE applicant_user_id = $1`
	var req models.MembershipRequest
	if err := r.db.GetContext(ctx, &req, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find membership request by applicant: %w", err)
	}
	return &req, nil
}

// ListWithApplicants returns stored requests, newest first. An empty state lists all.
func (r *MembershipRequestRepository) ListWithApplicants(ctx context.Context, state models.MembershipRequestState) ([]models.RealMembershipRequest, error) {
	query := realRequestSelect
	args := []interface{}{}
	if state != "" {
		query += ` WHERE mr.state = $1`
		args = append(args, state)
	}
	query += ` ORDER BY mr.created_at DESC`

	var rows []realRequestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list membership requests: %w", err)
	}
	out := make([]models.RealMembershipRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// ListPendingApplicantsWithoutRequest returns pending members who never submitted a request.
func (r *MembershipRequestRepository) ListPendingApplicantsWithoutRequest(ctx context.Context) ([]models.Applicant, error) {
	const query = `SELECT u.id AS user_id, u.display_name, u.created_at
FROM users u
LEFT JOIN membership_requests mr ON mr.applicant_user_id = u.id
WHERE u.membership_state = 'pending_approval' AND u.role <> 'ADMIN' AND mr.id IS NULL
ORDER BY u.created_at DESC`
	var applicants []models.Applicant
	if err := r.db.SelectContext(ctx, &applicants, query); err != nil {
		return nil, fmt.Errorf("list applicants without request: %w", err)
	}
	return applicants, nil
}

const realRequestSelect = `SELECT mr.id, mr.applicant_user_id, mr.text, mr.photo_url, mr.approval_count, mr.rejection_count,
    mr.state, mr.created_at, mr.resolved_at, u.display_name AS applicant_display_name, u.created_at AS applicant_created_at
FROM membership_requests mr
JOIN users u ON u.id = mr.applicant_user_id`

type realRequestRow struct {
	models.MembershipRequest
	ApplicantDisplayName string    `db:"applicant_display_name"`
	ApplicantCreatedAt   time.Time `db:"applicant_created_at"`
}

func (r realRequestRow) toModel() models.RealMembershipRequest {
	return models.RealMembershipRequest{
		MembershipRequest: r.MembershipRequest,
		Applicant: models.Applicant{
			UserID:      r.ApplicantUserID,
			DisplayName: r.ApplicantDisplayName,
			CreatedAt:   r.ApplicantCreatedAt,
		},
	}
}
