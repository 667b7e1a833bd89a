package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/consejo-api/internal/models"
)

// ErrAlreadyLiked is returned when a user likes the same petition twice.
var ErrAlreadyLiked = errors.New("petition already liked")

// PetitionRepository persists petitions and likes.
type PetitionRepository struct {
	db *sqlx.DB
}

// NewPetitionRepository constructs the repository.
func NewPetitionRepository(db *sqlx.DB) *PetitionRepository {
	return &PetitionRepository{db: db}
}

// Create inserts a new petition in review.
func (r *PetitionRepository) Create(ctx context.Context, p *models.Petition) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.State == "" {
		p.State = models.PetitionInReview
	}
	if p.Images == nil {
		p.Images = pq.StringArray{}
	}
	const query = `INSERT INTO petitions (id, author_user_id, title, description, images, video_url, approval_count, rejection_count, likes, hidden, state, created_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, FALSE, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.AuthorUserID, p.Title, p.Description, pq.Array([]string(p.Images)), p.VideoURL, p.State, p.CreatedAt); err != nil {
		return fmt.Errorf("create petition: %w", err)
	}
	return nil
}

// FindByID returns a petition.
func (r *PetitionRepository) FindByID(ctx context.Context, id string) (*models.Petition, error) {
	query := `SELECT ` + petitionColumns + ` FROM petitions WHERE id = $1`
	var p models.Petition
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find petition: %w", err)
	}
	return &p, nil
}

// List returns petitions matching the filter with the total count.
func (r *PetitionRepository) List(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, int, error) {
	var conditions []string
	var args []interface{}

	if filter.State != nil {
		args = append(args, *filter.State)
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.AuthorUserID != "" {
		args = append(args, filter.AuthorUserID)
		conditions = append(conditions, fmt.Sprintf("author_user_id = $%d", len(args)))
	}
	if !filter.IncludeHidden {
		conditions = append(conditions, "hidden = FALSE")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM petitions%s ORDER BY created_at DESC LIMIT %d OFFSET %d", petitionColumns, where, pageSize, offset)
	var petitions []models.Petition
	if err := r.db.SelectContext(ctx, &petitions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list petitions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM petitions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count petitions: %w", err)
	}
	return petitions, total, nil
}

// Popular returns the most liked visible petitions.
func (r *PetitionRepository) Popular(ctx context.Context, limit int) ([]models.Petition, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + petitionColumns + ` FROM petitions WHERE hidden = FALSE ORDER BY likes DESC, created_at DESC LIMIT $1`
	var petitions []models.Petition
	if err := r.db.SelectContext(ctx, &petitions, query, limit); err != nil {
		return nil, fmt.Errorf("list popular petitions: %w", err)
	}
	return petitions, nil
}

// AddLike records the like and bumps the counter atomically. It returns the new count.
func (r *PetitionRepository) AddLike(ctx context.Context, petitionID, userID string, at time.Time) (likes int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin like transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO petition_likes (petition_id, user_id, created_at) VALUES ($1, $2, $3)`
	if _, err = tx.ExecContext(ctx, insert, petitionID, userID, at); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyLiked
		}
		return 0, fmt.Errorf("insert petition like: %w", err)
	}
	const bump = `UPDATE petitions SET likes = likes + 1 WHERE id = $1 RETURNING likes`
	if err = tx.GetContext(ctx, &likes, bump, petitionID); err != nil {
		return 0, fmt.Errorf("increment petition likes: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit like transaction: %w", err)
	}
	return likes, nil
}

// Moderate applies an admin change and returns the updated petition.
func (r *PetitionRepository) Moderate(ctx context.Context, id string, change models.PetitionModeration, at time.Time) (*models.Petition, error) {
	set := make([]string, 0, 4)
	args := []interface{}{id}

	if change.Hidden != nil {
		args = append(args, *change.Hidden)
		set = append(set, fmt.Sprintf("hidden = $%d", len(args)))
	}
	if change.Title != nil {
		args = append(args, *change.Title)
		set = append(set, fmt.Sprintf("title = $%d", len(args)))
	}
	if change.Description != nil {
		args = append(args, *change.Description)
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}
	if change.Close {
		args = append(args, models.PetitionClosed, at)
		set = append(set, fmt.Sprintf("state = $%d, resolved_at = COALESCE(resolved_at, $%d)", len(args)-1, len(args)))
	}
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	query := fmt.Sprintf("UPDATE petitions SET %s WHERE id = $1 RETURNING %s", strings.Join(set, ", "), petitionColumns)
	var p models.Petition
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("moderate petition: %w", err)
	}
	return &p, nil
}
