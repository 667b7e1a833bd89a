package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// EnsureSchema creates the tables the service needs. Safe to call on every boot.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    display_name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'MEMBER' CHECK (role IN ('ADMIN', 'MEMBER')),
    membership_state TEXT NOT NULL DEFAULT 'pending_approval'
        CHECK (membership_state IN ('pending_approval', 'approved', 'rejected', 'banned')),
    vote_budget INTEGER NOT NULL DEFAULT 10 CHECK (vote_budget >= 0),
    last_budget_regen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_membership_state ON users(membership_state);

CREATE TABLE IF NOT EXISTS policy_config (
    id INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    min_votes_petition INTEGER NOT NULL CHECK (min_votes_petition >= 0),
    min_votes_membership_request INTEGER NOT NULL CHECK (min_votes_membership_request >= 0),
    approval_percentage INTEGER NOT NULL CHECK (approval_percentage BETWEEN 0 AND 100),
    max_vote_budget INTEGER NOT NULL CHECK (max_vote_budget >= 0),
    regen_interval_minutes INTEGER NOT NULL CHECK (regen_interval_minutes >= 1),
    daily_approval_cap INTEGER NOT NULL CHECK (daily_approval_cap >= 0),
    updated_by TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS membership_requests (
    id TEXT PRIMARY KEY,
    applicant_user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    photo_url TEXT NOT NULL,
    approval_count INTEGER NOT NULL DEFAULT 0 CHECK (approval_count >= 0),
    rejection_count INTEGER NOT NULL DEFAULT 0 CHECK (rejection_count >= 0),
    state TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'approved', 'rejected')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS membership_request_votes (
    id TEXT PRIMARY KEY,
    voter_user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    target_id TEXT NOT NULL REFERENCES membership_requests(id) ON DELETE CASCADE,
    choice TEXT NOT NULL CHECK (choice IN ('approve', 'reject')),
    comment TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (voter_user_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_mr_votes_voter_created ON membership_request_votes(voter_user_id, created_at);

CREATE TABLE IF NOT EXISTS petitions (
    id TEXT PRIMARY KEY,
    author_user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    images TEXT[] NOT NULL DEFAULT '{}',
    video_url TEXT,
    approval_count INTEGER NOT NULL DEFAULT 0 CHECK (approval_count >= 0),
    rejection_count INTEGER NOT NULL DEFAULT 0 CHECK (rejection_count >= 0),
    likes INTEGER NOT NULL DEFAULT 0,
    hidden BOOLEAN NOT NULL DEFAULT FALSE,
    state TEXT NOT NULL DEFAULT 'in_review' CHECK (state IN ('in_review', 'approved', 'not_approved', 'closed')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_petitions_state ON petitions(state);

CREATE TABLE IF NOT EXISTS petition_votes (
    id TEXT PRIMARY KEY,
    voter_user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    target_id TEXT NOT NULL REFERENCES petitions(id) ON DELETE CASCADE,
    choice TEXT NOT NULL CHECK (choice IN ('approve', 'reject', 'discuss')),
    comment TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (voter_user_id, target_id)
);

CREATE TABLE IF NOT EXISTS petition_likes (
    petition_id TEXT NOT NULL REFERENCES petitions(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (petition_id, user_id)
);

CREATE TABLE IF NOT EXISTS audit_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT,
    action TEXT NOT NULL,
    resource TEXT NOT NULL,
    resource_id TEXT,
    old_values JSONB,
    new_values JSONB,
    ip_address TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS export_jobs (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL CHECK (type IN ('petitions', 'membership_requests')),
    format TEXT NOT NULL CHECK (format IN ('csv', 'pdf')),
    params JSONB NOT NULL DEFAULT '{}',
    status TEXT NOT NULL CHECK (status IN ('queued', 'processing', 'finished', 'failed')),
    result_path TEXT,
    result_url TEXT,
    error_message TEXT,
    created_by TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    finished_at TIMESTAMPTZ
);
`
