package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; tests provide
// fakes implementing it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// FeedbackRepo persists the append-only feedback log in PostgreSQL.
// The worker process is the single writer of automatic entries; ratings arrive
// via the API process and update rows atomically, which removes the lost-update
// race of a read-whole/write-whole file log.
type FeedbackRepo struct{ Pool PgxPool }

// NewFeedbackRepo constructs a FeedbackRepo with the given pool.
func NewFeedbackRepo(p PgxPool) *FeedbackRepo { return &FeedbackRepo{Pool: p} }

// EnsureSchema creates the feedback table when it does not exist yet.
func (r *FeedbackRepo) EnsureSchema(ctx domain.Context) error {
	q := `CREATE TABLE IF NOT EXISTS feedback (
		id UUID PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		sources TEXT[] NOT NULL DEFAULT '{}',
		ai_score DOUBLE PRECISION NOT NULL,
		ai_reason TEXT NOT NULL DEFAULT '',
		user_rating INT,
		language TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := r.Pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("op=feedback.ensure_schema: %w", err)
	}
	return nil
}

// Append inserts a new feedback entry and returns its id. Entries are never
// deleted.
func (r *FeedbackRepo) Append(ctx domain.Context, e domain.FeedbackEntry) (string, error) {
	tracer := otel.Tracer("repo.feedback")
	ctx, span := tracer.Start(ctx, "feedback.Append")
	defer span.End()
	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	q := `INSERT INTO feedback (id, question, answer, sources, ai_score, ai_reason, user_rating, language, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.Pool.Exec(ctx, q, id, e.Question, e.Answer, e.Sources, e.AIScore, e.AIReason, e.UserRating, e.Language, createdAt)
	if err != nil {
		return "", fmt.Errorf("op=feedback.append: %w", err)
	}
	return id, nil
}

// AttachRating sets the user rating on the most recent entry matching
// (question, answer) exactly. Returns false when no entry matched; all other
// entries are left untouched.
func (r *FeedbackRepo) AttachRating(ctx domain.Context, question, answer string, rating int) (bool, error) {
	tracer := otel.Tracer("repo.feedback")
	ctx, span := tracer.Start(ctx, "feedback.AttachRating")
	defer span.End()
	q := `UPDATE feedback SET user_rating=$3 WHERE id = (
		SELECT id FROM feedback WHERE question=$1 AND answer=$2
		ORDER BY created_at DESC LIMIT 1
	)`
	tag, err := r.Pool.Exec(ctx, q, question, answer, rating)
	if err != nil {
		return false, fmt.Errorf("op=feedback.attach_rating: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Recent returns the newest entries up to limit, newest first.
func (r *FeedbackRepo) Recent(ctx domain.Context, limit int) ([]domain.FeedbackEntry, error) {
	tracer := otel.Tracer("repo.feedback")
	ctx, span := tracer.Start(ctx, "feedback.Recent")
	defer span.End()
	q := `SELECT id, question, answer, sources, ai_score, COALESCE(ai_reason,''), user_rating, COALESCE(language,''), created_at
		FROM feedback ORDER BY created_at DESC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=feedback.recent: %w", err)
	}
	defer rows.Close()
	var out []domain.FeedbackEntry
	for rows.Next() {
		var e domain.FeedbackEntry
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Sources, &e.AIScore, &e.AIReason, &e.UserRating, &e.Language, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=feedback.recent: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=feedback.recent: %w", err)
	}
	return out, nil
}
