package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tapstand/kiosk/internal/interfaces"
)

// sessionRepository stores one projection per token. The projection body is
// kept as JSONB; the verified flag is a separate column because the pour
// service reads it on every restricted start.
type sessionRepository struct {
	db DB
}

func NewSessionRepository(db DB) interfaces.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Upsert(ctx context.Context, proj interfaces.SessionProjection) error {
	// The verified flag is server-owned; SetVerified is its only writer.
	// A pushed projection can never set it, on insert or update alike.
	proj.Verified = false
	body, err := json.Marshal(proj)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		INSERT INTO sessions (token, state, verified, estimated_age, updated_at)
		VALUES ($1, $2, FALSE, NULL, $3)
		ON CONFLICT (token)
		DO UPDATE SET state = $2, updated_at = $3
	`
	_, err = r.db.Exec(ctx, query, proj.Token, body, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Find(ctx context.Context, token string) (*interfaces.SessionProjection, bool, error) {
	query := `SELECT state, verified FROM sessions WHERE token = $1`

	var body []byte
	var verified bool
	err := r.db.QueryRow(ctx, query, token).Scan(&body, &verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}

	var proj interfaces.SessionProjection
	if err := json.Unmarshal(body, &proj); err != nil {
		return nil, false, fmt.Errorf("stored session is malformed: %w", err)
	}
	proj.Verified = verified
	return &proj, true, nil
}

func (r *sessionRepository) SetVerified(ctx context.Context, token string, estimatedAge int) error {
	query := `
		UPDATE sessions
		SET verified = TRUE, estimated_age = $1, updated_at = $2
		WHERE token = $3
	`
	tag, err := r.db.Exec(ctx, query, estimatedAge, time.Now(), token)
	if err != nil {
		return fmt.Errorf("failed to mark session verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s not found", token)
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
