package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgate/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, user_id, user_agent, created_at, first_created_at, expires_at, deletion_time`

// SessionRepository owns the refresh_token_sessions rows. All deletionTime
// transitions go through here; callers never mutate sessions directly.
type SessionRepository struct {
	pool        *pgxpool.Pool
	sessionTTL  time.Duration
	graceWindow time.Duration
	now         func() time.Time
}

func NewSessionRepository(pool *pgxpool.Pool, sessionTTL, graceWindow time.Duration) *SessionRepository {
	return &SessionRepository{
		pool:        pool,
		sessionTTL:  sessionTTL,
		graceWindow: graceWindow,
		now:         time.Now,
	}
}

// Create inserts a new session row. On rotation the caller passes the old
// session's firstCreatedAt so the lineage keeps its original creation time;
// otherwise firstCreatedAt starts at now. Expiry is a fixed offset from
// creation and is not extended by rotation.
func (r *SessionRepository) Create(ctx context.Context, userID int64, userAgent string, firstCreatedAt *time.Time) (models.RefreshTokenSession, error) {
	now := r.now()
	first := now
	if firstCreatedAt != nil {
		first = *firstCreatedAt
	}

	const query = `
		INSERT INTO refresh_token_sessions (user_id, user_agent, created_at, first_created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sessionColumns

	row := r.pool.QueryRow(ctx, query, userID, userAgent, now, first, now.Add(r.sessionTTL))
	return scanSession(row)
}

func (r *SessionRepository) GetByID(ctx context.Context, id int64) (models.RefreshTokenSession, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM refresh_token_sessions
		WHERE id = $1
	`

	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshTokenSession{}, ErrSessionNotFound
		}
		return models.RefreshTokenSession{}, err
	}
	return session, nil
}

// ListActive returns the user's sessions that are not scheduled for deletion.
func (r *SessionRepository) ListActive(ctx context.Context, userID int64) ([]models.RefreshTokenSession, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM refresh_token_sessions
		WHERE user_id = $1 AND deletion_time IS NULL
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.RefreshTokenSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// MarkPendingDeletion schedules the session for deletion a grace window from
// now instead of deleting it outright. A client that already sent the old
// refresh token (duplicate tab, retry) can still complete its rotation inside
// the window. The user's sessions whose window has already elapsed are hard
// deleted opportunistically first.
func (r *SessionRepository) MarkPendingDeletion(ctx context.Context, id, userID int64) error {
	now := r.now()

	const purge = `
		DELETE FROM refresh_token_sessions
		WHERE user_id = $1 AND deletion_time IS NOT NULL AND deletion_time < $2
	`
	if _, err := r.pool.Exec(ctx, purge, userID, now); err != nil {
		return err
	}

	const update = `
		UPDATE refresh_token_sessions
		SET deletion_time = $3
		WHERE id = $1 AND user_id = $2
	`
	cmd, err := r.pool.Exec(ctx, update, id, userID, now.Add(r.graceWindow))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes the session immediately, with no grace window. Deleting an
// absent session is not an error so logout stays idempotent.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM refresh_token_sessions WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// IsRevoked reports whether the session can no longer back a refresh token:
// true when no matching row exists or its deletionTime has already passed,
// false otherwise, including during the grace window.
func (r *SessionRepository) IsRevoked(ctx context.Context, id, userID int64) (bool, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM refresh_token_sessions
		WHERE id = $1 AND user_id = $2
	`

	session, err := scanSession(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return true, err
	}
	return session.Revoked(r.now()), nil
}

// PurgeDead hard-deletes sessions past their grace window or past expiry.
// Run periodically; the inline GC in MarkPendingDeletion only touches rows of
// users who keep rotating.
func (r *SessionRepository) PurgeDead(ctx context.Context) (int64, error) {
	const query = `
		DELETE FROM refresh_token_sessions
		WHERE (deletion_time IS NOT NULL AND deletion_time < $1) OR expires_at < $1
	`
	cmd, err := r.pool.Exec(ctx, query, r.now())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanSession(row pgx.Row) (models.RefreshTokenSession, error) {
	var session models.RefreshTokenSession
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.UserAgent,
		&session.CreatedAt,
		&session.FirstCreatedAt,
		&session.ExpiresAt,
		&session.DeletionTime,
	)
	return session, err
}
