package models

import "time"

// RefreshTokenSession is one row per issued refresh token. Its id doubles as
// the refresh JWT id (jti). FirstCreatedAt is preserved across rotations so a
// session lineage keeps its original creation time. DeletionTime is tri-state:
// nil (active), in the future (pending revocation, still valid for in-flight
// requests), or in the past (revoked, eligible for hard deletion).
type RefreshTokenSession struct {
	ID             int64
	UserID         int64
	UserAgent      string
	CreatedAt      time.Time
	FirstCreatedAt time.Time
	ExpiresAt      time.Time
	DeletionTime   *time.Time
}

// Revoked reports whether the session must be rejected at time now. The grace
// window between now and a future DeletionTime still counts as valid.
func (s RefreshTokenSession) Revoked(now time.Time) bool {
	return s.DeletionTime != nil && s.DeletionTime.Before(now)
}

// PendingDeletion reports whether the session has been scheduled for deletion,
// regardless of whether the grace window has elapsed.
func (s RefreshTokenSession) PendingDeletion() bool {
	return s.DeletionTime != nil
}

// SessionInfo is the session projection returned by the sessions listing,
// annotated with whether it backs the caller's current refresh token.
type SessionInfo struct {
	RefreshTokenSession
	IsCurrent bool
}
