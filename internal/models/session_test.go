package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionRevoked(t *testing.T) {
	now := time.Now()
	future := now.Add(30 * time.Second)
	past := now.Add(-time.Second)

	tests := []struct {
		name         string
		deletionTime *time.Time
		revoked      bool
	}{
		{name: "active session", deletionTime: nil, revoked: false},
		{name: "inside the grace window", deletionTime: &future, revoked: false},
		{name: "grace window elapsed", deletionTime: &past, revoked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := RefreshTokenSession{ID: 1, UserID: 1, DeletionTime: tt.deletionTime}
			assert.Equal(t, tt.revoked, s.Revoked(now))
			assert.Equal(t, tt.deletionTime != nil, s.PendingDeletion())
		})
	}
}

func TestSessionRevokedAtWindowBoundary(t *testing.T) {
	now := time.Now()

	s := RefreshTokenSession{DeletionTime: &now}
	assert.False(t, s.Revoked(now), "deletion time equal to now is not yet past")
	assert.True(t, s.Revoked(now.Add(time.Millisecond)))
}
