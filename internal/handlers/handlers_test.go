package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"authgate/api/internal/config"
	"authgate/api/internal/mfa"
	"authgate/api/internal/middleware"
	"authgate/api/internal/models"
	"authgate/api/internal/repository"
	"authgate/api/internal/security"
	"authgate/api/internal/service"
)

type memoryUsers struct {
	users  map[int64]models.User
	nextID int64
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[int64]models.User), nextID: 1}
}

func (m *memoryUsers) Create(_ context.Context, user models.User) (models.User, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			return models.User{}, repository.ErrEmailTaken
		}
	}
	user.ID = m.nextID
	m.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = &hash
	m.users[id] = u
	return nil
}

func (m *memoryUsers) SetEmailVerified(_ context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.EmailVerified = true
	m.users[id] = u
	return nil
}

func (m *memoryUsers) SetMfaSecret(_ context.Context, id int64, secret string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.MfaSecret = &secret
	m.users[id] = u
	return nil
}

func (m *memoryUsers) SetMfaEnabled(_ context.Context, id int64, enabled bool) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.MfaEnabled = enabled
	if !enabled {
		u.MfaSecret = nil
	}
	m.users[id] = u
	return nil
}

func (m *memoryUsers) List(_ context.Context, _ string, role models.Role, _, _ int) ([]models.User, int, error) {
	var out []models.User
	for id := int64(1); id < m.nextID; id++ {
		u, ok := m.users[id]
		if ok && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *memoryUsers) Update(_ context.Context, id int64, firstName, lastName, email string, role models.Role, tenantID *int64) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.FirstName, u.LastName, u.Email, u.Role, u.TenantID = firstName, lastName, email, role, tenantID
	m.users[id] = u
	return nil
}

func (m *memoryUsers) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

type memorySessions struct {
	sessions    map[int64]models.RefreshTokenSession
	nextID      int64
	sessionTTL  time.Duration
	graceWindow time.Duration
}

func newMemorySessions(sessionTTL, graceWindow time.Duration) *memorySessions {
	return &memorySessions{
		sessions:    make(map[int64]models.RefreshTokenSession),
		nextID:      1,
		sessionTTL:  sessionTTL,
		graceWindow: graceWindow,
	}
}

func (m *memorySessions) Create(_ context.Context, userID int64, userAgent string, firstCreatedAt *time.Time) (models.RefreshTokenSession, error) {
	now := time.Now()
	first := now
	if firstCreatedAt != nil {
		first = *firstCreatedAt
	}
	session := models.RefreshTokenSession{
		ID:             m.nextID,
		UserID:         userID,
		UserAgent:      userAgent,
		CreatedAt:      now,
		FirstCreatedAt: first,
		ExpiresAt:      now.Add(m.sessionTTL),
	}
	m.nextID++
	m.sessions[session.ID] = session
	return session, nil
}

func (m *memorySessions) GetByID(_ context.Context, id int64) (models.RefreshTokenSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return models.RefreshTokenSession{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (m *memorySessions) ListActive(_ context.Context, userID int64) ([]models.RefreshTokenSession, error) {
	var out []models.RefreshTokenSession
	for id := int64(1); id < m.nextID; id++ {
		s, ok := m.sessions[id]
		if ok && s.UserID == userID && !s.PendingDeletion() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memorySessions) MarkPendingDeletion(_ context.Context, id, userID int64) error {
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return repository.ErrSessionNotFound
	}
	deletion := time.Now().Add(m.graceWindow)
	s.DeletionTime = &deletion
	m.sessions[id] = s
	return nil
}

func (m *memorySessions) Delete(_ context.Context, id int64) error {
	delete(m.sessions, id)
	return nil
}

func (m *memorySessions) IsRevoked(_ context.Context, id, userID int64) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return true, nil
	}
	return s.Revoked(time.Now()), nil
}

type testEnv struct {
	engine   *gin.Engine
	users    *memoryUsers
	sessions *memorySessions
	signer   *security.TokenSigner
}

// newTestEnv wires the full routing table against in-memory stores, with the
// same middleware chain the real server mounts.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			RefreshSecret: "test-refresh-secret",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    365 * 24 * time.Hour,
			MfaTicketTTL:  time.Minute,
			ResetTokenTTL: 15 * time.Minute,
			GraceWindow:   30 * time.Second,
			BcryptCost:    4,
			Issuer:        "auth-service",
		},
		Cookie: config.CookieConfig{Domain: "localhost"},
		MFA:    config.MFAConfig{Issuer: "Auth Service"},
	}

	logger := zerolog.New(io.Discard)
	signer := security.NewTokenSignerFromKeys(key, &key.PublicKey,
		[]byte(cfg.Security.RefreshSecret), cfg.Security.Issuer,
		cfg.Security.AccessTTL, cfg.Security.RefreshTTL)

	users := newMemoryUsers()
	sessions := newMemorySessions(cfg.Security.RefreshTTL, cfg.Security.GraceWindow)
	hasher := security.NewPasswordHasher(cfg.Security.BcryptCost)
	gate := mfa.NewService(users, cfg.MFA.Issuer)

	auth := service.NewAuthService(users, sessions, signer, hasher, gate, cfg, logger)
	userSvc := service.NewUserService(users, hasher, logger)

	h := HandlerSet{
		log:    logger,
		cfg:    cfg,
		signer: signer,
		auth:   auth,
		users:  userSvc,
		gate:   gate,
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Errors(logger, false),
	)
	h.Routes(engine.Group("/api"))

	return &testEnv{engine: engine, users: users, sessions: sessions, signer: signer}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, d := range decorate {
		d(req)
	}

	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func withBearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookie(name, value string) func(*http.Request) {
	return func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
