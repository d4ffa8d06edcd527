package mfa

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/api/internal/models"
)

type fakeUserStore struct {
	secrets map[int64]string
	enabled map[int64]bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		secrets: make(map[int64]string),
		enabled: make(map[int64]bool),
	}
}

func (f *fakeUserStore) SetMfaSecret(_ context.Context, id int64, secret string) error {
	f.secrets[id] = secret
	return nil
}

func (f *fakeUserStore) SetMfaEnabled(_ context.Context, id int64, enabled bool) error {
	f.enabled[id] = enabled
	if !enabled {
		delete(f.secrets, id)
	}
	return nil
}

func testUser() models.User {
	return models.User{
		ID:        1,
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Email:     gofakeit.Email(),
	}
}

func TestBeginSetupGeneratesSecret(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "Auth Service")

	result, err := svc.BeginSetup(context.Background(), testUser())
	require.NoError(t, err)

	assert.NotEmpty(t, result.Secret)
	assert.Equal(t, result.Secret, store.secrets[1])
	assert.True(t, strings.HasPrefix(result.OtpauthURL, "otpauth://totp/"))
	assert.True(t, strings.HasPrefix(result.QRImageURL, "data:image/png;base64,"))
	assert.False(t, store.enabled[1], "setup alone must not enable MFA")
}

func TestBeginSetupReusesPendingSecret(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "Auth Service")

	pending := "JBSWY3DPEHPK3PXP"
	user := testUser()
	user.MfaSecret = &pending

	result, err := svc.BeginSetup(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, pending, result.Secret)
}

func TestBeginSetupNoopWhenEnabled(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "Auth Service")

	user := testUser()
	user.MfaEnabled = true

	result, err := svc.BeginSetup(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, result.Secret)
	assert.Empty(t, store.secrets)
}

func TestConfirmSetup(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "Auth Service")
	user := testUser()

	setup, err := svc.BeginSetup(context.Background(), user)
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	prefs, err := svc.ConfirmSetup(context.Background(), user, code, setup.Secret)
	require.NoError(t, err)
	assert.True(t, prefs.MfaEnabled)
	assert.True(t, store.enabled[1])
}

func TestConfirmSetupRejectsBadCode(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "Auth Service")
	user := testUser()

	setup, err := svc.BeginSetup(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.ConfirmSetup(context.Background(), user, "000000", setup.Secret)
	require.ErrorIs(t, err, ErrInvalidCode)
	assert.False(t, store.enabled[1])
}

func TestVerifyForLogin(t *testing.T) {
	svc := NewService(newFakeUserStore(), "Auth Service")

	secret := "JBSWY3DPEHPK3PXP"
	user := testUser()
	user.MfaEnabled = true
	user.MfaSecret = &secret

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	require.NoError(t, svc.VerifyForLogin(user, code))
	require.ErrorIs(t, svc.VerifyForLogin(user, "000000"), ErrInvalidCode)

	user.MfaEnabled = false
	require.ErrorIs(t, svc.VerifyForLogin(user, code), ErrNotEnabled)
}

func TestRevoke(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "Auth Service")

	secret := "JBSWY3DPEHPK3PXP"
	user := testUser()
	user.MfaEnabled = true
	user.MfaSecret = &secret
	store.secrets[user.ID] = secret
	store.enabled[user.ID] = true

	prefs, err := svc.Revoke(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, prefs.MfaEnabled)
	assert.False(t, store.enabled[user.ID])
	assert.NotContains(t, store.secrets, user.ID)
}
