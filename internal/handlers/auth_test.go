package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/api/internal/apperror"
	"authgate/api/internal/models"
)

type authBody struct {
	ID           int64  `json:"id"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func registerUser(t *testing.T, env *testEnv, email, password string) authBody {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"firstName": "Rakesh",
		"lastName":  "K",
		"email":     email,
		"password":  password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body authBody
	decodeBody(t, rec, &body)
	require.NotEmpty(t, body.AccessToken)
	require.NotEmpty(t, body.RefreshToken)
	return body
}

func TestRegisterLoginAndListSessions(t *testing.T) {
	env := newTestEnv(t)

	registerUser(t, env, "rakesh@mern.space", "password123")

	rec := env.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "rakesh@mern.space",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login authBody
	decodeBody(t, rec, &login)
	require.NotEmpty(t, login.AccessToken)

	rec = env.do(t, http.MethodGet, "/api/sessions", nil, withBearer(login.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list struct {
		Data []struct {
			ID        int64 `json:"id"`
			IsCurrent bool  `json:"isCurrent"`
		} `json:"data"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Data, 2)

	current := 0
	for _, s := range list.Data {
		if s.IsCurrent {
			current++
		}
	}
	assert.Equal(t, 1, current, "exactly one session is the caller's current one")
}

func TestLoginInvalidCredentialsEnvelope(t *testing.T) {
	env := newTestEnv(t)

	registerUser(t, env, "rakesh@mern.space", "password123")

	unknown := env.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "nobody@mern.space",
		"password": "password123",
	})
	wrongPass := env.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "rakesh@mern.space",
		"password": "not-the-password",
	})

	for _, rec := range []*httptest.ResponseRecorder{unknown, wrongPass} {
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var envlp apperror.Envelope
		decodeBody(t, rec, &envlp)
		require.Len(t, envlp.Errors, 1)

		entry := envlp.Errors[0]
		assert.Equal(t, apperror.TypeInvalidCredentials, entry.Type)
		assert.Equal(t, "email or password does not match", entry.Msg)
		assert.Equal(t, "/api/auth/login", entry.Path)
		assert.Equal(t, http.MethodPost, entry.Method)
		assert.NotEmpty(t, entry.Ref)
	}
}

func TestRefreshWithCookieRotatesTokens(t *testing.T) {
	env := newTestEnv(t)

	reg := registerUser(t, env, "rakesh@mern.space", "password123")

	rec := env.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie("refreshToken", reg.RefreshToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rotated authBody
	decodeBody(t, rec, &rotated)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, reg.RefreshToken, rotated.RefreshToken)

	// the old token is still honored inside the grace window
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie("refreshToken", reg.RefreshToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRefreshWithoutTokenFails(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie("refreshToken", "garbage"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)

	reg := registerUser(t, env, "rakesh@mern.space", "password123")

	rec := env.do(t, http.MethodPost, "/api/auth/logout", nil,
		withBearer(reg.AccessToken), withCookie("refreshToken", reg.RefreshToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the refresh token dies with its session, no grace window
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie("refreshToken", reg.RefreshToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// the stateless access token keeps working until it expires
	rec = env.do(t, http.MethodGet, "/api/auth/self", nil, withBearer(reg.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMfaSetupAndLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	reg := registerUser(t, env, "rakesh@mern.space", "password123")

	rec := env.do(t, http.MethodGet, "/api/auth/setupMfa", nil, withBearer(reg.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var setup struct {
		Secret     string `json:"secret"`
		QRImageURL string `json:"qrImageUrl"`
	}
	decodeBody(t, rec, &setup)
	require.NotEmpty(t, setup.Secret)
	require.NotEmpty(t, setup.QRImageURL)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/api/auth/verifyMfa", gin.H{
		"code":   code,
		"secret": setup.Secret,
	}, withBearer(reg.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// password login now defers to the MFA step
	rec = env.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "rakesh@mern.space",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pending struct {
		ID          int64  `json:"id"`
		MfaRequired bool   `json:"mfaRequired"`
		MfaToken    string `json:"mfaToken"`
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, rec, &pending)
	require.True(t, pending.MfaRequired)
	require.NotEmpty(t, pending.MfaToken)
	require.Empty(t, pending.AccessToken)

	code, err = totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/api/auth/verifyLoginMfa", gin.H{
		"id":       pending.ID,
		"code":     code,
		"mfaToken": pending.MfaToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var issued authBody
	decodeBody(t, rec, &issued)
	assert.NotEmpty(t, issued.AccessToken)
	assert.NotEmpty(t, issued.RefreshToken)
}

func TestVerifyLoginMfaRejectsBadCode(t *testing.T) {
	env := newTestEnv(t)

	reg := registerUser(t, env, "rakesh@mern.space", "password123")

	secret := "JBSWY3DPEHPK3PXP"
	require.NoError(t, env.users.SetMfaSecret(context.Background(), reg.ID, secret))
	require.NoError(t, env.users.SetMfaEnabled(context.Background(), reg.ID, true))

	rec := env.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "rakesh@mern.space",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var pending struct {
		MfaToken string `json:"mfaToken"`
	}
	decodeBody(t, rec, &pending)

	rec = env.do(t, http.MethodPost, "/api/auth/verifyLoginMfa", gin.H{
		"id":       reg.ID,
		"code":     "000000",
		"mfaToken": pending.MfaToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envlp apperror.Envelope
	decodeBody(t, rec, &envlp)
	require.Len(t, envlp.Errors, 1)
	assert.Equal(t, apperror.TypeMfaVerificationFailed, envlp.Errors[0].Type)
}

func TestSelfRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/self", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/self", nil, withBearer("not-a-token"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSelfReturnsProfile(t *testing.T) {
	env := newTestEnv(t)

	reg := registerUser(t, env, "rakesh@mern.space", "password123")

	rec := env.do(t, http.MethodGet, "/api/auth/self", nil, withBearer(reg.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	var profile struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decodeBody(t, rec, &profile)
	assert.Equal(t, reg.ID, profile.ID)
	assert.Equal(t, "rakesh@mern.space", profile.Email)
	assert.Equal(t, string(models.RoleCustomer), profile.Role)
}

func TestAdminRoutesForbiddenForCustomers(t *testing.T) {
	env := newTestEnv(t)

	reg := registerUser(t, env, "rakesh@mern.space", "password123")

	rec := env.do(t, http.MethodGet, "/api/users", nil, withBearer(reg.AccessToken))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEmailVerificationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	reg := registerUser(t, env, "rakesh@mern.space", "password123")

	rec := env.do(t, http.MethodPost, "/api/auth/sendVerifyEmail", nil, withBearer(reg.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var challenge struct {
		Email     string `json:"email"`
		FinalHash string `json:"finalHash"`
	}
	decodeBody(t, rec, &challenge)
	require.Equal(t, "rakesh@mern.space", challenge.Email)
	require.NotEmpty(t, challenge.FinalHash)

	// the OTP is only delivered out of band; fish it from the store-backed flow
	// by verifying against a wrong code first
	rec = env.do(t, http.MethodPost, "/api/auth/verifyEmail", gin.H{
		"otp":       "0000",
		"finalHash": challenge.FinalHash,
	}, withBearer(reg.AccessToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
}
