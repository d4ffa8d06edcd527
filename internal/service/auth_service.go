package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"authgate/api/internal/apperror"
	"authgate/api/internal/config"
	"authgate/api/internal/mfa"
	"authgate/api/internal/models"
	"authgate/api/internal/repository"
	"authgate/api/internal/security"
)

// UserStore is the user persistence surface the lifecycle manager depends on.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetEmailVerified(ctx context.Context, id int64) error
}

// SessionStore is the refresh-token session persistence surface. The manager
// never mutates session rows directly; deletionTime transitions are owned by
// the store.
type SessionStore interface {
	Create(ctx context.Context, userID int64, userAgent string, firstCreatedAt *time.Time) (models.RefreshTokenSession, error)
	GetByID(ctx context.Context, id int64) (models.RefreshTokenSession, error)
	ListActive(ctx context.Context, userID int64) ([]models.RefreshTokenSession, error)
	MarkPendingDeletion(ctx context.Context, id, userID int64) error
	Delete(ctx context.Context, id int64) error
	IsRevoked(ctx context.Context, id, userID int64) (bool, error)
}

// AuthService is the session lifecycle manager: it owns the state machine an
// authentication attempt walks through (credentials check, optional MFA
// step-up, session issuance, rotation, logout).
type AuthService struct {
	users    UserStore
	sessions SessionStore
	signer   *security.TokenSigner
	hasher   security.PasswordHasher
	gate     *mfa.Service
	cfg      *config.AppConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	signer *security.TokenSigner,
	hasher security.PasswordHasher,
	gate *mfa.Service,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		signer:   signer,
		hasher:   hasher,
		gate:     gate,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is either an issued session (Tokens set) or a pending MFA
// step-up (MfaRequired with a short-lived ticket and no session).
type LoginResult struct {
	User        models.User
	MfaRequired bool
	MfaToken    string
	Tokens      TokenPair
	SessionID   int64
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	UserAgent string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (LoginResult, error) {
	email := normalizeEmail(input.Email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return LoginResult{}, apperror.Conflict("email already exists")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return LoginResult{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return LoginResult{}, apperror.Internal(err, "failed to hash password")
	}

	user, err := s.users.Create(ctx, models.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		PasswordHash: &hash,
		Role:         models.RoleCustomer,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return LoginResult{}, apperror.Conflict("email already exists")
		}
		return LoginResult{}, apperror.Internal(err, "failed to store the user")
	}

	s.log.Info().Int64("user_id", user.ID).Msg("user registered")

	return s.issueSession(ctx, user, input.UserAgent, nil)
}

// Login checks credentials and either issues a session or, for MFA-enabled
// users, returns a short-lived MFA ticket without touching the session store.
// Unknown email and wrong password produce the identical error.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent string) (LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, apperror.InvalidCredentials()
		}
		return LoginResult{}, err
	}

	if user.PasswordHash == nil {
		return LoginResult{}, apperror.InvalidCredentials()
	}

	ok, err := s.hasher.Compare(password, *user.PasswordHash)
	if err != nil {
		return LoginResult{}, apperror.Internal(err, "password comparison failed")
	}
	if !ok {
		return LoginResult{}, apperror.InvalidCredentials()
	}

	if user.MfaEnabled {
		ticket, err := s.signer.SignEphemeral(security.PurposeMfaLogin, user.ID, s.cfg.Security.MfaTicketTTL)
		if err != nil {
			return LoginResult{}, apperror.Internal(err, "failed to sign MFA ticket")
		}
		s.log.Debug().Int64("user_id", user.ID).Msg("login deferred pending MFA")
		return LoginResult{User: user, MfaRequired: true, MfaToken: ticket}, nil
	}

	result, err := s.issueSession(ctx, user, userAgent, nil)
	if err != nil {
		return LoginResult{}, err
	}
	s.log.Info().Int64("user_id", user.ID).Msg("user logged in")
	return result, nil
}

// VerifyMfaAndIssue completes a login that was gated by MFA. Any failure maps
// to the same MfaVerificationFailed; the caller may retry with a fresh code
// until the ticket itself expires.
func (s *AuthService) VerifyMfaAndIssue(ctx context.Context, userID int64, mfaTicket, code, userAgent string) (LoginResult, error) {
	if err := s.signer.VerifyEphemeral(security.PurposeMfaLogin, userID, mfaTicket); err != nil {
		return LoginResult{}, apperror.MfaVerificationFailed()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return LoginResult{}, apperror.MfaVerificationFailed()
	}

	if err := s.gate.VerifyForLogin(user, code); err != nil {
		return LoginResult{}, apperror.MfaVerificationFailed()
	}

	result, err := s.issueSession(ctx, user, userAgent, nil)
	if err != nil {
		return LoginResult{}, err
	}
	s.log.Info().Int64("user_id", user.ID).Msg("user logged in with MFA")
	return result, nil
}

// Refresh rotates the caller's session: the current session is scheduled for
// deletion behind the grace window and a new session inheriting the lineage's
// firstCreatedAt is issued. The old refresh token stays acceptable only until
// the grace window elapses.
func (s *AuthService) Refresh(ctx context.Context, userID, currentRefreshID int64, userAgent string) (LoginResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, apperror.New(http.StatusBadRequest, apperror.TypeValidation, "user with the token could not be found")
		}
		return LoginResult{}, err
	}

	var firstCreatedAt *time.Time
	if old, err := s.sessions.GetByID(ctx, currentRefreshID); err == nil {
		t := old.FirstCreatedAt
		firstCreatedAt = &t
	}

	// An already-missing session counts as revoked-and-collected, not an
	// error: the revocation check ran before we got here.
	if err := s.sessions.MarkPendingDeletion(ctx, currentRefreshID, userID); err != nil &&
		!errors.Is(err, repository.ErrSessionNotFound) {
		return LoginResult{}, err
	}

	result, err := s.issueSession(ctx, user, userAgent, firstCreatedAt)
	if err != nil {
		return LoginResult{}, err
	}
	s.log.Debug().Int64("user_id", user.ID).Int64("old_session", currentRefreshID).
		Int64("new_session", result.SessionID).Msg("session rotated")
	return result, nil
}

// Logout hard-deletes the session with no grace window. Idempotent: an
// already-absent session is treated as already logged out.
func (s *AuthService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.log.Info().Int64("session_id", sessionID).Msg("user logged out")
	return nil
}

// DestroySession kills an arbitrary session by id, for the manage-my-sessions
// UI. Same terminal semantics as logout.
func (s *AuthService) DestroySession(ctx context.Context, sessionID int64) error {
	return s.sessions.Delete(ctx, sessionID)
}

// ListSessions returns the user's active sessions, flagging the one backing
// the caller's current refresh token.
func (s *AuthService) ListSessions(ctx context.Context, userID, currentRefreshID int64) ([]models.SessionInfo, error) {
	sessions, err := s.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]models.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, models.SessionInfo{
			RefreshTokenSession: session,
			IsCurrent:           session.ID == currentRefreshID,
		})
	}
	return infos, nil
}

// IsSessionRevoked is the revocation check run for every inbound refresh
// token before its claims are trusted.
func (s *AuthService) IsSessionRevoked(ctx context.Context, sessionID, userID int64) (bool, error) {
	return s.sessions.IsRevoked(ctx, sessionID, userID)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == nil {
		return apperror.Validation("account has no password set")
	}

	ok, err := s.hasher.Compare(oldPassword, *user.PasswordHash)
	if err != nil {
		return apperror.Internal(err, "password comparison failed")
	}
	if !ok {
		return apperror.Validation("old password is incorrect")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperror.Internal(err, "failed to hash password")
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// SendPasswordReset mints a reset token scoped to the user. Delivery is the
// caller's concern; there is no mail transport here.
func (s *AuthService) SendPasswordReset(ctx context.Context, email string) (models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, "", apperror.NotFound("user not found")
		}
		return models.User{}, "", err
	}

	token, err := s.signer.SignEphemeral(security.PurposePasswordReset, user.ID, s.cfg.Security.ResetTokenTTL)
	if err != nil {
		return models.User{}, "", apperror.Internal(err, "failed to sign reset token")
	}
	return user, token, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, userID int64, token, newPassword string) error {
	if err := s.signer.VerifyEphemeral(security.PurposePasswordReset, userID, token); err != nil {
		return apperror.New(http.StatusUnauthorized, apperror.TypeNotAuthenticated, "invalid or expired reset token")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperror.Internal(err, "failed to hash password")
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

const emailOTPTTL = 2 * time.Minute

type EmailChallenge struct {
	Email     string
	OTP       string
	FinalHash string
}

// SendEmailVerification builds a stateless OTP challenge: the HMAC of
// email.otp.expiry travels to the client and comes back with the code, so
// nothing is stored server side.
func (s *AuthService) SendEmailVerification(ctx context.Context, userID int64) (EmailChallenge, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return EmailChallenge{}, err
	}

	otp, err := security.GenerateOTP()
	if err != nil {
		return EmailChallenge{}, apperror.Internal(err, "failed to generate OTP")
	}

	expires := s.now().Add(emailOTPTTL).UnixMilli()
	data := fmt.Sprintf("%s.%s.%d", user.Email, otp, expires)
	hash := security.HashOTP(s.cfg.Security.RefreshSecret, data)

	return EmailChallenge{
		Email:     user.Email,
		OTP:       otp,
		FinalHash: fmt.Sprintf("%s.%d", hash, expires),
	}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, userID int64, otp, finalHash string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	idx := strings.LastIndex(finalHash, ".")
	if idx < 0 {
		return apperror.Validation("malformed verification hash")
	}
	hash, expiresStr := finalHash[:idx], finalHash[idx+1:]

	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return apperror.Validation("malformed verification hash")
	}
	if s.now().UnixMilli() > expires {
		return apperror.Validation("verification code expired")
	}

	data := fmt.Sprintf("%s.%s.%d", user.Email, otp, expires)
	if !security.VerifyOTP(s.cfg.Security.RefreshSecret, hash, data) {
		return apperror.Validation("invalid verification code")
	}

	return s.users.SetEmailVerified(ctx, userID)
}

// issueSession creates the session row and mints the token pair bound to it.
func (s *AuthService) issueSession(ctx context.Context, user models.User, userAgent string, firstCreatedAt *time.Time) (LoginResult, error) {
	session, err := s.sessions.Create(ctx, user.ID, userAgent, firstCreatedAt)
	if err != nil {
		return LoginResult{}, apperror.Internal(err, "failed to persist session")
	}

	payload := tokenPayload(user, session.ID)

	accessToken, err := s.signer.SignAccessToken(payload)
	if err != nil {
		return LoginResult{}, apperror.Internal(err, "failed to sign access token")
	}

	refreshToken, err := s.signer.SignRefreshToken(payload, session.ID)
	if err != nil {
		return LoginResult{}, apperror.Internal(err, "failed to sign refresh token")
	}

	return LoginResult{
		User:      user,
		SessionID: session.ID,
		Tokens: TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		},
	}, nil
}

func tokenPayload(user models.User, sessionID int64) security.TokenPayload {
	tenant := ""
	if user.TenantID != nil {
		tenant = strconv.FormatInt(*user.TenantID, 10)
	}
	return security.TokenPayload{
		UserID:    user.ID,
		Role:      string(user.Role),
		Tenant:    tenant,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		RefreshID: sessionID,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
