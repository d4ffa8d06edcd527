package mfa

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/url"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"authgate/api/internal/models"
)

var (
	ErrInvalidCode = errors.New("invalid MFA code")
	ErrNotEnabled  = errors.New("MFA not enabled for this user")
)

// UserStore is the slice of user persistence the MFA gate needs.
type UserStore interface {
	SetMfaSecret(ctx context.Context, id int64, secret string) error
	SetMfaEnabled(ctx context.Context, id int64, enabled bool) error
}

// Service drives the per-user MFA state machine:
// Disabled -> SetupPending -> Enabled, and Enabled -> Disabled via Revoke.
type Service struct {
	users  UserStore
	issuer string
}

func NewService(users UserStore, issuer string) *Service {
	return &Service{users: users, issuer: issuer}
}

type SetupResult struct {
	Message    string
	Secret     string
	OtpauthURL string
	QRImageURL string
}

type Preferences struct {
	MfaEnabled bool `json:"enable2FA"`
}

// BeginSetup generates (or reuses a previously generated but unconfirmed)
// shared secret, persists it unconfirmed and returns a scannable provisioning
// QR. A no-op when MFA is already enabled.
func (s *Service) BeginSetup(ctx context.Context, user models.User) (SetupResult, error) {
	if user.MfaEnabled {
		return SetupResult{Message: "MFA already enabled"}, nil
	}

	var secret string
	if user.MfaSecret != nil && *user.MfaSecret != "" {
		secret = *user.MfaSecret
	} else {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.issuer,
			AccountName: user.Email,
		})
		if err != nil {
			return SetupResult{}, fmt.Errorf("generate totp secret: %w", err)
		}
		secret = key.Secret()

		if err := s.users.SetMfaSecret(ctx, user.ID, secret); err != nil {
			return SetupResult{}, err
		}
	}

	key, err := s.provisioningKey(user, secret)
	if err != nil {
		return SetupResult{}, err
	}

	qr, err := renderQRDataURL(key)
	if err != nil {
		return SetupResult{}, err
	}

	return SetupResult{
		Message:    "Scan the QR code or use the setup key.",
		Secret:     secret,
		OtpauthURL: key.URL(),
		QRImageURL: qr,
	}, nil
}

// ConfirmSetup verifies the submitted code against the secret and flips the
// state to Enabled. A failed code leaves the state at SetupPending.
func (s *Service) ConfirmSetup(ctx context.Context, user models.User, code, secret string) (Preferences, error) {
	if user.MfaEnabled {
		return Preferences{MfaEnabled: true}, nil
	}

	if !totp.Validate(code, secret) {
		return Preferences{}, ErrInvalidCode
	}

	if err := s.users.SetMfaSecret(ctx, user.ID, secret); err != nil {
		return Preferences{}, err
	}
	if err := s.users.SetMfaEnabled(ctx, user.ID, true); err != nil {
		return Preferences{}, err
	}

	return Preferences{MfaEnabled: true}, nil
}

// Revoke clears the secret and disables MFA. Reports already-disabled as a
// no-op rather than an error.
func (s *Service) Revoke(ctx context.Context, user models.User) (Preferences, error) {
	if !user.MfaEnabled {
		return Preferences{MfaEnabled: false}, nil
	}

	if err := s.users.SetMfaEnabled(ctx, user.ID, false); err != nil {
		return Preferences{}, err
	}
	return Preferences{MfaEnabled: false}, nil
}

// VerifyForLogin checks a login-time code. State is not mutated.
func (s *Service) VerifyForLogin(user models.User, code string) error {
	if !user.MfaEnabled || user.MfaSecret == nil {
		return ErrNotEnabled
	}
	if !totp.Validate(code, *user.MfaSecret) {
		return ErrInvalidCode
	}
	return nil
}

// provisioningKey rebuilds an otpauth key for an existing base32 secret so
// the QR rendered on a retried setup matches the stored secret.
func (s *Service) provisioningKey(user models.User, secret string) (*otp.Key, error) {
	values := url.Values{}
	values.Set("secret", secret)
	values.Set("issuer", s.issuer)
	values.Set("algorithm", "SHA1")
	values.Set("digits", "6")
	values.Set("period", "30")

	provisioning := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + s.issuer + ":" + user.FullName(),
		RawQuery: values.Encode(),
	}

	key, err := otp.NewKeyFromURL(provisioning.String())
	if err != nil {
		return nil, fmt.Errorf("build provisioning key: %w", err)
	}
	return key, nil
}

func renderQRDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
