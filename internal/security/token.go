package security

import (
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authgate/api/internal/config"
)

var (
	ErrKeyUnavailable = errors.New("access token signing key unavailable")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidToken   = errors.New("invalid token")
)

// Purpose scopes an ephemeral token to a single use. Each purpose mixes into
// the derived signing key, so a leaked MFA ticket cannot pass as a password
// reset token or vice versa.
type Purpose string

const (
	PurposeMfaLogin      Purpose = "mfa_login"
	PurposePasswordReset Purpose = "password_reset"
)

// TokenPayload carries the identity fields embedded into signed tokens.
type TokenPayload struct {
	UserID    int64
	Role      string
	Tenant    string
	FirstName string
	LastName  string
	Email     string
	RefreshID int64
}

// Claims is the JWT claim set for both access and refresh tokens. For refresh
// tokens the registered ID (jti) equals the backing session id.
type Claims struct {
	Role      string `json:"role"`
	Tenant    string `json:"tenant,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	RefreshID int64  `json:"refreshId"`
	jwt.RegisteredClaims
}

type ephemeralClaims struct {
	UserID int64 `json:"userID"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies access, refresh and ephemeral tokens. Pure
// cryptographic computation, no I/O.
type TokenSigner struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenSigner loads the RSA keypair from the configured PEM files. A
// missing private key is tolerated: verification still works, signing access
// tokens fails with ErrKeyUnavailable.
func NewTokenSigner(cfg config.SecurityConfig) (*TokenSigner, error) {
	var (
		privateKey *rsa.PrivateKey
		publicKey  *rsa.PublicKey
	)

	if cfg.AccessPrivateKeyFile != "" {
		key, err := loadPrivateKey(cfg.AccessPrivateKeyFile)
		if err == nil {
			privateKey = key
			publicKey = &key.PublicKey
		}
	}
	if publicKey == nil {
		key, err := loadPublicKey(cfg.AccessPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("no usable access token key: %w", err)
		}
		publicKey = key
	}

	return NewTokenSignerFromKeys(privateKey, publicKey, []byte(cfg.RefreshSecret), cfg.Issuer, cfg.AccessTTL, cfg.RefreshTTL), nil
}

func NewTokenSignerFromKeys(
	privateKey *rsa.PrivateKey,
	publicKey *rsa.PublicKey,
	refreshSecret []byte,
	issuer string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) *TokenSigner {
	return &TokenSigner{
		privateKey:    privateKey,
		publicKey:     publicKey,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// SignAccessToken mints a short-lived RS256 token for the payload.
func (s *TokenSigner) SignAccessToken(payload TokenPayload) (string, error) {
	if s.privateKey == nil {
		return "", ErrKeyUnavailable
	}

	now := s.now()
	claims := Claims{
		Role:      payload.Role,
		Tenant:    payload.Tenant,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		RefreshID: payload.RefreshID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(payload.UserID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates signature, expiry and issuer of an access token.
func (s *TokenSigner) VerifyAccessToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, normalizeJWTError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignRefreshToken mints a long-lived HS256 token whose jti is the session id,
// making every refresh token individually identifiable and revocable.
func (s *TokenSigner) SignRefreshToken(payload TokenPayload, sessionID int64) (string, error) {
	now := s.now()
	claims := Claims{
		Role:      payload.Role,
		Tenant:    payload.Tenant,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		RefreshID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(payload.UserID, 10),
			Issuer:    s.issuer,
			ID:        strconv.FormatInt(sessionID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

func (s *TokenSigner) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.refreshSecret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, normalizeJWTError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignEphemeral mints a short-lived single-purpose token bound to one subject.
func (s *TokenSigner) SignEphemeral(purpose Purpose, subjectID int64, ttl time.Duration) (string, error) {
	now := s.now()
	claims := ephemeralClaims{
		UserID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			Issuer:    s.issuer,
			ID:        strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.ephemeralKey(purpose, subjectID))
	if err != nil {
		return "", fmt.Errorf("sign ephemeral token: %w", err)
	}
	return signed, nil
}

// VerifyEphemeral checks an ephemeral token against the expected purpose and
// subject. A token minted for another subject or purpose fails the signature
// check because the derived key differs.
func (s *TokenSigner) VerifyEphemeral(purpose Purpose, subjectID int64, tokenStr string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &ephemeralClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.ephemeralKey(purpose, subjectID), nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return normalizeJWTError(err)
	}

	claims, ok := token.Claims.(*ephemeralClaims)
	if !ok || !token.Valid || claims.UserID != subjectID {
		return ErrInvalidToken
	}
	return nil
}

// ephemeralKey derives a per-purpose, per-subject signing key from the
// deployment secret via HMAC-SHA256.
func (s *TokenSigner) ephemeralKey(purpose Purpose, subjectID int64) []byte {
	mac := hmac.New(sha256.New, s.refreshSecret)
	mac.Write([]byte(string(purpose) + ":" + strconv.FormatInt(subjectID, 10)))
	return mac.Sum(nil)
}

func normalizeJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}
