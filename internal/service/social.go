package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"authgate/api/internal/apperror"
	"authgate/api/internal/config"
	"authgate/api/internal/models"
	"authgate/api/internal/repository"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	githubUserURL     = "https://api.github.com/user"
)

// SocialService handles the Google/GitHub authorization-code flows and the
// upsert of social-only accounts. Token exchange is delegated to oauth2.
type SocialService struct {
	auth    *AuthService
	users   UserStore
	configs map[string]*oauth2.Config
	log     zerolog.Logger
}

func NewSocialService(auth *AuthService, users UserStore, cfg config.OAuthConfig, log zerolog.Logger) *SocialService {
	return &SocialService{
		auth:  auth,
		users: users,
		configs: map[string]*oauth2.Config{
			ProviderGoogle: {
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				RedirectURL:  cfg.Google.RedirectURL,
				Scopes:       []string{"email", "profile"},
				Endpoint:     google.Endpoint,
			},
			ProviderGitHub: {
				ClientID:     cfg.GitHub.ClientID,
				ClientSecret: cfg.GitHub.ClientSecret,
				RedirectURL:  cfg.GitHub.RedirectURL,
				Scopes:       []string{"user:email"},
				Endpoint:     github.Endpoint,
			},
		},
		log: log,
	}
}

// AuthCodeURL returns the provider consent URL for the given CSRF state.
func (s *SocialService) AuthCodeURL(provider, state string) (string, error) {
	conf, ok := s.configs[provider]
	if !ok {
		return "", apperror.Validation("unknown oauth provider")
	}
	return conf.AuthCodeURL(state), nil
}

// HandleCallback exchanges the authorization code, fetches the provider
// profile, upserts the social account and issues a session.
func (s *SocialService) HandleCallback(ctx context.Context, provider, code, userAgent string) (LoginResult, error) {
	conf, ok := s.configs[provider]
	if !ok {
		return LoginResult{}, apperror.Validation("unknown oauth provider")
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return LoginResult{}, apperror.Wrap(err, http.StatusUnauthorized, apperror.TypeNotAuthenticated, "oauth code exchange failed")
	}

	profile, err := s.fetchProfile(ctx, conf, provider, token)
	if err != nil {
		return LoginResult{}, err
	}
	if profile.Email == "" {
		return LoginResult{}, apperror.Validation("oauth provider returned no email")
	}

	user, err := s.upsertSocialUser(ctx, profile)
	if err != nil {
		return LoginResult{}, err
	}

	result, err := s.auth.issueSession(ctx, user, userAgent, nil)
	if err != nil {
		return LoginResult{}, err
	}
	s.log.Info().Int64("user_id", user.ID).Str("provider", provider).Msg("social login")
	return result, nil
}

type socialProfile struct {
	Email     string
	FirstName string
	LastName  string
}

func (s *SocialService) fetchProfile(ctx context.Context, conf *oauth2.Config, provider string, token *oauth2.Token) (socialProfile, error) {
	client := conf.Client(ctx, token)

	switch provider {
	case ProviderGoogle:
		var payload struct {
			Email      string `json:"email"`
			GivenName  string `json:"given_name"`
			FamilyName string `json:"family_name"`
		}
		if err := fetchJSON(client, googleUserInfoURL, &payload); err != nil {
			return socialProfile{}, apperror.Internal(err, "failed to fetch google profile")
		}
		return socialProfile{Email: payload.Email, FirstName: payload.GivenName, LastName: payload.FamilyName}, nil

	case ProviderGitHub:
		var payload struct {
			Email string `json:"email"`
			Name  string `json:"name"`
			Login string `json:"login"`
		}
		if err := fetchJSON(client, githubUserURL, &payload); err != nil {
			return socialProfile{}, apperror.Internal(err, "failed to fetch github profile")
		}
		first := payload.Name
		if first == "" {
			first = payload.Login
		}
		return socialProfile{Email: payload.Email, FirstName: first}, nil

	default:
		return socialProfile{}, apperror.Validation("unknown oauth provider")
	}
}

func (s *SocialService) upsertSocialUser(ctx context.Context, profile socialProfile) (models.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(profile.Email))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, err
	}

	// Social-only accounts carry no password hash; password login for them
	// fails the uniform credentials check.
	user, err = s.users.Create(ctx, models.User{
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
		Email:         normalizeEmail(profile.Email),
		Role:          models.RoleCustomer,
		IsSocial:      true,
		EmailVerified: true,
	})
	if err != nil {
		return models.User{}, apperror.Internal(err, "failed to store the user")
	}
	return user, nil
}

func fetchJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
