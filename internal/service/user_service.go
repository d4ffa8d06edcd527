package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"authgate/api/internal/apperror"
	"authgate/api/internal/models"
	"authgate/api/internal/repository"
	"authgate/api/internal/security"
)

// AdminUserStore extends UserStore with the administrative operations.
type AdminUserStore interface {
	UserStore
	List(ctx context.Context, q string, role models.Role, page, perPage int) ([]models.User, int, error)
	Update(ctx context.Context, id int64, firstName, lastName, email string, role models.Role, tenantID *int64) error
	Delete(ctx context.Context, id int64) error
}

// UserService is the administrative user CRUD used by manager/admin roles.
type UserService struct {
	users  AdminUserStore
	hasher security.PasswordHasher
	log    zerolog.Logger
}

func NewUserService(users AdminUserStore, hasher security.PasswordHasher, log zerolog.Logger) *UserService {
	return &UserService{users: users, hasher: hasher, log: log}
}

type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      models.Role
	TenantID  *int64
}

func (s *UserService) Create(ctx context.Context, input CreateUserInput) (models.User, error) {
	email := normalizeEmail(input.Email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.User{}, apperror.Conflict("email already exists")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, apperror.Internal(err, "failed to hash password")
	}

	user, err := s.users.Create(ctx, models.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		PasswordHash: &hash,
		Role:         input.Role,
		TenantID:     input.TenantID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.User{}, apperror.Conflict("email already exists")
		}
		return models.User{}, apperror.Internal(err, "failed to store the user")
	}

	s.log.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperror.NotFound("user not found")
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, q string, role models.Role, page, perPage int) ([]models.User, int, error) {
	return s.users.List(ctx, q, role, page, perPage)
}

type UpdateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Role      models.Role
	TenantID  *int64
}

func (s *UserService) Update(ctx context.Context, id int64, input UpdateUserInput) error {
	err := s.users.Update(ctx, id, input.FirstName, input.LastName, normalizeEmail(input.Email), input.Role, input.TenantID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperror.NotFound("user not found")
	}
	return err
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	err := s.users.Delete(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperror.NotFound("user not found")
	}
	if err == nil {
		s.log.Info().Int64("user_id", id).Msg("user deleted")
	}
	return err
}
