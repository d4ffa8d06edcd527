package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"authgate/api/internal/apperror"
	"authgate/api/internal/models"
	"authgate/api/internal/repository"
)

type TenantStore interface {
	Create(ctx context.Context, tenant models.Tenant) (models.Tenant, error)
	GetByID(ctx context.Context, id int64) (models.Tenant, error)
	List(ctx context.Context, q string, page, perPage int) ([]models.Tenant, int, error)
	Update(ctx context.Context, id int64, name, address string) error
	Delete(ctx context.Context, id int64) error
}

type TenantService struct {
	tenants TenantStore
	log     zerolog.Logger
}

func NewTenantService(tenants TenantStore, log zerolog.Logger) *TenantService {
	return &TenantService{tenants: tenants, log: log}
}

func (s *TenantService) Create(ctx context.Context, name, address string) (models.Tenant, error) {
	tenant, err := s.tenants.Create(ctx, models.Tenant{Name: name, Address: address})
	if err != nil {
		return models.Tenant{}, apperror.Internal(err, "failed to store the tenant")
	}
	s.log.Info().Int64("tenant_id", tenant.ID).Msg("tenant created")
	return tenant, nil
}

func (s *TenantService) GetByID(ctx context.Context, id int64) (models.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			return models.Tenant{}, apperror.NotFound("tenant not found")
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (s *TenantService) List(ctx context.Context, q string, page, perPage int) ([]models.Tenant, int, error) {
	return s.tenants.List(ctx, q, page, perPage)
}

func (s *TenantService) Update(ctx context.Context, id int64, name, address string) error {
	err := s.tenants.Update(ctx, id, name, address)
	if errors.Is(err, repository.ErrTenantNotFound) {
		return apperror.NotFound("tenant not found")
	}
	return err
}

func (s *TenantService) Delete(ctx context.Context, id int64) error {
	err := s.tenants.Delete(ctx, id)
	if errors.Is(err, repository.ErrTenantNotFound) {
		return apperror.NotFound("tenant not found")
	}
	if err == nil {
		s.log.Info().Int64("tenant_id", id).Msg("tenant deleted")
	}
	return err
}
