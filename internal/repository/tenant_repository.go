package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgate/api/internal/models"
)

var ErrTenantNotFound = errors.New("tenant not found")

type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) Create(ctx context.Context, tenant models.Tenant) (models.Tenant, error) {
	const query = `
		INSERT INTO tenants (name, address, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	row := r.pool.QueryRow(ctx, query, tenant.Name, tenant.Address)
	if err := row.Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id int64) (models.Tenant, error) {
	const query = `
		SELECT id, name, address, created_at, updated_at
		FROM tenants WHERE id = $1
	`

	var tenant models.Tenant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Address,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tenant{}, ErrTenantNotFound
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (r *TenantRepository) List(ctx context.Context, q string, page, perPage int) ([]models.Tenant, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	search := "%" + q + "%"
	const query = `
		SELECT id, name, address, created_at, updated_at
		FROM tenants
		WHERE $1 = '%%' OR name ILIKE $1 OR address ILIKE $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, search, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var tenant models.Tenant
		if err := rows.Scan(
			&tenant.ID,
			&tenant.Name,
			&tenant.Address,
			&tenant.CreatedAt,
			&tenant.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	const countQuery = `
		SELECT COUNT(*) FROM tenants
		WHERE $1 = '%%' OR name ILIKE $1 OR address ILIKE $1
	`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, search).Scan(&total); err != nil {
		return nil, 0, err
	}

	return tenants, total, nil
}

func (r *TenantRepository) Update(ctx context.Context, id int64, name, address string) error {
	const query = `UPDATE tenants SET name = $2, address = $3, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, name, address)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *TenantRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM tenants WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}
