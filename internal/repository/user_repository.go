package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgate/api/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already exists")
)

const userColumns = `
	u.id, u.first_name, u.last_name, u.email, u.password_hash, u.role,
	u.tenant_id, u.mfa_enabled, u.mfa_secret, u.is_social, u.email_verified,
	u.created_at, u.updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (
			first_name, last_name, email, password_hash, role, tenant_id,
			is_social, email_verified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	row := r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.TenantID,
		user.IsSocial,
		user.EmailVerified,
	)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindByEmail returns the user including the password hash and tenant, for
// credential checks at login.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `,
			t.id, t.name, t.address, t.created_at, t.updated_at
		FROM users u
		LEFT JOIN tenants t ON t.id = u.tenant_id
		WHERE u.email = $1
	`
	return r.scanUserWithTenant(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `,
			t.id, t.name, t.address, t.created_at, t.updated_at
		FROM users u
		LEFT JOIN tenants t ON t.id = u.tenant_id
		WHERE u.id = $1
	`
	return r.scanUserWithTenant(r.pool.QueryRow(ctx, query, id))
}

// List returns a page of users matching an optional case-insensitive name or
// email search and an optional role filter, newest first, plus the unpaged
// total.
func (r *UserRepository) List(ctx context.Context, q string, role models.Role, page, perPage int) ([]models.User, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	search := "%" + q + "%"
	const query = `
		SELECT ` + userColumns + `,
			t.id, t.name, t.address, t.created_at, t.updated_at
		FROM users u
		LEFT JOIN tenants t ON t.id = u.tenant_id
		WHERE ($1 = '%%' OR u.first_name ILIKE $1 OR u.last_name ILIKE $1 OR u.email ILIKE $1)
			AND ($2 = '' OR u.role = $2)
		ORDER BY u.id DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, search, string(role), perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := r.scanUserWithTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	const countQuery = `
		SELECT COUNT(*) FROM users u
		WHERE ($1 = '%%' OR u.first_name ILIKE $1 OR u.last_name ILIKE $1 OR u.email ILIKE $1)
			AND ($2 = '' OR u.role = $2)
	`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, search, string(role)).Scan(&total); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, firstName, lastName, email string, role models.Role, tenantID *int64) error {
	const query = `
		UPDATE users
		SET first_name = $2, last_name = $3, email = $4, role = $5, tenant_id = $6, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, firstName, lastName, email, role, tenantID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetMfaSecret stores a generated-but-unconfirmed shared secret.
func (r *UserRepository) SetMfaSecret(ctx context.Context, id int64, secret string) error {
	const query = `UPDATE users SET mfa_secret = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, secret)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetMfaEnabled flips MFA on or off; disabling also clears the secret.
func (r *UserRepository) SetMfaEnabled(ctx context.Context, id int64, enabled bool) error {
	const query = `
		UPDATE users
		SET mfa_enabled = $2,
		    mfa_secret = CASE WHEN $2 THEN mfa_secret ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, enabled)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, id int64) error {
	const query = `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM users WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanUserWithTenant(row pgx.Row) (models.User, error) {
	var (
		user          models.User
		tenantID      *int64
		tenantName    *string
		tenantAddress *string
		tenantCreated *time.Time
		tenantUpdated *time.Time
	)

	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.TenantID,
		&user.MfaEnabled,
		&user.MfaSecret,
		&user.IsSocial,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
		&tenantID,
		&tenantName,
		&tenantAddress,
		&tenantCreated,
		&tenantUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	if tenantID != nil {
		user.Tenant = &models.Tenant{
			ID:        *tenantID,
			Name:      *tenantName,
			Address:   *tenantAddress,
			CreatedAt: *tenantCreated,
			UpdatedAt: *tenantUpdated,
		}
	}
	return user, nil
}
