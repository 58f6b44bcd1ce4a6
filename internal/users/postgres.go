package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zelosify/zelosify/server/internal/database"
	"github.com/zelosify/zelosify/server/internal/models"
)

// PostgresUserRepository implements UserRepository on the relational store.
type PostgresUserRepository struct {
	db database.PgxIface
}

func NewPostgresUserRepository(db database.PgxIface) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userSelect = `
	SELECT u.id, u.external_id, u.username, u.email, u.first_name, u.last_name,
	       u.role, u.department, u.provider, u.totp_secret,
	       t.tenant_id, t.company_name, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN tenants t ON t.tenant_id = u.tenant_id`

func (r *PostgresUserRepository) queryOne(ctx context.Context, where string, args ...any) (*models.User, error) {
	row := r.db.QueryRow(ctx, userSelect+"\n\tWHERE "+where+"\n\tLIMIT 1", args...)
	var (
		u                              models.User
		externalID, department, secret *string
		tenantID, companyName          *string
	)
	err := row.Scan(&u.ID, &externalID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.Role, &department, &u.Provider, &secret,
		&tenantID, &companyName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.ExternalID = deref(externalID)
	u.Department = deref(department)
	u.TOTPSecret = deref(secret)
	if tenantID != nil {
		u.Tenant = &models.Tenant{TenantID: *tenantID, CompanyName: deref(companyName)}
	}
	return &u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.queryOne(ctx, "u.id = $1", id)
}

func (r *PostgresUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.queryOne(ctx, "u.external_id = $1", externalID)
}

func (r *PostgresUserRepository) GetByEmailProvider(ctx context.Context, email, provider string) (*models.User, error) {
	return r.queryOne(ctx, "u.email = $1 AND u.provider = $2", email, provider)
}

func (r *PostgresUserRepository) FindByRole(ctx context.Context, tenantID, role string) (*models.User, error) {
	return r.queryOne(ctx, "u.tenant_id = $1 AND u.role = $2", tenantID, role)
}

func (r *PostgresUserRepository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET access_token = $2, refresh_token = $3, updated_at = $4 WHERE id = $1`,
		id, accessToken, refreshToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) SetTOTPSecret(ctx context.Context, id, secret string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET totp_secret = $2, updated_at = $3 WHERE id = $1`,
		id, secret, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
