package users

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "external_id", "username", "email", "first_name", "last_name",
	"role", "department", "provider", "totp_secret", "tenant_id", "company_name", "created_at", "updated_at"}

func strp(s string) *string { return &s }

func TestPostgresGetByExternalID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresUserRepository(mock)
	now := time.Now().UTC()
	mock.ExpectQuery("WHERE u.external_id = \\$1").
		WithArgs("kc-1").
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(
			"u1", strp("kc-1"), "vendor1", "v@acme.test", "Val", "Vendor",
			"IT_VENDOR", nil, "KEYCLOAK", strp("JBSWY3DPEHPK3PXP"),
			strp("t1"), strp("Acme"), now, now))

	u, err := repo.GetByExternalID(context.Background(), "kc-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "kc-1", u.ExternalID)
	assert.Equal(t, "", u.Department)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", u.TOTPSecret)
	require.NotNil(t, u.Tenant)
	assert.Equal(t, "t1", u.TenantID())
	assert.Equal(t, "Acme", u.Tenant.CompanyName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByEmailProviderNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresUserRepository(mock)
	mock.ExpectQuery("WHERE u.email = \\$1 AND u.provider = \\$2").
		WithArgs("x@acme.test", "KEYCLOAK").
		WillReturnError(pgx.ErrNoRows)

	u, err := repo.GetByEmailProvider(context.Background(), "x@acme.test", "KEYCLOAK")
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateTokens(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresUserRepository(mock)
	mock.ExpectExec("UPDATE users SET access_token").
		WithArgs("u1", "at", "rt", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.UpdateTokens(context.Background(), "u1", "at", "rt"))

	mock.ExpectExec("UPDATE users SET access_token").
		WithArgs("missing", "at", "rt", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.UpdateTokens(context.Background(), "missing", "at", "rt"), ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
