package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "external_id", "username", "email", "first_name", "last_name",
	"role", "department", "provider", "totp_secret", "tenant_id", "company_name", "created_at", "updated_at"}

func strp(s string) *string { return &s }

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseSteps(t *testing.T) {
	steps, ok, err := parseSteps(nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, steps)

	steps, ok, err = parseSteps([]string{" 3 "})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, steps)

	for _, bad := range []string{"0", "-1", "two"} {
		_, _, err := parseSteps([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestIsNoChange(t *testing.T) {
	assert.False(t, isNoChange(nil))
	assert.True(t, isNoChange(migrate.ErrNoChange))
	assert.True(t, isNoChange(os.ErrNotExist))
	assert.False(t, isNoChange(errors.New("boom")))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, BuildVersion+"\n", out)
}

func TestMigrateDownRequiresSteps(t *testing.T) {
	_, err := execute(t, "migrate", "down")
	require.Error(t, err)
}

func TestMigrateWithoutDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing database URL")
}

func TestTOTPGeneratePrintsProvisioningURI(t *testing.T) {
	out, err := execute(t, "totp", "generate", "--account", "vendor@acme.test")
	require.NoError(t, err)
	assert.Contains(t, out, "secret: ")
	assert.Contains(t, out, "otpauth://totp/Zelosify:vendor@acme.test")
}

func TestTOTPGenerateRequiresAccount(t *testing.T) {
	_, err := execute(t, "totp", "generate")
	require.Error(t, err)
}

func TestSeedOpenings(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO tenants").
		WithArgs("t1", "Acme").
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))
	mock.ExpectQuery("WHERE u.tenant_id = \\$1 AND u.role = \\$2").
		WithArgs("t1", "HIRING_MANAGER").
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(
			"hm1", strp("kc-hm"), "manager", "hm@acme.test", "Hana", "Manager",
			"HIRING_MANAGER", nil, "KEYCLOAK", nil,
			strp("t1"), strp("Acme"), now, now))
	for range sampleOpenings {
		mock.ExpectExec("INSERT INTO openings").
			WithArgs(pgxmock.AnyArg(), "t1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "hm1").
			WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))
	}

	var out bytes.Buffer
	n, err := seedOpenings(context.Background(), mock, "t1", "Acme", now, &out)
	require.NoError(t, err)
	assert.Equal(t, len(sampleOpenings), n)
	assert.Contains(t, out.String(), "hm1")
	require.NoError(t, mock.ExpectationsWereMet())

	// the package-level samples stay untouched
	assert.Empty(t, sampleOpenings[0].TenantID)
}

func TestSeedOpeningsWithoutHiringManager(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO tenants").
		WithArgs("t1", "Acme").
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))
	mock.ExpectQuery("WHERE u.tenant_id = \\$1 AND u.role = \\$2").
		WithArgs("t1", "HIRING_MANAGER").
		WillReturnError(pgx.ErrNoRows)

	n, err := seedOpenings(context.Background(), mock, "t1", "Acme", time.Now(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hiring manager found")
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
