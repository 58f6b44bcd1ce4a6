package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zelosify/zelosify/server/internal/models"
)

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepository()
	u := r.Put(&models.User{
		ExternalID: "kc-1", Email: "Vendor@Acme.test", Provider: models.ProviderKeycloak, Role: models.RoleITVendor,
		Tenant: &models.Tenant{TenantID: "t1", CompanyName: "Acme"},
	})
	require.NotEmpty(t, u.ID)

	got, err := r.GetByExternalID(ctx, "kc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	got, err = r.GetByEmailProvider(ctx, "vendor@acme.test", models.ProviderKeycloak)
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = r.GetByEmailProvider(ctx, "vendor@acme.test", models.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.FindByRole(ctx, "t1", models.RoleITVendor)
	require.NoError(t, err)
	require.NotNil(t, got)

	// reads are copies
	got.Tenant.TenantID = "mutated"
	again, _ := r.GetByID(ctx, u.ID)
	assert.Equal(t, "t1", again.TenantID())

	require.NoError(t, r.UpdateTokens(ctx, u.ID, "a", "r"))
	again, _ = r.GetByID(ctx, u.ID)
	assert.Equal(t, "r", again.RefreshToken)

	err = r.SetTOTPSecret(ctx, "missing", "x")
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestMemoryRepositoryBacksService(t *testing.T) {
	r := NewMemoryUserRepository()
	r.Put(&models.User{ID: "u1", Email: "a@b.c", Provider: models.ProviderKeycloak})
	svc := NewService(r)

	p, err := svc.Resolve(context.Background(), &models.Claims{Subject: "kc-9", Email: "a@b.c", RealmRoles: []string{"IT_VENDOR"}})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "kc-9", p.ExternalID)
	assert.True(t, p.HasRealmRole("IT_VENDOR"))
}
