package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zelosify/zelosify/server/internal/openings"
)

// two tenants with an overlapping opening title
func seedTwoTenants(t *testing.T, r Repository) (a, b *openings.Opening) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	a = &openings.Opening{TenantID: "t1", Title: "Go Engineer", Status: openings.StatusOpen, PostedDate: now}
	b = &openings.Opening{TenantID: "t2", Title: "Go Engineer", Status: openings.StatusOpen, PostedDate: now}
	require.NoError(t, r.CreateOpening(ctx, a))
	require.NoError(t, r.CreateOpening(ctx, b))
	older := &openings.Opening{TenantID: "t1", Title: "QA", Status: openings.StatusOnHold, PostedDate: now.Add(-time.Hour)}
	require.NoError(t, r.CreateOpening(ctx, older))
	return a, b
}

func TestMemoryRepo_TenantIsolation(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	a, b := seedTwoTenants(t, r)

	list, err := r.ListOpenings(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, a.ID, list[0].ID, "newest first")
	for _, o := range list {
		require.Equal(t, "t1", o.TenantID)
	}

	_, err = r.GetOpening(ctx, "t1", b.ID)
	require.ErrorIs(t, err, openings.ErrNotFound)

	got, err := r.GetOpening(ctx, "t2", b.ID)
	require.NoError(t, err)
	require.Equal(t, "t2", got.TenantID)
}

func TestMemoryRepo_ProfileLifecycle(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	a, _ := seedTwoTenants(t, r)
	k1 := openings.KeyPrefix("t1", a.ID) + "1_a.pdf"
	k2 := openings.KeyPrefix("t1", a.ID) + "2_b.pdf"

	require.NoError(t, r.DraftProfiles(ctx, a.ID, "u1", []string{k1}))
	require.ErrorIs(t, r.DraftProfiles(ctx, a.ID, "u1", []string{k2, k1}), openings.ErrDuplicateKey)

	profiles, err := r.ListProfiles(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 1, "failed batch must not leave partial rows")
	require.True(t, profiles[0].IsDraft)

	// submit promotes the draft and inserts the new key
	require.NoError(t, r.SubmitProfiles(ctx, a.ID, "u1", []string{k1, k2}))
	profiles, err = r.ListProfiles(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	for _, p := range profiles {
		require.False(t, p.IsDraft)
	}

	p, tenant, err := r.GetProfile(ctx, profiles[0].ID)
	require.NoError(t, err)
	require.Equal(t, "t1", tenant)

	require.NoError(t, r.SoftDeleteProfile(ctx, p.ID))
	profiles, err = r.ListProfiles(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	require.ErrorIs(t, r.SoftDeleteProfile(ctx, "missing"), openings.ErrProfileNotFound)
	_, _, err = r.GetProfile(ctx, "missing")
	require.ErrorIs(t, err, openings.ErrProfileNotFound)
}
