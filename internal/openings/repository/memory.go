package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zelosify/zelosify/server/internal/openings"
)

// Repository is the persistence contract for openings and their profiles.
// Every opening read is scoped by tenant id; profile batches are applied
// atomically.
type Repository interface {
	CreateOpening(ctx context.Context, o *openings.Opening) error
	ListOpenings(ctx context.Context, tenantID string) ([]*openings.Opening, error)
	GetOpening(ctx context.Context, tenantID, id string) (*openings.Opening, error)
	ListProfiles(ctx context.Context, openingID string) ([]*openings.HiringProfile, error)
	// SubmitProfiles upserts by object key and marks every profile submitted.
	SubmitProfiles(ctx context.Context, openingID, uploadedBy string, keys []string) error
	// DraftProfiles inserts new draft profiles; an existing key fails the batch.
	DraftProfiles(ctx context.Context, openingID, uploadedBy string, keys []string) error
	// GetProfile returns the profile and the tenant owning its opening.
	GetProfile(ctx context.Context, id string) (*openings.HiringProfile, string, error)
	SoftDeleteProfile(ctx context.Context, id string) error
}

// MemoryRepo is an in-memory repository used for local runs and unit tests.
type MemoryRepo struct {
	mu       sync.RWMutex
	openings map[string]*openings.Opening
	profiles map[string]*openings.HiringProfile
	byKey    map[string]string // object key -> profile id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		openings: make(map[string]*openings.Opening),
		profiles: make(map[string]*openings.HiringProfile),
		byKey:    make(map[string]string),
	}
}

func (m *MemoryRepo) CreateOpening(_ context.Context, o *openings.Opening) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.PostedDate.IsZero() {
		o.PostedDate = time.Now().UTC()
	}
	cp := *o
	m.openings[o.ID] = &cp
	return nil
}

func (m *MemoryRepo) ListOpenings(_ context.Context, tenantID string) ([]*openings.Opening, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*openings.Opening, 0)
	for _, o := range m.openings {
		if o.TenantID == tenantID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedDate.After(out[j].PostedDate) })
	return out, nil
}

func (m *MemoryRepo) GetOpening(_ context.Context, tenantID, id string) (*openings.Opening, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.openings[id]
	if !ok || o.TenantID != tenantID {
		return nil, openings.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryRepo) ListProfiles(_ context.Context, openingID string) ([]*openings.HiringProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*openings.HiringProfile, 0)
	for _, p := range m.profiles {
		if p.OpeningID == openingID && !p.IsDeleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ObjectKey < out[j].ObjectKey
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepo) SubmitProfiles(_ context.Context, openingID, uploadedBy string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, k := range keys {
		if id, ok := m.byKey[k]; ok {
			p := m.profiles[id]
			p.IsDraft = false
			p.UpdatedAt = now
			continue
		}
		m.insert(openingID, uploadedBy, k, false, now)
	}
	return nil
}

func (m *MemoryRepo) DraftProfiles(_ context.Context, openingID, uploadedBy string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := m.byKey[k]; ok || seen[k] {
			return openings.ErrDuplicateKey
		}
		seen[k] = true
	}
	now := time.Now().UTC()
	for _, k := range keys {
		m.insert(openingID, uploadedBy, k, true, now)
	}
	return nil
}

// insert must be called with mu held.
func (m *MemoryRepo) insert(openingID, uploadedBy, key string, draft bool, now time.Time) {
	p := &openings.HiringProfile{
		ID:         uuid.NewString(),
		OpeningID:  openingID,
		ObjectKey:  key,
		UploadedBy: uploadedBy,
		IsDraft:    draft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.profiles[p.ID] = p
	m.byKey[key] = p.ID
}

func (m *MemoryRepo) GetProfile(_ context.Context, id string) (*openings.HiringProfile, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, "", openings.ErrProfileNotFound
	}
	tenant := ""
	if o, ok := m.openings[p.OpeningID]; ok {
		tenant = o.TenantID
	}
	cp := *p
	return &cp, tenant, nil
}

func (m *MemoryRepo) SoftDeleteProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return openings.ErrProfileNotFound
	}
	p.IsDeleted = true
	p.UpdatedAt = time.Now().UTC()
	return nil
}
