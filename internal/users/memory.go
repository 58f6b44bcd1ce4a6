package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zelosify/zelosify/server/internal/models"
)

// MemoryUserRepository keeps users in process. Used with STORE_DRIVER=memory
// for local runs; every read returns a copy.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*models.User), now: time.Now}
}

// Put inserts or replaces u. An empty ID is assigned.
func (r *MemoryUserRepository) Put(u *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := copyUser(u)
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.users[cp.ID] = cp
	return copyUser(cp)
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Tenant != nil {
		t := *u.Tenant
		cp.Tenant = &t
	}
	return &cp
}

func (r *MemoryUserRepository) find(match func(*models.User) bool) *models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return copyUser(u)
		}
	}
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyUser(r.users[id]), nil
}

func (r *MemoryUserRepository) GetByExternalID(_ context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, nil
	}
	return r.find(func(u *models.User) bool { return u.ExternalID == externalID }), nil
}

func (r *MemoryUserRepository) GetByEmailProvider(_ context.Context, email, provider string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return strings.EqualFold(u.Email, email) && u.Provider == provider
	}), nil
}

func (r *MemoryUserRepository) FindByRole(_ context.Context, tenantID, role string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.TenantID() == tenantID && u.Role == role }), nil
}

func (r *MemoryUserRepository) update(id string, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryUserRepository) UpdateTokens(_ context.Context, id, accessToken, refreshToken string) error {
	return r.update(id, func(u *models.User) {
		u.AccessToken = accessToken
		u.RefreshToken = refreshToken
	})
}

func (r *MemoryUserRepository) SetTOTPSecret(_ context.Context, id, secret string) error {
	return r.update(id, func(u *models.User) { u.TOTPSecret = secret })
}
