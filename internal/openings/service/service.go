package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zelosify/zelosify/server/internal/apperr"
	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/internal/openings"
	"github.com/zelosify/zelosify/server/internal/openings/repository"
	"github.com/zelosify/zelosify/server/internal/storage"
	"github.com/zelosify/zelosify/server/pkg/logger"
)

// Directory resolves hiring managers for display.
type Directory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Manager is the public view of an opening's hiring manager.
type Manager struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type OpeningSummary struct {
	*openings.Opening
	HiringManager *Manager `json:"hiringManager"`
}

type ProfileSummary struct {
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	ObjectKey string `json:"objectKey"`
	IsDraft   bool   `json:"isDraft"`
}

type OpeningDetail struct {
	OpeningSummary
	ProfilesSubmitted int              `json:"profilesSubmitted"`
	Profiles          []ProfileSummary `json:"profiles"`
}

// Upload is a presigned slot for one profile file.
type Upload struct {
	Filename  string    `json:"filename"`
	ObjectKey string    `json:"objectKey"`
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProfileRef names an object the caller wants to view.
type ProfileRef struct {
	ObjectKey string `json:"objectKey"`
	Filename  string `json:"filename,omitempty"`
}

type ProfileView struct {
	Filename  string `json:"filename"`
	ObjectKey string `json:"objectKey"`
	ViewURL   string `json:"viewUrl"`
}

// Service implements the vendor opening workflows. Every call is scoped to the
// tenant of the principal it is given.
type Service struct {
	repo       repository.Repository
	directory  Directory
	objects    storage.Presigner
	presignTTL time.Duration
	now        func() time.Time
}

func New(repo repository.Repository, directory Directory, objects storage.Presigner, presignTTL time.Duration) *Service {
	if presignTTL <= 0 {
		presignTTL = storage.DefaultPresignTTL
	}
	return &Service{repo: repo, directory: directory, objects: objects, presignTTL: presignTTL, now: time.Now}
}

func tenantOf(p *models.Principal) (string, error) {
	if p == nil {
		return "", apperr.Unauthorized(apperr.ReasonNoPrincipal, "Authentication required", nil)
	}
	if p.TenantID == "" {
		return "", apperr.Forbidden(apperr.ReasonCrossTenant, "User is not assigned to a tenant")
	}
	return p.TenantID, nil
}

func (s *Service) manager(ctx context.Context, id string) *Manager {
	if s.directory == nil || id == "" {
		return nil
	}
	u, err := s.directory.GetByID(ctx, id)
	if err != nil {
		logger.Warnf("openings: hiring manager %s lookup failed: %v", id, err)
		return nil
	}
	if u == nil {
		return nil
	}
	return &Manager{ID: u.ID, Name: strings.TrimSpace(u.FirstName + " " + u.LastName), Email: u.Email}
}

func (s *Service) List(ctx context.Context, p *models.Principal) ([]OpeningSummary, error) {
	tenant, err := tenantOf(p)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListOpenings(ctx, tenant)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch openings", err)
	}
	managers := make(map[string]*Manager)
	out := make([]OpeningSummary, 0, len(list))
	for _, o := range list {
		m, ok := managers[o.HiringManagerID]
		if !ok {
			m = s.manager(ctx, o.HiringManagerID)
			managers[o.HiringManagerID] = m
		}
		out = append(out, OpeningSummary{Opening: o, HiringManager: m})
	}
	return out, nil
}

// opening loads an opening of the caller's tenant; other tenants' ids are
// indistinguishable from missing ones.
func (s *Service) opening(ctx context.Context, p *models.Principal, id string) (*openings.Opening, error) {
	tenant, err := tenantOf(p)
	if err != nil {
		return nil, err
	}
	o, err := s.repo.GetOpening(ctx, tenant, id)
	if errors.Is(err, openings.ErrNotFound) {
		return nil, apperr.NotFound("Opening not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to fetch opening details", err)
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, p *models.Principal, id string) (*OpeningDetail, error) {
	o, err := s.opening(ctx, p, id)
	if err != nil {
		return nil, err
	}
	profiles, err := s.repo.ListProfiles(ctx, o.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch opening details", err)
	}
	d := &OpeningDetail{
		OpeningSummary:    OpeningSummary{Opening: o, HiringManager: s.manager(ctx, o.HiringManagerID)},
		ProfilesSubmitted: len(profiles),
		Profiles:          make([]ProfileSummary, 0, len(profiles)),
	}
	for _, hp := range profiles {
		d.Profiles = append(d.Profiles, ProfileSummary{
			ID: hp.ID, FileName: openings.FileName(hp.ObjectKey), ObjectKey: hp.ObjectKey, IsDraft: hp.IsDraft,
		})
	}
	return d, nil
}

// PresignUpload reserves an object key under the opening and returns a PUT URL for it.
func (s *Service) PresignUpload(ctx context.Context, p *models.Principal, openingID, filename string) (*Upload, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return nil, apperr.Input(apperr.ReasonMissingInput, "filename is required")
	}
	o, err := s.opening(ctx, p, openingID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := openings.ObjectKey(o.TenantID, o.ID, now, filename)
	u, err := s.objects.PresignPut(ctx, key, s.presignTTL)
	if err != nil {
		return nil, apperr.Internal("Failed to generate presigned URL", err)
	}
	return &Upload{Filename: filename, ObjectKey: key, UploadURL: u, ExpiresAt: now.Add(s.presignTTL)}, nil
}

// ownedKeys rejects empty batches and any key outside the opening's prefix.
func ownedKeys(o *openings.Opening, keys []string) error {
	if len(keys) == 0 {
		return apperr.Input(apperr.ReasonMissingInput, "profiles are required")
	}
	prefix := openings.KeyPrefix(o.TenantID, o.ID)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) || len(k) == len(prefix) {
			return apperr.Forbidden(apperr.ReasonCrossTenant, "Profile does not belong to this opening")
		}
	}
	return nil
}

func (s *Service) SubmitProfiles(ctx context.Context, p *models.Principal, openingID string, keys []string) error {
	o, err := s.opening(ctx, p, openingID)
	if err != nil {
		return err
	}
	if err := ownedKeys(o, keys); err != nil {
		return err
	}
	if err := s.repo.SubmitProfiles(ctx, o.ID, p.UserID, keys); err != nil {
		return apperr.Internal("Failed to save profiles", err)
	}
	return nil
}

func (s *Service) DraftProfiles(ctx context.Context, p *models.Principal, openingID string, keys []string) error {
	o, err := s.opening(ctx, p, openingID)
	if err != nil {
		return err
	}
	if err := ownedKeys(o, keys); err != nil {
		return err
	}
	err = s.repo.DraftProfiles(ctx, o.ID, p.UserID, keys)
	if errors.Is(err, openings.ErrDuplicateKey) {
		return apperr.Wrap(apperr.KindInput, apperr.ReasonDuplicateProfile, "Profile already uploaded", err)
	}
	if err != nil {
		return apperr.Internal("Failed to save profiles", err)
	}
	return nil
}

func (s *Service) ViewProfiles(ctx context.Context, p *models.Principal, openingID string, refs []ProfileRef) ([]ProfileView, error) {
	o, err := s.opening(ctx, p, openingID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(refs))
	for _, r := range refs {
		keys = append(keys, r.ObjectKey)
	}
	if err := ownedKeys(o, keys); err != nil {
		return nil, err
	}
	out := make([]ProfileView, 0, len(refs))
	for _, r := range refs {
		u, err := s.objects.PresignGet(ctx, r.ObjectKey, s.presignTTL)
		if err != nil {
			return nil, apperr.Internal("Failed to generate view URLs", err)
		}
		name := r.Filename
		if name == "" {
			name = openings.FileName(r.ObjectKey)
		}
		out = append(out, ProfileView{Filename: name, ObjectKey: r.ObjectKey, ViewURL: u})
	}
	return out, nil
}

// DeleteProfile soft-deletes a profile of the caller's tenant.
func (s *Service) DeleteProfile(ctx context.Context, p *models.Principal, openingID, profileID string) error {
	tenant, err := tenantOf(p)
	if err != nil {
		return err
	}
	hp, owner, err := s.repo.GetProfile(ctx, profileID)
	if errors.Is(err, openings.ErrProfileNotFound) {
		return apperr.NotFound("Profile not found")
	}
	if err != nil {
		return apperr.Internal("Failed to delete profile", err)
	}
	if owner != tenant {
		return apperr.Forbidden(apperr.ReasonCrossTenant, "Cannot delete profile from another tenant")
	}
	if openingID != "" && hp.OpeningID != openingID {
		return apperr.NotFound("Profile not found")
	}
	if err := s.repo.SoftDeleteProfile(ctx, profileID); err != nil {
		return apperr.Internal("Failed to delete profile", err)
	}
	return nil
}
