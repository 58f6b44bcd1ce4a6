package users

import (
	"context"

	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/pkg/logger"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// FindForClaims looks the user up by IdP subject, falling back to
// (email, KEYCLOAK) for records created before a subject was bound.
// Returns (nil, nil) when neither matches.
func (s *Service) FindForClaims(ctx context.Context, c *models.Claims) (*models.User, error) {
	if c == nil || c.Subject == "" {
		return nil, nil
	}
	u, err := s.repo.GetByExternalID(ctx, c.Subject)
	if err != nil || u != nil {
		return u, err
	}
	if c.Email == "" {
		return nil, nil
	}
	u, err = s.repo.GetByEmailProvider(ctx, c.Email, models.ProviderKeycloak)
	if err != nil {
		return nil, err
	}
	if u != nil {
		logger.WithFields(map[string]interface{}{"sub": c.Subject, "user": u.ID}).Debug("user resolved by email fallback")
	}
	return u, nil
}

// Resolve builds the request principal for verified claims.
func (s *Service) Resolve(ctx context.Context, c *models.Claims) (*models.Principal, error) {
	u, err := s.FindForClaims(ctx, c)
	if err != nil || u == nil {
		return nil, err
	}
	return models.NewPrincipal(u, c), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) FindByRole(ctx context.Context, tenantID, role string) (*models.User, error) {
	return s.repo.FindByRole(ctx, tenantID, role)
}

func (s *Service) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error {
	return s.repo.UpdateTokens(ctx, id, accessToken, refreshToken)
}

func (s *Service) SetTOTPSecret(ctx context.Context, id, secret string) error {
	return s.repo.SetTOTPSecret(ctx, id, secret)
}
