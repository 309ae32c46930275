package directory

import (
	"context"
	"fmt"

	"github.com/authorshaven/notify/internal/domain"
)

// Service provides user graph lookups to the notification engine.
type Service struct {
	repo Repository
}

// NewService creates a new directory service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetUserByID resolves a single user.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// GetUsersByIDs resolves a batch of users. Unknown IDs are silently dropped;
// callers treat the result as the set of still-existing accounts.
func (s *Service) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

// FollowerIDs returns the IDs of users following the given user.
func (s *Service) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return s.repo.FollowerIDs(ctx, userID)
}

// FavoriterIDs returns the IDs of users who favorited the given article.
func (s *Service) FavoriterIDs(ctx context.Context, articleID string) ([]string, error) {
	return s.repo.FavoriterIDs(ctx, articleID)
}
