// Package directory provides read access to the platform's user graph:
// accounts, follow relations and article favorites. All of these tables are
// owned by collaborator services; this package never writes them.
package directory

import (
	"context"

	"github.com/authorshaven/notify/internal/domain"
)

// Repository defines the interface for user graph data access.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)

	// FollowerIDs returns the IDs of users following the given user.
	FollowerIDs(ctx context.Context, userID string) ([]string, error)

	// FavoriterIDs returns the IDs of users who favorited the given article.
	FavoriterIDs(ctx context.Context, articleID string) ([]string, error)
}
