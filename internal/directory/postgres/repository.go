// Package postgres provides PostgreSQL implementation of the directory repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/authorshaven/notify/internal/directory"
	"github.com/authorshaven/notify/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements directory.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, username, email, created_at
		FROM users
		WHERE id = $1
	`
	var user domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, directory.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetUsersByIDs retrieves users by their IDs. Unknown IDs are omitted.
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}

	query := `
		SELECT id, username, email, created_at
		FROM users
		WHERE id = ANY($1::uuid[])
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, len(ids))
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, nil
}

// FollowerIDs returns the IDs of users following the given user.
func (r *Repository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT follower_id FROM user_follows WHERE following_id = $1`
	return r.queryIDs(ctx, query, userID)
}

// FavoriterIDs returns the IDs of users who favorited the given article.
func (r *Repository) FavoriterIDs(ctx context.Context, articleID string) ([]string, error) {
	query := `SELECT user_id FROM article_favorites WHERE article_id = $1`
	return r.queryIDs(ctx, query, articleID)
}

func (r *Repository) queryIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
