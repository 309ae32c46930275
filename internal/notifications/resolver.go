package notifications

import (
	"context"
	"fmt"

	"github.com/authorshaven/notify/internal/domain"
)

// Directory is the subset of the user graph the resolver reads.
type Directory interface {
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	FavoriterIDs(ctx context.Context, articleID string) ([]string, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

// Resolution holds the two recipient lists derived from one event: user IDs
// that get an in-app record, and users (with addresses) that get the batched
// email.
type Resolution struct {
	Notify []string
	Mail   []domain.User
}

// Empty reports whether the event reaches nobody on either channel.
func (r *Resolution) Empty() bool {
	return len(r.Notify) == 0 && len(r.Mail) == 0
}

// Resolver computes the recipient sets for a domain event. Candidates are
// deduplicated by user ID, the actor is excluded, and per-channel opt-outs
// are filtered before anything is emitted. Opt-out filtering keys on user
// identity; addresses are resolved only for the final mail list.
type Resolver struct {
	directory Directory
	repo      Repository
}

// NewResolver creates a new recipient resolver.
func NewResolver(directory Directory, repo Repository) *Resolver {
	return &Resolver{directory: directory, repo: repo}
}

// Resolve computes recipient lists for the given event. A resolution with
// no recipients is not an error; callers short-circuit on Empty.
func (r *Resolver) Resolve(ctx context.Context, event domain.Event) (*Resolution, error) {
	candidates, err := r.candidates(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	candidates = dedupe(candidates)
	candidates = exclude(candidates, event.ActorID())

	if len(candidates) == 0 {
		return &Resolution{Notify: []string{}, Mail: []domain.User{}}, nil
	}

	appOptOut, err := r.repo.OptedOutUserIDs(ctx, domain.ChannelApp)
	if err != nil {
		return nil, fmt.Errorf("fetch app opt-outs: %w", err)
	}

	mailOptOut, err := r.repo.OptedOutUserIDs(ctx, domain.ChannelEmail)
	if err != nil {
		return nil, fmt.Errorf("fetch mail opt-outs: %w", err)
	}

	notify := make([]string, 0, len(candidates))
	mailIDs := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if !appOptOut[id] {
			notify = append(notify, id)
		}
		if !mailOptOut[id] {
			mailIDs = append(mailIDs, id)
		}
	}

	mail, err := r.resolveMailUsers(ctx, mailIDs, event.ActorID())
	if err != nil {
		return nil, err
	}

	return &Resolution{Notify: notify, Mail: mail}, nil
}

// candidates returns the raw recipient set for an event before
// deduplication and filtering.
func (r *Resolver) candidates(ctx context.Context, event domain.Event) ([]string, error) {
	switch e := event.(type) {
	case domain.ArticleCreated:
		return r.directory.FollowerIDs(ctx, e.AuthorID)

	case domain.CommentCreated:
		favoriters, err := r.directory.FavoriterIDs(ctx, e.ArticleID)
		if err != nil {
			return nil, err
		}
		// The article's author is always a candidate; dedupe collapses
		// the case where the author also favorited their own article.
		if e.ArticleAuthorID != e.CommenterID {
			favoriters = append(favoriters, e.ArticleAuthorID)
		}
		return favoriters, nil

	case domain.FollowCreated:
		return []string{e.FollowingID}, nil

	default:
		return nil, fmt.Errorf("event kind %q does not fan out", event.Kind())
	}
}

// resolveMailUsers loads addresses for the mail list. The actor is filtered
// a second time here: a user can appear in several derived relations, so
// self-exclusion is enforced both at set construction and on the final list.
func (r *Resolver) resolveMailUsers(ctx context.Context, ids []string, actorID string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}

	users, err := r.directory.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve mail addresses: %w", err)
	}

	mail := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.ID == actorID || u.Email == "" {
			continue
		}
		mail = append(mail, u)
	}

	return mail, nil
}

// dedupe removes duplicate IDs preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// exclude drops the given ID from the list.
func exclude(ids []string, drop string) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == drop {
			continue
		}
		result = append(result, id)
	}
	return result
}
