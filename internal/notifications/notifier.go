package notifications

import (
	"context"
	"fmt"

	"github.com/authorshaven/notify/internal/domain"
	"github.com/authorshaven/notify/internal/pkg/ctxlog"
)

// Notifier turns domain events into notification records and queued mail.
// Persistence failures for one recipient never abort the rest of the fan-out,
// and queueing mail never blocks the caller on delivery.
type Notifier struct {
	repo        Repository
	resolver    *Resolver
	formatter   *Formatter
	maxAttempts int
}

// NewNotifier creates a new notifier.
func NewNotifier(repo Repository, resolver *Resolver, formatter *Formatter, maxAttempts int) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Notifier{
		repo:        repo,
		resolver:    resolver,
		formatter:   formatter,
		maxAttempts: maxAttempts,
	}
}

// HandleEvent processes a single domain event.
func (n *Notifier) HandleEvent(ctx context.Context, event domain.Event) error {
	switch e := event.(type) {
	case domain.UserCreated:
		return n.handleUserCreated(ctx, e)
	case domain.ArticleCreated, domain.CommentCreated, domain.FollowCreated:
		return n.fanOut(ctx, event)
	default:
		return fmt.Errorf("unsupported event kind: %s", event.Kind())
	}
}

// handleUserCreated provisions a default subscription so new users receive
// notifications on both channels until they opt out.
func (n *Notifier) handleUserCreated(ctx context.Context, event domain.UserCreated) error {
	if err := n.repo.CreateSubscription(ctx, event.UserID); err != nil {
		return fmt.Errorf("failed to create subscription for user %s: %w", event.UserID, err)
	}

	ctxlog.FromContext(ctx).Debug("default subscription created", "user_id", event.UserID)
	return nil
}

func (n *Notifier) fanOut(ctx context.Context, event domain.Event) error {
	logger := ctxlog.FromContext(ctx)

	resolution, err := n.resolver.Resolve(ctx, event)
	if err != nil {
		recordFanoutFailure(string(event.Kind()))
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}

	if resolution.Empty() {
		logger.Debug("no recipients for event", "event_kind", event.Kind())
		return nil
	}

	actor, subjectTitle, url, err := n.describe(event)
	if err != nil {
		recordFanoutFailure(string(event.Kind()))
		return err
	}

	message := n.formatter.Plain(event.Kind(), actor, subjectTitle)

	created := 0
	for _, userID := range resolution.Notify {
		uid := userID
		notification := &domain.Notification{
			UserID:  &uid,
			Message: message,
			URL:     url,
		}
		if err := n.repo.CreateNotification(ctx, notification); err != nil {
			recordFanoutFailure(string(event.Kind()))
			logger.Error("failed to persist notification",
				"event_kind", event.Kind(),
				"user_id", userID,
				"error", err,
			)
			continue
		}
		created++
		recordNotificationCreated(string(event.Kind()))
	}

	if err := n.enqueueMail(ctx, event, actor, subjectTitle, url, resolution.Mail); err != nil {
		recordFanoutFailure(string(event.Kind()))
		logger.Error("failed to enqueue mail", "event_kind", event.Kind(), "error", err)
	}

	logger.Info("event fanned out",
		"event_kind", event.Kind(),
		"notified", created,
		"mailed", len(resolution.Mail),
	)
	return nil
}

// describe extracts the actor name, the subject title and the link target
// from an event.
func (n *Notifier) describe(event domain.Event) (actor, subjectTitle, url string, err error) {
	switch e := event.(type) {
	case domain.ArticleCreated:
		return e.AuthorUsername, e.Title, n.formatter.ArticleURL(e.Slug), nil
	case domain.CommentCreated:
		return e.CommenterUsername, e.ArticleTitle, n.formatter.ArticleURL(e.ArticleSlug), nil
	case domain.FollowCreated:
		return e.FollowerUsername, "", n.formatter.ProfileURL(e.FollowerUsername), nil
	default:
		return "", "", "", fmt.Errorf("unsupported event kind: %s", event.Kind())
	}
}

// enqueueMail queues a single batched email covering every opted-in
// recipient of the event.
func (n *Notifier) enqueueMail(ctx context.Context, event domain.Event, actor, subjectTitle, url string, recipients []domain.User) error {
	if len(recipients) == 0 {
		return nil
	}

	body, err := n.formatter.HTML(event.Kind(), actor, subjectTitle, url)
	if err != nil {
		return fmt.Errorf("failed to render mail body: %w", err)
	}

	addresses := make([]string, 0, len(recipients))
	for _, user := range recipients {
		addresses = append(addresses, user.Email)
	}

	item := &MailQueueItem{
		EventKind:   event.Kind(),
		Subject:     MailSubject,
		Body:        body,
		Recipients:  addresses,
		MaxAttempts: n.maxAttempts,
	}
	if err := n.repo.EnqueueMail(ctx, item); err != nil {
		return fmt.Errorf("failed to enqueue mail: %w", err)
	}
	return nil
}
