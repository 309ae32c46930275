package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/authorshaven/notify/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	notifications      []*domain.Notification
	subscriptions      map[string]*domain.Subscription
	mailItems          []*MailQueueItem
	appOptOut          map[string]bool
	mailOptOut         map[string]bool
	failCreateFor      map[string]bool
	pending            []*MailQueueItem
	sentIDs            []string
	failedIDs          []string
	retriedIDs         []string
	retryTimes         map[string]time.Time
	createSubCalls     []string
	updatedSub         *domain.Subscription
	getSubscriptionErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		subscriptions: make(map[string]*domain.Subscription),
		appOptOut:     make(map[string]bool),
		mailOptOut:    make(map[string]bool),
		failCreateFor: make(map[string]bool),
		retryTimes:    make(map[string]time.Time),
	}
}

func (m *mockRepository) CreateNotification(_ context.Context, notification *domain.Notification) error {
	if notification.UserID != nil && m.failCreateFor[*notification.UserID] {
		return errors.New("insert failed")
	}
	notification.ID = uuid.NewString()
	notification.CreatedAt = time.Now()
	m.notifications = append(m.notifications, notification)
	return nil
}

func (m *mockRepository) GetNotificationByID(_ context.Context, id string) (*domain.Notification, error) {
	for _, n := range m.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (m *mockRepository) ListNotifications(_ context.Context, userID string, read *bool, limit, offset int) ([]domain.Notification, error) {
	var result []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == nil || *n.UserID != userID {
			continue
		}
		if read != nil && n.Read != *read {
			continue
		}
		result = append(result, *n)
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRepository) CountNotifications(_ context.Context, userID string, read *bool) (int, error) {
	count := 0
	for _, n := range m.notifications {
		if n.UserID == nil || *n.UserID != userID {
			continue
		}
		if read != nil && n.Read != *read {
			continue
		}
		count++
	}
	return count, nil
}

func (m *mockRepository) MarkNotificationRead(_ context.Context, id string) (*domain.Notification, error) {
	for _, n := range m.notifications {
		if n.ID == id {
			n.Read = true
			return n, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (m *mockRepository) CreateSubscription(_ context.Context, userID string) error {
	m.createSubCalls = append(m.createSubCalls, userID)
	if _, exists := m.subscriptions[userID]; exists {
		return nil
	}
	m.subscriptions[userID] = &domain.Subscription{UserID: userID, Email: true, App: true}
	return nil
}

func (m *mockRepository) GetSubscription(_ context.Context, userID string) (*domain.Subscription, error) {
	if m.getSubscriptionErr != nil {
		return nil, m.getSubscriptionErr
	}
	sub, ok := m.subscriptions[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (m *mockRepository) UpdateSubscription(_ context.Context, sub *domain.Subscription) error {
	if _, ok := m.subscriptions[sub.UserID]; !ok {
		return ErrSubscriptionNotFound
	}
	copied := *sub
	m.subscriptions[sub.UserID] = &copied
	m.updatedSub = &copied
	return nil
}

func (m *mockRepository) OptedOutUserIDs(_ context.Context, channel domain.Channel) (map[string]bool, error) {
	if channel == domain.ChannelApp {
		return m.appOptOut, nil
	}
	return m.mailOptOut, nil
}

func (m *mockRepository) EnqueueMail(_ context.Context, item *MailQueueItem) error {
	item.ID = uuid.NewString()
	item.Status = QueueStatusPending
	m.mailItems = append(m.mailItems, item)
	return nil
}

func (m *mockRepository) FetchPendingMail(_ context.Context, limit int) ([]*MailQueueItem, error) {
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *mockRepository) MarkMailSent(_ context.Context, id string) error {
	m.sentIDs = append(m.sentIDs, id)
	return nil
}

func (m *mockRepository) MarkMailFailed(_ context.Context, id string, _ error) error {
	m.failedIDs = append(m.failedIDs, id)
	return nil
}

func (m *mockRepository) MarkMailForRetry(_ context.Context, id string, _ error, nextAttempt time.Time) error {
	m.retriedIDs = append(m.retriedIDs, id)
	m.retryTimes[id] = nextAttempt
	return nil
}

func (m *mockRepository) MailQueueStats(_ context.Context) (*QueueStats, error) {
	return &QueueStats{}, nil
}

// mockDirectory implements Directory for testing.
type mockDirectory struct {
	followers  map[string][]string
	favoriters map[string][]string
	users      map[string]domain.User
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		followers:  make(map[string][]string),
		favoriters: make(map[string][]string),
		users:      make(map[string]domain.User),
	}
}

func (m *mockDirectory) addUser(id, username, email string) {
	m.users[id] = domain.User{ID: id, Username: username, Email: email}
}

func (m *mockDirectory) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	return m.followers[userID], nil
}

func (m *mockDirectory) FavoriterIDs(_ context.Context, articleID string) ([]string, error) {
	return m.favoriters[articleID], nil
}

func (m *mockDirectory) GetUsersByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	result := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func newTestNotifier(t *testing.T, repo *mockRepository, dir *mockDirectory) *Notifier {
	t.Helper()
	formatter, err := NewFormatter("https://authorshaven.example.com")
	require.NoError(t, err)
	return NewNotifier(repo, NewResolver(dir, repo), formatter, 3)
}

func TestNotifier_UserCreated_BootstrapsSubscription(t *testing.T) {
	repo := newMockRepository()
	notifier := newTestNotifier(t, repo, newMockDirectory())

	userID := uuid.NewString()
	err := notifier.HandleEvent(context.Background(), domain.UserCreated{
		UserID:   userID,
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	require.Contains(t, repo.subscriptions, userID)
	assert.True(t, repo.subscriptions[userID].Email)
	assert.True(t, repo.subscriptions[userID].App)

	// No fan-out on signup
	assert.Empty(t, repo.notifications)
	assert.Empty(t, repo.mailItems)
}

func TestNotifier_UserCreated_Idempotent(t *testing.T) {
	repo := newMockRepository()
	notifier := newTestNotifier(t, repo, newMockDirectory())

	userID := uuid.NewString()
	event := domain.UserCreated{UserID: userID, Username: "alice", Email: "alice@example.com"}

	require.NoError(t, notifier.HandleEvent(context.Background(), event))
	require.NoError(t, notifier.HandleEvent(context.Background(), event))

	assert.Len(t, repo.createSubCalls, 2)
	assert.Len(t, repo.subscriptions, 1)
}

func TestNotifier_ArticleCreated_FansOutToFollowers(t *testing.T) {
	repo := newMockRepository()
	dir := newMockDirectory()

	authorID := uuid.NewString()
	followerIDs := make([]string, 5)
	for i := range followerIDs {
		id := uuid.NewString()
		followerIDs[i] = id
		dir.addUser(id, fmt.Sprintf("reader%d", i), fmt.Sprintf("reader%d@example.com", i))
	}
	dir.followers[authorID] = followerIDs

	notifier := newTestNotifier(t, repo, dir)

	err := notifier.HandleEvent(context.Background(), domain.ArticleCreated{
		ArticleID:      uuid.NewString(),
		Title:          "Hello World",
		Slug:           "hello-world",
		AuthorID:       authorID,
		AuthorUsername: "alice",
	})
	require.NoError(t, err)

	// One in-app record per follower
	require.Len(t, repo.notifications, 5)
	for _, n := range repo.notifications {
		assert.Equal(t, "alice created a new article 'Hello World'.", n.Message)
		assert.Equal(t, "https://authorshaven.example.com/api/articles/hello-world/", n.URL)
		assert.False(t, n.Read)
	}

	// One batched mail item for the whole event
	require.Len(t, repo.mailItems, 1)
	item := repo.mailItems[0]
	assert.Equal(t, domain.EventKindArticleCreated, item.EventKind)
	assert.Equal(t, "ACTIVITY UPDATE", item.Subject)
	assert.Len(t, item.Recipients, 5)
	assert.Contains(t, item.Body, "NEW ARTICLE")
	assert.Contains(t, item.Body, "alice created a new article")
}

func TestNotifier_ArticleCreated_NoFollowers_NoWork(t *testing.T) {
	repo := newMockRepository()
	notifier := newTestNotifier(t, repo, newMockDirectory())

	err := notifier.HandleEvent(context.Background(), domain.ArticleCreated{
		ArticleID:      uuid.NewString(),
		Title:          "Unread",
		Slug:           "unread",
		AuthorID:       uuid.NewString(),
		AuthorUsername: "alice",
	})
	require.NoError(t, err)

	assert.Empty(t, repo.notifications)
	assert.Empty(t, repo.mailItems)
}

func TestNotifier_CommentCreated_NotifiesAuthorAndFavoriters(t *testing.T) {
	repo := newMockRepository()
	dir := newMockDirectory()

	articleID := uuid.NewString()
	authorID := uuid.NewString()
	favoriterID := uuid.NewString()
	commenterID := uuid.NewString()

	dir.addUser(authorID, "alice", "alice@example.com")
	dir.addUser(favoriterID, "bob", "bob@example.com")
	dir.addUser(commenterID, "carol", "carol@example.com")
	dir.favoriters[articleID] = []string{favoriterID}

	notifier := newTestNotifier(t, repo, dir)

	err := notifier.HandleEvent(context.Background(), domain.CommentCreated{
		CommentID:         uuid.NewString(),
		ArticleID:         articleID,
		ArticleTitle:      "Hello World",
		ArticleSlug:       "hello-world",
		ArticleAuthorID:   authorID,
		CommenterID:       commenterID,
		CommenterUsername: "carol",
	})
	require.NoError(t, err)

	require.Len(t, repo.notifications, 2)
	notified := make([]string, 0, 2)
	for _, n := range repo.notifications {
		require.NotNil(t, n.UserID)
		notified = append(notified, *n.UserID)
		assert.Equal(t, "carol responded to 'Hello World'.", n.Message)
	}
	assert.ElementsMatch(t, []string{authorID, favoriterID}, notified)

	require.Len(t, repo.mailItems, 1)
	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, repo.mailItems[0].Recipients)
	assert.Contains(t, repo.mailItems[0].Body, "NEW COMMENT")
}

func TestNotifier_CommentCreated_AuthorCommentsOwnArticle(t *testing.T) {
	repo := newMockRepository()
	dir := newMockDirectory()

	articleID := uuid.NewString()
	authorID := uuid.NewString()
	dir.addUser(authorID, "alice", "alice@example.com")

	notifier := newTestNotifier(t, repo, dir)

	err := notifier.HandleEvent(context.Background(), domain.CommentCreated{
		CommentID:         uuid.NewString(),
		ArticleID:         articleID,
		ArticleTitle:      "Hello World",
		ArticleSlug:       "hello-world",
		ArticleAuthorID:   authorID,
		CommenterID:       authorID,
		CommenterUsername: "alice",
	})
	require.NoError(t, err)

	assert.Empty(t, repo.notifications)
	assert.Empty(t, repo.mailItems)
}

func TestNotifier_FollowCreated_NotifiesFollowedUser(t *testing.T) {
	repo := newMockRepository()
	dir := newMockDirectory()

	followerID := uuid.NewString()
	followingID := uuid.NewString()
	dir.addUser(followingID, "alice", "alice@example.com")

	notifier := newTestNotifier(t, repo, dir)

	err := notifier.HandleEvent(context.Background(), domain.FollowCreated{
		FollowerID:       followerID,
		FollowerUsername: "bob",
		FollowingID:      followingID,
	})
	require.NoError(t, err)

	require.Len(t, repo.notifications, 1)
	assert.Equal(t, "bob started following you.", repo.notifications[0].Message)
	assert.Equal(t, "https://authorshaven.example.com/api/profiles/bob/", repo.notifications[0].URL)

	require.Len(t, repo.mailItems, 1)
	assert.Equal(t, []string{"alice@example.com"}, repo.mailItems[0].Recipients)
	assert.Contains(t, repo.mailItems[0].Body, "NEW FOLLOWER")
}

func TestNotifier_PartialPersistFailure_ContinuesFanOut(t *testing.T) {
	repo := newMockRepository()
	dir := newMockDirectory()

	authorID := uuid.NewString()
	goodID := uuid.NewString()
	badID := uuid.NewString()
	dir.addUser(goodID, "bob", "bob@example.com")
	dir.addUser(badID, "carol", "carol@example.com")
	dir.followers[authorID] = []string{badID, goodID}
	repo.failCreateFor[badID] = true

	notifier := newTestNotifier(t, repo, dir)

	err := notifier.HandleEvent(context.Background(), domain.ArticleCreated{
		ArticleID:      uuid.NewString(),
		Title:          "Hello World",
		Slug:           "hello-world",
		AuthorID:       authorID,
		AuthorUsername: "alice",
	})
	require.NoError(t, err)

	// The failing recipient is skipped, the rest of the batch lands
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, goodID, *repo.notifications[0].UserID)

	// Mail still goes out to everyone
	require.Len(t, repo.mailItems, 1)
	assert.Len(t, repo.mailItems[0].Recipients, 2)
}

func TestNotifier_MailOptOut_SkipsMailOnly(t *testing.T) {
	repo := newMockRepository()
	dir := newMockDirectory()

	authorID := uuid.NewString()
	followerID := uuid.NewString()
	dir.addUser(followerID, "bob", "bob@example.com")
	dir.followers[authorID] = []string{followerID}
	repo.mailOptOut[followerID] = true

	notifier := newTestNotifier(t, repo, dir)

	err := notifier.HandleEvent(context.Background(), domain.ArticleCreated{
		ArticleID:      uuid.NewString(),
		Title:          "Hello World",
		Slug:           "hello-world",
		AuthorID:       authorID,
		AuthorUsername: "alice",
	})
	require.NoError(t, err)

	assert.Len(t, repo.notifications, 1)
	assert.Empty(t, repo.mailItems)
}

func TestNotifier_UnsubscribeLinkInMailBody(t *testing.T) {
	repo := newMockRepository()
	dir := newMockDirectory()

	followerID := uuid.NewString()
	followingID := uuid.NewString()
	dir.addUser(followingID, "alice", "alice@example.com")

	notifier := newTestNotifier(t, repo, dir)

	err := notifier.HandleEvent(context.Background(), domain.FollowCreated{
		FollowerID:       followerID,
		FollowerUsername: "bob",
		FollowingID:      followingID,
	})
	require.NoError(t, err)

	require.Len(t, repo.mailItems, 1)
	assert.True(t, strings.Contains(repo.mailItems[0].Body, "https://authorshaven.example.com/api/notifications/subscriptions"))
}
