package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSender implements Sender for testing.
type mockSender struct {
	calls      int
	recipients [][]string
	err        error
}

func (m *mockSender) SendBatch(_ context.Context, recipients []string, _, _ string) error {
	m.calls++
	m.recipients = append(m.recipients, recipients)
	return m.err
}

func newTestWorker(repo *mockRepository, sender *mockSender) *Worker {
	config := DefaultWorkerConfig()
	config.MaxAttempts = 3
	return NewWorker(config, repo, NewDispatcher(sender, 0))
}

func pendingItem(attempts int) *MailQueueItem {
	return &MailQueueItem{
		ID:          uuid.NewString(),
		EventKind:   "article.created",
		Subject:     MailSubject,
		Body:        "<html></html>",
		Recipients:  []string{"a@example.com", "b@example.com"},
		Status:      QueueStatusPending,
		Attempts:    attempts,
		MaxAttempts: 3,
	}
}

func TestWorker_ProcessItem_Success(t *testing.T) {
	repo := newMockRepository()
	sender := &mockSender{}
	worker := newTestWorker(repo, sender)

	item := pendingItem(0)
	worker.processItem(context.Background(), item)

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, []string{item.ID}, repo.sentIDs)
	assert.Empty(t, repo.failedIDs)
}

func TestWorker_ProcessItem_OneSendPerEvent(t *testing.T) {
	repo := newMockRepository()
	sender := &mockSender{}
	worker := newTestWorker(repo, sender)

	worker.processItem(context.Background(), pendingItem(0))

	// All recipients ride in a single transport call
	require.Equal(t, 1, sender.calls)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sender.recipients[0])
}

func TestWorker_ProcessItem_RetryableError(t *testing.T) {
	repo := newMockRepository()
	sender := &mockSender{err: NewRetryableError(errors.New("connection refused"))}
	worker := newTestWorker(repo, sender)

	item := pendingItem(0)
	worker.processItem(context.Background(), item)

	assert.Equal(t, []string{item.ID}, repo.retriedIDs)
	assert.Empty(t, repo.failedIDs)
	assert.True(t, repo.retryTimes[item.ID].After(time.Now()))
}

func TestWorker_ProcessItem_NonRetryableError(t *testing.T) {
	repo := newMockRepository()
	sender := &mockSender{err: NewNonRetryableError(errors.New("invalid sender"))}
	worker := newTestWorker(repo, sender)

	item := pendingItem(0)
	worker.processItem(context.Background(), item)

	assert.Equal(t, []string{item.ID}, repo.failedIDs)
	assert.Empty(t, repo.retriedIDs)
}

func TestWorker_ProcessItem_MaxAttemptsExceeded(t *testing.T) {
	repo := newMockRepository()
	sender := &mockSender{err: NewRetryableError(errors.New("timeout"))}
	worker := newTestWorker(repo, sender)

	item := pendingItem(2) // third attempt is the last
	worker.processItem(context.Background(), item)

	assert.Equal(t, []string{item.ID}, repo.failedIDs)
	assert.Empty(t, repo.retriedIDs)
}

func TestWorker_ProcessItem_EmptyRecipients(t *testing.T) {
	repo := newMockRepository()
	sender := &mockSender{}
	worker := newTestWorker(repo, sender)

	item := pendingItem(0)
	item.Recipients = nil
	worker.processItem(context.Background(), item)

	assert.Equal(t, 0, sender.calls)
	assert.Equal(t, []string{item.ID}, repo.sentIDs)
}

func TestWorker_ProcessBatch(t *testing.T) {
	repo := newMockRepository()
	repo.pending = []*MailQueueItem{pendingItem(0), pendingItem(0)}
	sender := &mockSender{}
	worker := newTestWorker(repo, sender)

	worker.processBatch(context.Background(), 0)

	assert.Equal(t, 2, sender.calls)
	assert.Len(t, repo.sentIDs, 2)
}

func TestWorker_CalculateNextAttempt_ExponentialBackoff(t *testing.T) {
	config := DefaultWorkerConfig()
	config.InitialBackoff = time.Second
	config.BackoffMultiplier = 2.0
	config.MaxBackoff = 5 * time.Minute
	worker := NewWorker(config, newMockRepository(), NewDispatcher(&mockSender{}, 0))

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: time.Second},
		{attempt: 2, expected: 2 * time.Second},
		{attempt: 3, expected: 4 * time.Second},
		{attempt: 12, expected: 5 * time.Minute}, // capped
	}

	for _, tt := range tests {
		next := worker.calculateNextAttempt(tt.attempt)
		delta := time.Until(next) - tt.expected
		assert.InDelta(t, 0, delta.Seconds(), 1.0, "attempt %d", tt.attempt)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(NewRetryableError(errors.New("boom"))))
	assert.False(t, isRetryable(NewNonRetryableError(errors.New("boom"))))
	// Unknown errors default to retry
	assert.True(t, isRetryable(errors.New("boom")))
}

func TestRetryableError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	wrapped := NewRetryableError(base)
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "boom", wrapped.Error())
}
