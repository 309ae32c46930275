package notifications

import (
	"time"

	"github.com/authorshaven/notify/internal/domain"
)

// QueueStatus represents the status of a mail queue item.
type QueueStatus string

// Queue statuses.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// MailQueueItem is one batched outbound email awaiting delivery. A single
// item is enqueued per triggering event; all eligible recipients ride in
// the Recipients list and are addressed via BCC at send time.
type MailQueueItem struct {
	ID            string
	EventKind     domain.EventKind
	Subject       string
	Body          string
	Recipients    []string
	Status        QueueStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SentAt        *time.Time
}

// QueueStats holds mail queue size per status.
type QueueStats struct {
	Pending    int
	Processing int
	Sent       int
	Failed     int
}
