// Package notify persists user-facing alerts and best-effort attempts
// outbound delivery. It is an independent failure domain from the
// business transaction: callers invoke Send only after their own commit,
// and a failed or dropped delivery never propagates back to them. The
// Notification row is the only durable guarantee; the outbound ping rides
// a bounded in-process queue drained by a worker goroutine.
package notify

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/repository"
)

const defaultQueueSize = 256

// Dispatcher writes Notification rows and best-effort forwards them to a
// Sender. Construction is cheap; Start must be called once to begin
// draining the queue.
type Dispatcher struct {
	repo    *repository.NotificationRepository
	senders map[Channel]Sender
	queue   chan job
	stop    chan struct{}
}

type job struct {
	notification *domain.Notification
}

// New builds a Dispatcher over repo, delivering through senders keyed by
// channel. The queue is bounded; a full queue drops the send attempt, but
// the Notification row itself is already durable, so nothing is lost
// except the best-effort outbound ping.
func New(repo *repository.NotificationRepository, senders ...Sender) *Dispatcher {
	byChannel := make(map[Channel]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Dispatcher{
		repo:    repo,
		senders: byChannel,
		queue:   make(chan job, defaultQueueSize),
		stop:    make(chan struct{}),
	}
}

// Start launches the worker goroutine that drains the queue. Safe to call
// once per Dispatcher.
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop halts the worker goroutine. Queued-but-undelivered jobs are
// dropped; delivery is best-effort and duplicates are tolerated.
func (d *Dispatcher) Stop() {
	close(d.stop)
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.stop:
			return
		case j := <-d.queue:
			d.deliver(j.notification)
		}
	}
}

func (d *Dispatcher) deliver(n *domain.Notification) {
	sender, ok := d.senders[ChannelEmail]
	if !ok {
		return
	}
	out := Outbound{Recipient: contactForUser(n.UserID), Subject: n.Title, Body: n.Message}
	const maxAttempts = 3
	backoff := 200 * time.Millisecond
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := sender.Send(ctx, out)
		cancel()
		if err == nil {
			return
		}
		log.Printf("[NOTIFY] delivery attempt %d/%d failed for notification %d: %v", attempt, maxAttempts, n.ID, err)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
}

// contactForUser stands in for a real user-directory lookup; contact
// info lives in the external identity service.
func contactForUser(userID int64) string {
	return "user-" + itoa(userID)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Send persists the Notification row first, then enqueues a best-effort
// outbound attempt; a full queue silently drops the outbound attempt
// without affecting the persisted row or the caller.
func (d *Dispatcher) Send(ctx context.Context, userID int64, nType domain.NotificationType, title, message string, complaintID sql.NullInt64, link sql.NullString) (*domain.Notification, error) {
	n := &domain.Notification{
		UserID:      userID,
		Type:        nType,
		Title:       title,
		Message:     message,
		ComplaintID: complaintID,
		Link:        link,
	}
	id, err := d.repo.Create(ctx, n)
	if err != nil {
		log.Printf("[NOTIFY] failed to persist notification for user %d: %v", userID, err)
		return nil, err
	}
	n.ID = id

	select {
	case d.queue <- job{notification: n}:
	default:
		log.Printf("[NOTIFY] queue full, dropping outbound attempt for notification %d", n.ID)
	}
	return n, nil
}

// List returns a user's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	return d.repo.FindByUser(ctx, userID, limit)
}

// Unread returns a user's unread notifications.
func (d *Dispatcher) Unread(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	return d.repo.FindUnreadByUser(ctx, userID)
}

// UnreadCount returns the badge count for a user.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return d.repo.UnreadCount(ctx, userID)
}

// MarkRead marks one notification read on behalf of userID (ownership enforced in the repository).
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, userID int64) error {
	return d.repo.MarkRead(ctx, notificationID, userID)
}

// MarkAllRead marks every unread notification for a user as read.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID int64) error {
	unread, err := d.repo.FindUnreadByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, n := range unread {
		if err := d.repo.MarkRead(ctx, n.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

// ForComplaint returns the notifications a user received about one complaint.
func (d *Dispatcher) ForComplaint(ctx context.Context, userID, complaintID int64) ([]*domain.Notification, error) {
	return d.repo.FindByUserAndComplaint(ctx, userID, complaintID)
}

// MarkReadForComplaint marks every notification a user received about one
// complaint as read, for a "I've seen everything about this complaint" action.
func (d *Dispatcher) MarkReadForComplaint(ctx context.Context, userID, complaintID int64) error {
	notifications, err := d.repo.FindByUserAndComplaint(ctx, userID, complaintID)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		if n.IsRead {
			continue
		}
		if err := d.repo.MarkRead(ctx, n.ID, userID); err != nil {
			return err
		}
	}
	return nil
}
