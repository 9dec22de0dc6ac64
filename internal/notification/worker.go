package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"dob-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool pushes new-entry notifications to the owning officer's
// registered devices. It satisfies logbook.Notifier, so it can hang off the
// entry factory directly or behind the bridge.
type WorkerPool struct {
	size    int
	jobs    chan model.Entry
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Entry, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification: worker %d started", id)
	for {
		select {
		case entry := <-wp.jobs:
			wp.notifyDevices(ctx, entry)
		case <-ctx.Done():
			log.Printf("notification: worker %d shutting down", id)
			return
		}
	}
}

// Publish enqueues an entry for push delivery.
func (wp *WorkerPool) Publish(entry model.Entry) {
	wp.jobs <- entry
}

type pushPayload struct {
	EntryID     string          `json:"entryId"`
	EventType   model.EventType `json:"eventType"`
	Description string          `json:"description"`
}

// notifyDevices sends one push per registered device of the entry's owner.
func (wp *WorkerPool) notifyDevices(ctx context.Context, entry model.Entry) {
	var subscriptions []model.DeviceSubscription
	err := wp.db.WithContext(ctx).
		Where("cpo_id = ?", entry.CPOID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("notification: failed to fetch subscriptions for officer %s: %v", entry.CPOID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{
		EntryID:     entry.ID,
		EventType:   entry.EventType,
		Description: entry.Description,
	})
	if err != nil {
		log.Printf("notification: failed to marshal payload for entry %s: %v", entry.ID, err)
		return
	}

	for _, sub := range subscriptions {
		wp.push(ctx, sub, payload)
	}
}

func (wp *WorkerPool) push(ctx context.Context, sub model.DeviceSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("notification: failed to send to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("notification: subscription %s expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("notification: failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
