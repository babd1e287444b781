package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campusconnect-api/internal/models"
	"github.com/noah-isme/campusconnect-api/pkg/jobs"
)

const notificationJobType = "clearance.notification"

// Notifier delivers student notifications without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification)
}

type notificationPublisher interface {
	Publish(ctx context.Context, notification models.Notification) error
}

// NotificationDispatcher hands notifications to a background queue that publishes them.
type NotificationDispatcher struct {
	queue     *jobs.Queue
	publisher notificationPublisher
	metrics   *MetricsService
	logger    *zap.Logger
}

// NotificationDispatcherConfig sizes the delivery worker pool.
type NotificationDispatcherConfig struct {
	Workers    int
	BufferSize int
	Retries    int
	RetryDelay time.Duration
}

// NewNotificationDispatcher wires the publisher behind a retrying job queue.
func NewNotificationDispatcher(publisher notificationPublisher, metrics *MetricsService, logger *zap.Logger, cfg NotificationDispatcherConfig) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &NotificationDispatcher{publisher: publisher, metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue("notifications", d.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDrop: func(job jobs.Job, err error) {
			d.metrics.RecordNotification("dropped")
		},
	})
	return d
}

// Start launches the delivery workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits for in-flight deliveries to finish.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// Notify enqueues the notification. Failures are logged and never returned.
func (d *NotificationDispatcher) Notify(ctx context.Context, notification models.Notification) {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: notification}
	if err := d.queue.TryEnqueue(job); err != nil {
		d.metrics.RecordNotification("rejected")
		d.logger.Warn("notification not queued",
			zap.String("user_id", notification.UserID),
			zap.String("title", notification.Title),
			zap.Error(err),
		)
		return
	}
	d.metrics.RecordNotification("queued")
}

func (d *NotificationDispatcher) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	if err := d.publisher.Publish(ctx, notification); err != nil {
		d.metrics.RecordNotification("failed")
		return err
	}
	d.metrics.RecordNotification("delivered")
	return nil
}
