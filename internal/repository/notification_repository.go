package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/campusconnect-api/internal/models"
)

// NotificationRepository hands notifications to the delivery collaborator over Redis Pub/Sub.
type NotificationRepository struct {
	client  *redis.Client
	channel string
}

// NewNotificationRepository constructs the repository publishing on channel.
func NewNotificationRepository(client *redis.Client, channel string) *NotificationRepository {
	if channel == "" {
		channel = "campus:notifications"
	}
	return &NotificationRepository{client: client, channel: channel}
}

// Publish serialises the notification and publishes it. It is a no-op without a client.
func (r *NotificationRepository) Publish(ctx context.Context, notification models.Notification) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}
