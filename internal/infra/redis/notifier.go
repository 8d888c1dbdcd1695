package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trivora/internal/domain"
)

// DefaultChannelPrefix is prepended to the user id to form the publish channel.
const DefaultChannelPrefix = "notifications:"

// Notifier publishes notifications on a per-user Redis channel for a push
// gateway to deliver.
type Notifier struct {
	client *redis.Client
	prefix string
}

func NewNotifier(client *redis.Client, prefix string) *Notifier {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Notifier{client: client, prefix: prefix}
}

func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.Channel(msg.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Channel returns the channel notifications for userID are published on.
func (n *Notifier) Channel(userID string) string {
	return n.prefix + userID
}
