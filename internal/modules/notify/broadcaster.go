// README: Real-time fan-out; channel naming and the redis pub/sub broadcaster.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mealdrop/internal/types"
)

// Broadcaster publishes an event on a named channel. Delivery is best-effort:
// with nobody subscribed the event is simply dropped, and no implementation
// retries. Durability comes from the persisted notification row, not from
// the broadcast.
type Broadcaster interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

func UserChannel(id types.ID) string       { return "user:" + string(id) }
func RestaurantChannel(id types.ID) string { return "restaurant:" + string(id) }
func OrderChannel(id types.ID) string      { return "order:" + string(id) }

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	TS    int64  `json:"ts"`
}

type RedisBroadcaster struct {
	redis *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{redis: client}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel, event string, payload any) error {
	msg, err := json.Marshal(envelope{Event: event, Data: payload, TS: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}
	return b.redis.Publish(ctx, channel, msg).Err()
}
