// Package events fans order changes out to connected technicians, across
// instances when Redis is configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-repair/internal/repair/sse"
)

// Channel is the Redis channel order events travel on.
const Channel = "repair:events"

const (
	OrderCreated  = "order_created"
	OrderUpdated  = "order_updated"
	ChatMessage   = "chat_message"
	RenewalSent   = "renewal_sent"
	InventoryMove = "inventory_changed"
)

// Event 维修单事件
type Event struct {
	Type    string                 `json:"type"`
	OrderID string                 `json:"order_id,omitempty"`
	Number  string                 `json:"number,omitempty"`
	UserID  string                 `json:"user_id,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Publisher delivers events; failures never affect the write that caused
// them.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

func toSSE(e Event) (sse.Event, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return sse.Event{}, err
	}
	return sse.Event{EventType: e.Type, Data: string(data), OrderID: e.OrderID}, nil
}

func deliver(hub *sse.Hub, e Event) error {
	ev, err := toSSE(e)
	if err != nil {
		return err
	}
	if e.UserID != "" {
		hub.SendToUser(e.UserID, ev)
		return nil
	}
	hub.Broadcast(ev)
	return nil
}

// HubPublisher delivers straight to the local SSE hub.
type HubPublisher struct {
	hub *sse.Hub
}

func NewHubPublisher(hub *sse.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, e Event) error {
	return deliver(p.hub, e)
}

// RedisPublisher publishes to Channel; every instance's Subscriber feeds its
// own hub.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, Channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe forwards Channel into hub until ctx is done.
func Subscribe(ctx context.Context, rdb *redis.Client, hub *sse.Hub, logger *zap.Logger) {
	ps := rdb.Subscribe(ctx, Channel)
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.Warn("drop malformed event", zap.Error(err))
				continue
			}
			if err := deliver(hub, e); err != nil {
				logger.Warn("deliver event", zap.Error(err))
			}
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
