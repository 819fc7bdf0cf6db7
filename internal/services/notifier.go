package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AutomationNotice 自动化动作发出的看板通知
type AutomationNotice struct {
	Type        string    `json:"type"`
	WorkspaceID string    `json:"workspace_id"`
	BoardID     string    `json:"board_id"`
	CardID      string    `json:"card_id,omitempty"`
	RuleID      string    `json:"rule_id,omitempty"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

const noticeType = "automation.notify"

// Notifier delivers automation notices to board subscribers.
type Notifier interface {
	Notify(ctx context.Context, n AutomationNotice) error
}

// RedisNotifier publishes notices on a redis channel so every instance can
// forward them to its own websocket clients.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisNotifier(client redis.UniversalClient, channel string) *RedisNotifier {
	if channel == "" {
		channel = "taskboard:automation"
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(ctx context.Context, n AutomationNotice) error {
	payload, err := encodeNotice(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Subscribe relays notices from the channel into hub until ctx is done.
func (r *RedisNotifier) Subscribe(ctx context.Context, hub *BoardHub) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n AutomationNotice
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue
			}
			hub.Broadcast(n.BoardID, BoardMessage{Type: n.Type, Data: n, BoardID: n.BoardID})
		}
	}
}

func encodeNotice(n AutomationNotice) ([]byte, error) {
	if n.Type == "" {
		n.Type = noticeType
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	return json.Marshal(n)
}

// MultiNotifier fans a notice out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n AutomationNotice) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
