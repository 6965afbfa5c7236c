package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RoomChannel change channel of a room's message subtree
func RoomChannel(roomID string) string {
	return fmt.Sprintf("chat:room:%s", roomID)
}

// UserChannel notice channel of one party, room summary changes land here
func UserChannel(partyID string) string {
	return fmt.Sprintf("chat:user:%s", partyID)
}

// PubSub change notification channel
type PubSub interface {
	// Publish 將 message 序列化後，發布到指定 channel
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe returns once the subscription is live; handler runs on one goroutine until ctx is done
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
	}
}

// Publish 將 message 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe 訂閱 channel，收到訊息後呼叫 handler 處理
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	sub := r.client.Subscribe(ctx, channel)
	// 等待訂閱確認，之後發布的訊息都不會漏接
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("%w: subscribe %s: %v", domain.ErrStoreUnavailable, channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(m.Payload))
			case <-ctx.Done():
				logger.Log.Debug("sub close", zap.String("channel", channel))
				return
			}
		}
	}()
	return nil
}
