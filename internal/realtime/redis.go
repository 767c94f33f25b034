package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"textile-store/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "realtime:"

type redisBroker struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisBroker fans changes out across every instance subscribed to the
// same Redis server, on channel realtime:{table}.
func NewRedisBroker(rdb *redis.Client, logger *zap.Logger) Broker {
	return &redisBroker{rdb: rdb, logger: logger}
}

func (b *redisBroker) Publish(ctx context.Context, change domain.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := b.rdb.Publish(ctx, channelPrefix+change.Table, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

func (b *redisBroker) Subscribe(ctx context.Context, table string, event domain.ChangeEvent) (<-chan domain.Change, error) {
	ps := b.rdb.Subscribe(ctx, channelPrefix+table)
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", table, err)
	}

	out := make(chan domain.Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change domain.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					b.logger.Warn("Dropping malformed change", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				if !change.Matches(event) {
					continue
				}
				select {
				case out <- change:
				default:
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *redisBroker) Close() error {
	return nil
}
