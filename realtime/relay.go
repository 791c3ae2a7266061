package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const relayChannel = "marketplace:realtime"

// RedisRelay shares broadcasts between instances over Redis pub/sub.
type RedisRelay struct {
	rdb     redis.UniversalClient
	channel string
}

func NewRedisRelay(rdb redis.UniversalClient) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: relayChannel}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, data).Err()
}

// Subscribe blocks, handing every envelope to deliver until ctx is done.
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("dropping malformed relay message", slog.String("error", err.Error()))
				continue
			}
			deliver(env)
		}
	}
}
