package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"supportchat/internal/infrastructure/relay/port"
)

// channel carries every room broadcast for all nodes; events embed the room
// id, so one pub/sub channel is enough at this fan-out volume.
const channel = "messaging:fanout"

// RedisRelay implements port.Relay over redis pub/sub.
type RedisRelay struct {
	client *redis.Client
	origin string
}

// NewRedisRelay constructs a relay from a redis URL. Each relay instance
// gets a unique origin id identifying this process.
func NewRedisRelay(url string) (*RedisRelay, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("relay: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("relay: ping: %w", err)
	}
	return &RedisRelay{client: c, origin: uuid.NewString()}, nil
}

var _ port.Relay = (*RedisRelay)(nil)

func (r *RedisRelay) Publish(ctx context.Context, ev port.Event) error {
	ev.Origin = r.origin
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, b).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, fn func(ev port.Event)) error {
	sub := r.client.Subscribe(ctx, channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev port.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("relay: dropping malformed event")
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			fn(ev)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
