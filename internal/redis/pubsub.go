package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Invalidator broadcasts which reference table changed so every API
// instance can reload its lookup snapshot.
type Invalidator struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewInvalidator(client *redis.Client, channel string, log zerolog.Logger) *Invalidator {
	return &Invalidator{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "invalidator").Str("channel", channel).Logger(),
	}
}

func (i *Invalidator) Publish(ctx context.Context, table string) error {
	if err := i.client.Publish(ctx, i.channel, table).Err(); err != nil {
		return fmt.Errorf("publish invalidation for %s: %w", table, err)
	}
	return nil
}

// Listen calls fn for every invalidation message until ctx is done.
func (i *Invalidator) Listen(ctx context.Context, fn func(ctx context.Context, table string)) error {
	sub := i.client.Subscribe(ctx, i.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", i.channel, err)
	}
	i.log.Info().Msg("listening for lookup invalidations")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			i.log.Debug().Str("table", msg.Payload).Msg("invalidation received")
			fn(ctx, msg.Payload)
		}
	}
}
