package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const payloadField = "value"

// RedisStreamConfig tunes the Redis Streams bus.
type RedisStreamConfig struct {
	// Consumer identifies this process inside a group. Pending entries are
	// redelivered to the same consumer name after a restart.
	Consumer  string
	Block     time.Duration
	BatchSize int64
	MaxLen    int64
}

// RedisStreamBus implements Bus on Redis Streams consumer groups. Entries are acked
// only after the handler returns, giving at-least-once delivery per group.
type RedisStreamBus struct {
	client *redis.Client
	cfg    RedisStreamConfig
	logger zerolog.Logger
}

// NewRedisStreamBus wraps an established redis client. The client is owned by the
// caller; Close is a no-op for the bus itself.
func NewRedisStreamBus(client *redis.Client, cfg RedisStreamConfig, logger zerolog.Logger) *RedisStreamBus {
	if cfg.Consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "local"
		}
		cfg.Consumer = "consumer-" + host
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}

	return &RedisStreamBus{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "redis_stream_bus").Logger(),
	}
}

// Publish appends the event to the topic stream.
func (b *RedisStreamBus) Publish(ctx context.Context, topic string, event FailureEvent) error {
	payload, err := EncodeFailureEvent(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{payloadField: string(payload)},
	}
	if b.cfg.MaxLen > 0 {
		args.MaxLen = b.cfg.MaxLen
		args.Approx = true
	}

	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe creates the group at the start of the stream when missing, replays
// entries left pending for this consumer, then reads new entries until ctx is done.
func (b *RedisStreamBus) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	if err := b.ensureGroup(ctx, topic, group); err != nil {
		return err
	}

	logger := b.logger.With().Str("topic", topic).Str("group", group).Str("consumer", b.cfg.Consumer).Logger()

	for {
		processed, err := b.read(ctx, topic, group, "0", -1, handler)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("replay pending entries: %w", err)
		}
		if processed == 0 {
			break
		}
	}

	logger.Info().Msg("stream consumer attached")

	backoff := 100 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := b.read(ctx, topic, group, ">", b.cfg.Block, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Dur("backoff", backoff).Msg("stream read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = 100 * time.Millisecond
	}
}

// Close is a no-op; the redis client is closed by its owner.
func (b *RedisStreamBus) Close() error {
	return nil
}

func (b *RedisStreamBus) ensureGroup(ctx context.Context, topic, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, topic, err)
	}
	return nil
}

func (b *RedisStreamBus) read(ctx context.Context, topic, group, start string, block time.Duration, handler Handler) (int, error) {
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: b.cfg.Consumer,
		Streams:  []string{topic, start},
		Count:    b.cfg.BatchSize,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	processed := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			b.dispatch(ctx, topic, group, message, handler)
			processed++
		}
	}
	return processed, nil
}

func (b *RedisStreamBus) dispatch(ctx context.Context, topic, group string, message redis.XMessage, handler Handler) {
	logger := b.logger.With().Str("topic", topic).Str("message_id", message.ID).Logger()

	raw, _ := message.Values[payloadField].(string)
	event, err := DecodeFailureEvent([]byte(raw))
	if err != nil {
		logger.Warn().Err(err).Msg("discarding malformed failure event")
	} else if err := handler(ctx, event); err != nil {
		logger.Error().Err(err).Msg("failure event handler returned error")
	}

	if err := b.client.XAck(ctx, topic, group, message.ID).Err(); err != nil {
		logger.Warn().Err(err).Msg("failed to ack failure event")
	}
}
