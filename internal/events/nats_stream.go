package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSStreamConfig tunes the JetStream bus.
type NATSStreamConfig struct {
	FetchBatch int
	FetchWait  time.Duration
	MaxAge     time.Duration
	// AckWait is how long a fetched message stays unacked before redelivery.
	AckWait time.Duration
}

// NATSStreamBus implements Bus on JetStream durable pull consumers. The durable
// name is the consumer group, so messages published before the first subscription
// are still delivered, unacked messages are redelivered after AckWait and the
// group's position survives restarts.
type NATSStreamBus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	cfg    NATSStreamConfig
	logger zerolog.Logger
}

// NewNATSStreamBus creates a JetStream context on conn. The bus owns conn and
// drains it on Close.
func NewNATSStreamBus(conn *nats.Conn, cfg NATSStreamConfig, logger zerolog.Logger) (*NATSStreamBus, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("open jetstream context: %w", err)
	}
	if cfg.FetchBatch <= 0 {
		cfg.FetchBatch = 16
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}

	return &NATSStreamBus{
		conn:   conn,
		js:     js,
		cfg:    cfg,
		logger: logger.With().Str("component", "nats_stream_bus").Logger(),
	}, nil
}

// StreamName maps a dotted topic onto a JetStream stream name.
func StreamName(topic string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(topic))
}

// Publish stores the event in the topic stream, creating the stream on first use.
func (b *NATSStreamBus) Publish(ctx context.Context, topic string, event FailureEvent) error {
	if err := b.ensureStream(topic); err != nil {
		return err
	}
	payload, err := EncodeFailureEvent(event)
	if err != nil {
		return err
	}
	if _, err := b.js.Publish(topic, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe binds a durable pull consumer named after group and processes
// messages until ctx is done.
func (b *NATSStreamBus) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	if err := b.ensureStream(topic); err != nil {
		return err
	}

	if err := b.ensureConsumer(topic, group); err != nil {
		return err
	}

	sub, err := b.js.PullSubscribe(topic, group,
		nats.Bind(StreamName(topic), group),
		nats.ManualAck(),
	)
	if err != nil {
		return fmt.Errorf("bind pull consumer %s: %w", group, err)
	}
	defer func() {
		// The consumer is bound, not created by the subscription, so it survives this.
		_ = sub.Unsubscribe()
	}()

	logger := b.logger.With().Str("topic", topic).Str("group", group).Logger()
	logger.Info().Msg("stream consumer attached")

	for {
		if ctx.Err() != nil {
			return nil
		}

		messages, err := sub.Fetch(b.cfg.FetchBatch, nats.MaxWait(b.cfg.FetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return nil
			}
			logger.Error().Err(err).Msg("jetstream fetch failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range messages {
			event, err := DecodeFailureEvent(msg.Data)
			if err != nil {
				logger.Warn().Err(err).Msg("discarding malformed failure event")
			} else if err := handler(ctx, event); err != nil {
				logger.Error().Err(err).Msg("failure event handler returned error")
			}
			if err := msg.Ack(); err != nil {
				logger.Warn().Err(err).Msg("failed to ack failure event")
			}
		}
	}
}

// Close drains the underlying connection.
func (b *NATSStreamBus) Close() error {
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Drain()
}

func (b *NATSStreamBus) ensureStream(topic string) error {
	name := StreamName(topic)
	if _, err := b.js.StreamInfo(name); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("lookup stream %s: %w", name, err)
	}

	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  []string{topic},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    b.cfg.MaxAge,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}

// ensureConsumer creates the durable group consumer at the start of the stream when
// it does not exist yet.
func (b *NATSStreamBus) ensureConsumer(topic, group string) error {
	stream := StreamName(topic)
	if _, err := b.js.ConsumerInfo(stream, group); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("lookup consumer %s: %w", group, err)
	}

	_, err := b.js.AddConsumer(stream, &nats.ConsumerConfig{
		Durable:       group,
		AckPolicy:     nats.AckExplicitPolicy,
		DeliverPolicy: nats.DeliverAllPolicy,
		AckWait:       b.cfg.AckWait,
		FilterSubject: topic,
	})
	if err != nil && !errors.Is(err, nats.ErrConsumerNameAlreadyInUse) {
		return fmt.Errorf("create consumer %s: %w", group, err)
	}
	return nil
}

// Status reports the state of the underlying connection.
func (b *NATSStreamBus) Status() nats.Status {
	return b.conn.Status()
}
