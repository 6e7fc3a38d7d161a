package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []FailureEvent
}

func (c *collector) handle(_ context.Context, event FailureEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *collector) snapshot() []FailureEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FailureEvent(nil), c.events...)
}

func newRedisBus(t *testing.T, consumer string) (*RedisStreamBus, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisStreamBus(client, RedisStreamConfig{Consumer: consumer, Block: 50 * time.Millisecond}, zerolog.Nop())
	return bus, client
}

func TestDecodeFailureEventValidatesSchema(t *testing.T) {
	event, err := DecodeFailureEvent([]byte(`{"traceId":"t-1","submissionId":4,"uri":"/api/v1/submissions","method":"POST","message":"boom"}`))
	require.NoError(t, err)
	require.Equal(t, "t-1", event.TraceID)
	require.NotNil(t, event.SubmissionID)
	require.Equal(t, uint(4), *event.SubmissionID)

	_, err = DecodeFailureEvent([]byte(`{"submissionId":"4"}`))
	require.Error(t, err)

	_, err = DecodeFailureEvent([]byte(`not json`))
	require.Error(t, err)

	partial, err := DecodeFailureEvent([]byte(`{"message":"only a message"}`))
	require.NoError(t, err)
	require.Nil(t, partial.SubmissionID)
	require.Empty(t, partial.URI)
}

func TestEncodeFailureEventOmitsMissingSubmission(t *testing.T) {
	payload, err := EncodeFailureEvent(FailureEvent{URI: "retry-job", Method: "AUTO", SubmissionID: SubmissionIDPtr(0)})
	require.NoError(t, err)
	require.JSONEq(t, `{"uri":"retry-job","method":"AUTO"}`, string(payload))
}

func TestRedisStreamBusDeliversEventsPublishedBeforeSubscribe(t *testing.T) {
	bus, _ := newRedisBus(t, "worker-a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Publish(ctx, TopicAPIFailures, FailureEvent{TraceID: "t-1", URI: "/a", Method: "POST"}))
	require.NoError(t, bus.Publish(ctx, TopicAPIFailures, FailureEvent{TraceID: "t-2", URI: "/b", Method: "GET"}))

	sink := &collector{}
	done := make(chan error, 1)
	go func() { done <- bus.Subscribe(ctx, TopicAPIFailures, GroupNotification, sink.handle) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, "t-1", sink.snapshot()[0].TraceID)
	require.Equal(t, "t-2", sink.snapshot()[1].TraceID)

	require.NoError(t, bus.Publish(ctx, TopicAPIFailures, FailureEvent{TraceID: "t-3", URI: "/c", Method: "PUT"}))
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 3 }, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestRedisStreamBusReplaysPendingEntriesAfterCrash(t *testing.T) {
	bus, client := newRedisBus(t, "worker-a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Publish(ctx, TopicAPIFailures, FailureEvent{TraceID: "lost", URI: "/a", Method: "POST"}))
	require.NoError(t, client.XGroupCreateMkStream(ctx, TopicAPIFailures, GroupNotification, "0").Err())

	// Read without ack, as a consumer that died mid-handler would.
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupNotification,
		Consumer: "worker-a",
		Streams:  []string{TopicAPIFailures, ">"},
		Count:    10,
		Block:    -1,
	}).Result()
	require.NoError(t, err)
	require.Len(t, streams[0].Messages, 1)

	sink := &collector{}
	go func() { _ = bus.Subscribe(ctx, TopicAPIFailures, GroupNotification, sink.handle) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, "lost", sink.snapshot()[0].TraceID)

	require.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, TopicAPIFailures, GroupNotification).Result()
		return err == nil && pending.Count == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRedisStreamBusAcksMalformedEntries(t *testing.T) {
	bus, client := newRedisBus(t, "worker-a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: TopicAPIFailures,
		Values: map[string]interface{}{payloadField: `{"submissionId":"nope"}`},
	}).Err())
	require.NoError(t, bus.Publish(ctx, TopicAPIFailures, FailureEvent{TraceID: "ok", URI: "/a", Method: "POST"}))

	sink := &collector{}
	go func() { _ = bus.Subscribe(ctx, TopicAPIFailures, GroupNotification, sink.handle) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, TopicAPIFailures, GroupNotification).Result()
		return err == nil && pending.Count == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMemoryBusFansOutPerGroup(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Publish(ctx, TopicAPIFailures, FailureEvent{TraceID: "early"}))

	first := &collector{}
	second := &collector{}
	go func() { _ = bus.Subscribe(ctx, TopicAPIFailures, "group-a", first.handle) }()
	go func() { _ = bus.Subscribe(ctx, TopicAPIFailures, "group-b", second.handle) }()

	require.NoError(t, bus.Publish(ctx, TopicAPIFailures, FailureEvent{TraceID: "late"}))

	require.Eventually(t, func() bool {
		return len(first.snapshot()) == 2 && len(second.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)
	require.Len(t, bus.Events(TopicAPIFailures), 2)

	require.NoError(t, bus.Close())
	require.ErrorIs(t, bus.Publish(ctx, TopicAPIFailures, FailureEvent{}), ErrBusClosed)
}

func TestStreamNameNormalisesTopic(t *testing.T) {
	require.Equal(t, "API_FAILURES", StreamName(TopicAPIFailures))
}
