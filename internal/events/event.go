package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// TopicAPIFailures carries every failure raised by the API and the retry job.
	TopicAPIFailures = "api.failures"
	// GroupNotification is the consumer group used by the alert dispatcher.
	GroupNotification = "notification-group"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// FailureEvent is the wire payload published on TopicAPIFailures.
type FailureEvent struct {
	TraceID      string `json:"traceId,omitempty"`
	SubmissionID *uint  `json:"submissionId,omitempty"`
	URI          string `json:"uri"`
	Method       string `json:"method"`
	Message      string `json:"message,omitempty"`
}

// Handler processes one consumed event.
type Handler func(ctx context.Context, event FailureEvent) error

// Publisher sends failure events. A nil error means the bus accepted the event.
type Publisher interface {
	Publish(ctx context.Context, topic string, event FailureEvent) error
}

// Subscriber attaches a consumer group to a topic and blocks until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string, handler Handler) error
}

// Bus is a long-lived broker handle shared by publishers and subscribers.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

const failureEventSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"traceId": {"type": "string"},
		"submissionId": {"type": "integer", "minimum": 0},
		"uri": {"type": "string"},
		"method": {"type": "string"},
		"message": {"type": "string"}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func eventSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("failure_event.json", strings.NewReader(failureEventSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("failure_event.json")
	})
	return compiledSchema, schemaErr
}

// EncodeFailureEvent serialises an event for the wire.
func EncodeFailureEvent(event FailureEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode failure event: %w", err)
	}
	return payload, nil
}

// DecodeFailureEvent validates payload against the failure event schema and decodes it.
func DecodeFailureEvent(payload []byte) (FailureEvent, error) {
	schema, err := eventSchema()
	if err != nil {
		return FailureEvent{}, fmt.Errorf("compile failure event schema: %w", err)
	}

	var document interface{}
	if err := json.Unmarshal(payload, &document); err != nil {
		return FailureEvent{}, fmt.Errorf("decode failure event: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return FailureEvent{}, fmt.Errorf("invalid failure event: %w", err)
	}

	var event FailureEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return FailureEvent{}, fmt.Errorf("decode failure event: %w", err)
	}
	return event, nil
}

// SubmissionIDPtr returns nil for zero ids so they are omitted on the wire.
func SubmissionIDPtr(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
