// Package eventbridge publishes intake completion signals to an AWS EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
)

const (
	// DefaultSource is the EventBridge source of every entry.
	DefaultSource = "intake"
	// DetailType of the completion entry. Downstream rules match on it.
	DetailType = "IntakeCompleted"
)

// API is the subset of the EventBridge client used by the Notifier.
type API interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Notifier implements ports.Notifier.
type Notifier struct {
	client API
	bus    string
	source string
	logger *slog.Logger
}

// Option configures the Notifier.
type Option func(*Notifier)

// WithSource overrides DefaultSource.
func WithSource(source string) Option {
	return func(n *Notifier) {
		n.source = source
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// New creates a Notifier publishing to the named bus.
func New(client API, bus string, opts ...Option) *Notifier {
	n := &Notifier{
		client: client,
		bus:    bus,
		source: DefaultSource,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// IntakeCompleted publishes one entry for the completed event.
func (n *Notifier) IntakeCompleted(ctx context.Context, event *domain.CompletionEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}

	entry := types.PutEventsRequestEntry{
		EventBusName: aws.String(n.bus),
		Source:       aws.String(n.source),
		DetailType:   aws.String(DetailType),
		Detail:       aws.String(string(detail)),
		Resources:    []string{"event/" + event.EventID},
	}
	if !event.Timestamp.IsZero() {
		entry.Time = aws.Time(event.Timestamp)
	}

	out, err := n.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}
	if out.FailedEntryCount > 0 {
		var code, msg string
		if len(out.Entries) > 0 {
			code = aws.ToString(out.Entries[0].ErrorCode)
			msg = aws.ToString(out.Entries[0].ErrorMessage)
		}
		n.logger.Error("Failed to publish event", "event_id", event.EventID, "code", code, "message", msg)
		return fmt.Errorf("eventbridge rejected entry: %s: %s", code, msg)
	}

	n.logger.Debug("Published completion event", "event_id", event.EventID, "bus", n.bus)
	return nil
}
