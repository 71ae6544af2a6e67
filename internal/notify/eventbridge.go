// Package notify publishes pipeline lifecycle events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Event source and detail types.
const (
	Source              = "expertise.pipeline"
	DetailTypeCompleted = "Pipeline Run Completed"
	DetailTypeFailed    = "Pipeline Run Failed"
)

// EventBridgeAPI is the subset of the EventBridge client used by Publisher.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends lifecycle events to an EventBridge bus.
type Publisher struct {
	client  EventBridgeAPI
	busName string
}

// NewPublisher creates a publisher for the named bus.
func NewPublisher(client EventBridgeAPI, busName string) (*Publisher, error) {
	if busName == "" {
		return nil, fmt.Errorf("event bus name required")
	}
	return &Publisher{client: client, busName: busName}, nil
}

// DetailType returns the detail type for a terminal run status.
func DetailType(status types.RunStatus) string {
	if status == types.RunCompleted {
		return DetailTypeCompleted
	}
	return DetailTypeFailed
}

// Publish sends evt as a single event.
func (p *Publisher) Publish(ctx context.Context, evt types.LifecycleEvent) error {
	detail, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling lifecycle event: %w", err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(Source),
			DetailType:   aws.String(DetailType(evt.Status)),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(evt.Timestamp),
		}},
	})
	if err != nil {
		return fmt.Errorf("publishing lifecycle event: %w", err)
	}
	if out.FailedEntryCount > 0 {
		msg := "unknown"
		if len(out.Entries) > 0 {
			msg = aws.ToString(out.Entries[0].ErrorMessage)
		}
		return fmt.Errorf("publishing lifecycle event: entry rejected: %s", msg)
	}
	return nil
}

// LogNotifier writes lifecycle events to a logger. It is used when no bus
// is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Publish logs evt.
func (l LogNotifier) Publish(_ context.Context, evt types.LifecycleEvent) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("pipeline lifecycle",
		"pipeline", evt.Pipeline,
		"runID", evt.RunID,
		"status", evt.Status,
		"tasks", len(evt.Tasks),
		"error", evt.Error,
	)
	return nil
}
