package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

type mockEventBridge struct {
	input *eventbridge.PutEventsInput
	out   *eventbridge.PutEventsOutput
	err   error
}

func (m *mockEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.input = params
	if m.out == nil {
		return &eventbridge.PutEventsOutput{}, m.err
	}
	return m.out, m.err
}

func TestNewPublisher_RequiresBus(t *testing.T) {
	_, err := NewPublisher(&mockEventBridge{}, "")
	assert.Error(t, err)
}

func TestPublish(t *testing.T) {
	client := &mockEventBridge{}
	p, err := NewPublisher(client, "expertise-bus")
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := types.LifecycleEvent{
		Pipeline:  "graph-publish",
		RunID:     "01HX",
		Status:    types.RunFailed,
		Tasks:     []types.TaskResult{{Name: "redeploy", Status: types.TaskFailed}},
		Error:     "boom",
		Timestamp: ts,
	}
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, client.input.Entries, 1)
	entry := client.input.Entries[0]
	assert.Equal(t, "expertise-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, DetailTypeFailed, aws.ToString(entry.DetailType))
	assert.Equal(t, ts, aws.ToTime(entry.Time))

	var back types.LifecycleEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &back))
	assert.Equal(t, "01HX", back.RunID)
	assert.Equal(t, "redeploy", back.Tasks[0].Name)
}

func TestPublish_Errors(t *testing.T) {
	p, _ := NewPublisher(&mockEventBridge{err: assert.AnError}, "bus")
	err := p.Publish(context.Background(), types.LifecycleEvent{Status: types.RunCompleted})
	assert.ErrorIs(t, err, assert.AnError)

	p, _ = NewPublisher(&mockEventBridge{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []ebtypes.PutEventsResultEntry{{ErrorMessage: aws.String("throttled")}},
	}}, "bus")
	err = p.Publish(context.Background(), types.LifecycleEvent{Status: types.RunCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestDetailType(t *testing.T) {
	assert.Equal(t, DetailTypeCompleted, DetailType(types.RunCompleted))
	assert.Equal(t, DetailTypeFailed, DetailType(types.RunFailed))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	require.NoError(t, n.Publish(context.Background(), types.LifecycleEvent{Pipeline: "data-fetch", RunID: "r1", Status: types.RunCompleted}))
	assert.Contains(t, buf.String(), `"runID":"r1"`)
}
