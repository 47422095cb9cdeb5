package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	. "factlens/internal/common"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(w *fakeWriter) *EventPublisher {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	return &EventPublisher{writer: w, topic: "factlens.analyses", logger: testLogger(), now: func() time.Time { return at }}
}

func TestEventPublisherPublishesTerminalMessages(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(w)

	require.NoError(t, p.Notify(context.Background(), messages.AnalysisProgress{TabID: 1, Stage: StageStarted}))
	require.NoError(t, p.Notify(context.Background(), messages.AnalysisComplete{
		TabID:   1,
		URL:     storyURL,
		Results: models.AnalysisResult{CredibilityScore: 85, Claims: make([]models.Claim, 3)},
	}))
	require.NoError(t, p.Notify(context.Background(), messages.AnalysisError{TabID: 2, Error: "Analysis failed. Please try again later."}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, storyURL, string(w.msgs[0].Key))

	var completed models.AnalysisEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &completed))
	_, err := uuid.Parse(completed.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EventAnalysisCompleted, completed.Kind)
	assert.Equal(t, 85, completed.Score)
	assert.Equal(t, models.BandHigh, completed.Band)
	assert.Equal(t, 3, completed.Claims)
	assert.Equal(t, "2026-10-15T12:00:00.000Z", completed.Timestamp)

	var failed models.AnalysisEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &failed))
	assert.Equal(t, models.EventAnalysisFailed, failed.Kind)
	assert.Equal(t, 2, failed.TabID)
	assert.Equal(t, "Analysis failed. Please try again later.", failed.Error)
	assert.NotEqual(t, completed.ID, failed.ID)
}

func TestEventPublisherWriteFailure(t *testing.T) {
	p := newTestPublisher(&fakeWriter{err: errors.New("leader not available")})

	err := p.Notify(context.Background(), messages.AnalysisError{TabID: 2, Error: "x"})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeNetwork, ErrorTypeOf(err))
}

func TestEventPublisherDisabled(t *testing.T) {
	p := NewEventPublisher(&KafkaConfig{Topic: "factlens.analyses"}, testLogger())
	assert.Nil(t, p)
	assert.NoError(t, p.Notify(context.Background(), messages.AnalysisError{}))
	assert.NoError(t, p.Close())

	w := &fakeWriter{}
	require.NoError(t, newTestPublisher(w).Close())
	assert.True(t, w.closed)
}

func TestMultiNotifierTriesEveryNotifier(t *testing.T) {
	first := &recordingNotifier{err: errors.New("first down")}
	second := &recordingNotifier{}

	err := MultiNotifier{first, nil, second}.Notify(context.Background(), messages.Ping{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first down")
	assert.Len(t, first.sent(), 1)
	assert.Len(t, second.sent(), 1)

	assert.NoError(t, MultiNotifier{second}.Notify(context.Background(), messages.Ping{}))
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(testLogger())
	assert.NoError(t, n.Notify(context.Background(), messages.AnalysisProgress{TabID: 1, Stage: StageAnalyzing}))
	assert.NoError(t, n.Notify(context.Background(), messages.History{}))
	assert.Error(t, n.Notify(context.Background(), nil))
}
