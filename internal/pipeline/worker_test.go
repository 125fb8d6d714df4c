package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
	"github.com/renewgrid/sitescout/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	messages []domain.RawMessage
	index    atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.messages) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	end := min(i+batchSize, len(m.messages))
	m.index.Store(int64(end))
	return m.messages[i:end], nil
}

type mockRunner struct {
	report *domain.SurveyReport
	err    error
}

func (m *mockRunner) Survey(_ context.Context, _ domain.SurveyRequest) (*domain.SurveyReport, error) {
	return m.report, m.err
}

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.SurveyResult
	err       error
}

func (m *mockPublisher) PublishResults(_ context.Context, results []domain.SurveyResult) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, results...)
	return nil
}

func (m *mockPublisher) results() []domain.SurveyResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SurveyResult(nil), m.published...)
}

func makeRequestMessage(t *testing.T, requestID string) domain.RawMessage {
	t.Helper()
	data, err := json.Marshal(domain.SurveyRequest{
		RequestID: requestID,
		Boundary:  karnataka,
		Window:    domain.DateRange{Start: "2023-01-01", End: "2023-06-01"},
		PlantType: "wind",
	})
	require.NoError(t, err)
	return domain.RawMessage{Key: []byte(requestID), Value: data, Topic: "site-survey-requests"}
}

func testReport() *domain.SurveyReport {
	return &domain.SurveyReport{
		OptimalPoint: domain.OptimalPoint{Lat: 12.5, Lon: 75.5},
		PlantType:    domain.PlantWind,
		Stats:        domain.PerformanceStats{TotalSamples: 10, ResolutionMeters: 1500, PassesCompleted: 3},
	}
}

func newWorker(e pipeline.BatchExtractor, r pipeline.SurveyRunner, p pipeline.ResultPublisher) *pipeline.Worker {
	return pipeline.NewWorker(e, r, p, discardLogger(), observability.NewMetricsForTesting(), 10)
}

// --- tests ---

func TestWorker_Run_HappyPath(t *testing.T) {
	raw := makeRequestMessage(t, "req-1")
	commitCalled := false
	raw.Commit = func(_ context.Context) error {
		commitCalled = true
		return nil
	}

	ext := &mockExtractor{messages: []domain.RawMessage{raw}}
	pub := &mockPublisher{}
	w := newWorker(ext, &mockRunner{report: testReport()}, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))

	published := pub.results()
	require.Len(t, published, 1)
	assert.Equal(t, "req-1", published[0].RequestID)
	assert.Equal(t, domain.OutcomeOK, published[0].Outcome)
	require.NotNil(t, published[0].Report)
	assert.Equal(t, 12.5, published[0].Report.OptimalPoint.Lat)
	assert.True(t, commitCalled)
	assert.NoError(t, w.CheckReadiness(context.Background()))
}

func TestWorker_Run_InvalidRequestPublishesFailure(t *testing.T) {
	raw := domain.RawMessage{Key: []byte("bad"), Value: []byte("not-json{{{"), Topic: "site-survey-requests"}
	committed := false
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{messages: []domain.RawMessage{raw}}
	pub := &mockPublisher{}
	w := newWorker(ext, &mockRunner{report: testReport()}, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))

	published := pub.results()
	require.Len(t, published, 1, "a malformed request still gets a terminal result")
	assert.Equal(t, "invalid_input", published[0].Outcome)
	assert.Nil(t, published[0].Report)
	assert.NotEmpty(t, published[0].Error)
	assert.True(t, committed, "poison messages commit so they are not redelivered forever")
}

func TestWorker_Run_SurveyFailurePublishesKind(t *testing.T) {
	ext := &mockExtractor{messages: []domain.RawMessage{makeRequestMessage(t, "req-2")}}
	pub := &mockPublisher{}
	runner := &mockRunner{err: domain.Errorf(domain.KindNoData, "compose", "no wind data available for the selected period")}
	w := newWorker(ext, runner, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))

	published := pub.results()
	require.Len(t, published, 1)
	assert.Equal(t, "no_data", published[0].Outcome)
	assert.Contains(t, published[0].Error, "no wind data")
	assert.False(t, published[0].ProcessedAt.IsZero())
}

func TestWorker_Run_GeneratesRequestID(t *testing.T) {
	raw := makeRequestMessage(t, "")

	ext := &mockExtractor{messages: []domain.RawMessage{raw}}
	pub := &mockPublisher{}
	w := newWorker(ext, &mockRunner{report: testReport()}, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))

	published := pub.results()
	require.Len(t, published, 1)
	assert.NotEmpty(t, published[0].RequestID)
}

func TestWorker_Run_PublishErrorSkipsCommit(t *testing.T) {
	raw := makeRequestMessage(t, "req-3")
	committed := false
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{messages: []domain.RawMessage{raw}}
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	w := newWorker(ext, &mockRunner{report: testReport()}, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))
	assert.False(t, committed, "offsets must not commit when publishing fails")
	assert.Error(t, w.CheckReadiness(context.Background()))
}

func TestWorker_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no messages — will block
	pub := &mockPublisher{}
	w := newWorker(ext, &mockRunner{report: testReport()}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, w.Run(ctx))
	assert.Empty(t, pub.results())
}
