package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
)

// BatchExtractor reads up to batchSize raw request messages from the source
// topic.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// SurveyRunner executes one region survey.
type SurveyRunner interface {
	Survey(ctx context.Context, req domain.SurveyRequest) (*domain.SurveyReport, error)
}

// ResultPublisher writes survey results to the result topic.
type ResultPublisher interface {
	PublishResults(ctx context.Context, results []domain.SurveyResult) error
}

// Worker consumes survey requests from Kafka, runs each through the
// surveyor, and publishes a result per request. Failed surveys produce
// failure results rather than being dropped, so every consumed request has
// a terminal record on the result topic.
type Worker struct {
	extractor BatchExtractor
	runner    SurveyRunner
	publisher ResultPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// NewWorker creates a Worker with the given stages and observability.
func NewWorker(e BatchExtractor, r SurveyRunner, p ResultPublisher, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Worker {
	return &Worker{
		extractor: e,
		runner:    r,
		publisher: p,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil if the worker has processed at least one
// request, or an error describing why the service is not yet ready.
func (w *Worker) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New("worker has not processed any requests yet")
	}
	return nil
}

// Run executes the consume-survey-publish loop until the context is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("survey worker started", "batch_size", w.batchSize)
	w.metrics.WorkerRunning.Set(1)
	defer w.metrics.WorkerRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during Kafka outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("survey worker stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !w.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one consume-survey-publish cycle. Returns false if the
// worker should stop.
func (w *Worker) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := w.extractor.ExtractBatch(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Error("extract batch failed", "error", err)
		return w.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	w.metrics.RequestsConsumed.Add(float64(len(rawBatch)))
	w.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	results := make([]domain.SurveyResult, 0, len(rawBatch))
	for _, raw := range rawBatch {
		if ctx.Err() != nil {
			// Shutdown mid-batch: nothing is committed yet, the whole
			// batch is redelivered on restart.
			return false
		}
		results = append(results, w.process(ctx, raw))
	}

	if err := w.publisher.PublishResults(ctx, results); err != nil {
		w.logger.Error("publish results failed", "error", err, "batch_size", len(results))
		return w.backoffOrStop(ctx, backoff, maxBackoff)
	}
	w.metrics.ResultsPublished.Add(float64(len(results)))

	// Offsets commit only after the results are durably published, so a
	// crash between survey and publish redelivers rather than loses.
	for _, raw := range rawBatch {
		w.commitOffset(ctx, raw)
	}

	w.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	w.ready.Store(true)
	return true
}

// process turns one raw message into a terminal survey result, successful
// or not.
func (w *Worker) process(ctx context.Context, raw domain.RawMessage) domain.SurveyResult {
	req, err := domain.ParseSurveyRequest(raw)
	if err != nil {
		w.logger.Warn("invalid survey request",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		w.metrics.RequestErrors.Inc()
		w.metrics.SurveysTotal.WithLabelValues("region", "unknown", domain.KindOf(err).String()).Inc()
		return domain.NewSurveyResult(req.RequestID, nil, err)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	plantLabel := "unknown"
	if plant, plantErr := domain.ParsePlantType(req.PlantType); plantErr == nil {
		plantLabel = string(plant)
	}

	start := time.Now()
	report, err := w.runner.Survey(ctx, req)
	w.metrics.SurveyDuration.WithLabelValues("region").Observe(time.Since(start).Seconds())
	if err != nil {
		w.logger.Warn("survey failed",
			"error", err,
			"request_id", req.RequestID,
			"plant_type", plantLabel,
		)
		w.metrics.RequestErrors.Inc()
		w.metrics.SurveysTotal.WithLabelValues("region", plantLabel, domain.KindOf(err).String()).Inc()
		return domain.NewSurveyResult(req.RequestID, nil, err)
	}

	w.metrics.SurveysTotal.WithLabelValues("region", plantLabel, domain.OutcomeOK).Inc()
	return domain.NewSurveyResult(req.RequestID, report, nil)
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the worker should
// stop.
func (w *Worker) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (w *Worker) commitOffset(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		w.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
