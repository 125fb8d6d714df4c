package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/renewgrid/sitescout/internal/config"
	"github.com/renewgrid/sitescout/internal/domain"
)

// Writer produces survey results to the result topic.
// It implements pipeline.ResultPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured result topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishResults serializes and publishes survey results in a single
// WriteMessages call for efficiency.
func (w *Writer) PublishResults(ctx context.Context, results []domain.SurveyResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeResult(results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeResult marshals a SurveyResult into a Kafka message keyed by
// request ID. Failure results have no report and carry no plant_type header.
func serializeResult(result domain.SurveyResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize survey result: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "outcome", Value: []byte(result.Outcome)},
		{Key: "processed_at", Value: []byte(result.ProcessedAt.Format(time.RFC3339))},
	}
	if result.Report != nil {
		headers = append(headers, kafkago.Header{Key: "plant_type", Value: []byte(result.Report.PlantType)})
	}
	return kafkago.Message{
		Key:     []byte(result.RequestID),
		Value:   data,
		Headers: headers,
	}, nil
}

// RequestWriter publishes survey requests to the request topic. Used by the
// enqueue tool; the API service never writes requests.
type RequestWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewRequestWriter creates a Kafka producer for the configured request topic.
func NewRequestWriter(cfg *config.Config, logger *slog.Logger) *RequestWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaRequestTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &RequestWriter{writer: w, logger: logger}
}

// PublishRequests serializes and publishes survey requests keyed by request
// ID.
func (w *RequestWriter) PublishRequests(ctx context.Context, reqs []domain.SurveyRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(reqs))
	for i, req := range reqs {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("serialize survey request: %w", err)
		}
		msgs[i] = kafkago.Message{Key: []byte(req.RequestID), Value: data}
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *RequestWriter) Close() error {
	return w.writer.Close()
}
