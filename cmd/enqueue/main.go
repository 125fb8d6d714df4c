// Command enqueue publishes survey requests from a JSON file to the request
// topic, for the survey worker to consume. Requests without an ID get one
// assigned so results can be correlated.
//
// Usage:
//
//	go run ./cmd/enqueue -file requests.json
//
// The file holds a JSON array of survey requests:
//
//	[
//	  {
//	    "boundary": {"lonMin": 74.0, "latMin": 11.5, "lonMax": 78.5, "latMax": 15.5},
//	    "time": {"start": "2023-01-01", "end": "2023-06-01"},
//	    "plant_type": "wind"
//	  }
//	]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	kafkaadapter "github.com/renewgrid/sitescout/internal/adapter/kafka"
	"github.com/renewgrid/sitescout/internal/config"
	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	file := flag.String("file", "", "path to a JSON array of survey requests")
	timeout := flag.Duration("timeout", 30*time.Second, "publish timeout")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	var requests []domain.SurveyRequest
	if err := json.Unmarshal(data, &requests); err != nil {
		return fmt.Errorf("parsing %s: %w", *file, err)
	}
	if len(requests) == 0 {
		return fmt.Errorf("%s contains no requests", *file)
	}

	for i := range requests {
		if requests[i].RequestID == "" {
			requests[i].RequestID = uuid.NewString()
		}
	}

	writer := kafkaadapter.NewRequestWriter(cfg, logger)
	defer writer.Close() //nolint:errcheck // close error is uninteresting on exit

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := writer.PublishRequests(ctx, requests); err != nil {
		return fmt.Errorf("publishing to %s: %w", cfg.KafkaRequestTopic, err)
	}

	log.Printf("published %d requests to %s", len(requests), cfg.KafkaRequestTopic)
	for _, req := range requests {
		log.Printf("  %s  %s", req.RequestID, req.PlantType)
	}
	return nil
}
