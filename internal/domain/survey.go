package domain

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// RawMessage represents an unprocessed survey request from the source topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// SurveyRequest is a region survey as submitted by callers, before any
// validation or normalization.
type SurveyRequest struct {
	RequestID string          `json:"request_id,omitempty"`
	Boundary  BoundaryCorners `json:"boundary"`
	Window    DateRange       `json:"time"`
	PlantType string          `json:"plant_type"`
}

// ParseSurveyRequest deserializes a RawMessage's value into a SurveyRequest.
// Absent top-level fields are reported together so a caller can fix the
// payload in one round trip. On failure the request ID, when present, is
// still returned so the error result can be correlated.
func ParseSurveyRequest(raw RawMessage) (SurveyRequest, error) {
	var body struct {
		RequestID string           `json:"request_id"`
		Boundary  *BoundaryCorners `json:"boundary"`
		Window    *DateRange       `json:"time"`
		PlantType string           `json:"plant_type"`
	}
	if err := json.Unmarshal(raw.Value, &body); err != nil {
		return SurveyRequest{}, Errorf(KindInvalidInput, "parse", "no JSON data received")
	}

	var missing []string
	if body.Boundary == nil {
		missing = append(missing, "boundary")
	}
	if body.Window == nil {
		missing = append(missing, "time")
	}
	if body.PlantType == "" {
		missing = append(missing, "plant_type")
	}
	if len(missing) > 0 {
		return SurveyRequest{RequestID: body.RequestID},
			Errorf(KindInvalidInput, "parse", "missing required fields: %s", strings.Join(missing, ", "))
	}

	return SurveyRequest{
		RequestID: body.RequestID,
		Boundary:  *body.Boundary,
		Window:    *body.Window,
		PlantType: body.PlantType,
	}, nil
}

// OptimalPoint is the winning location of a survey.
type OptimalPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PerformanceStats describes how much work a survey did.
type PerformanceStats struct {
	TotalSamples          int     `json:"total_samples"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	ResolutionMeters      int     `json:"resolution_meters"`
	AreaKm2               float64 `json:"area_km2"`
	PassesCompleted       int     `json:"passes_completed"`
	CandidatesEvaluated   int     `json:"candidates_evaluated"`
}

// SurveyReport is the full result of a successful survey. Band values are
// pointers so a band the provider had no data for serializes as null rather
// than a misleading zero.
type SurveyReport struct {
	OptimalPoint OptimalPoint     `json:"optimal_point"`
	Value        *float64         `json:"value"`
	Vegetation   *float64         `json:"vegetation"`
	Score        *float64         `json:"score"`
	PlantType    PlantType        `json:"plant_type"`
	Stats        PerformanceStats `json:"performance_stats"`
	Window       DateRange        `json:"date_range"`
	Boundary     Boundary         `json:"boundary"`
}

// SurveyResult is the terminal record for one request, successful or not,
// destined for the result topic.
type SurveyResult struct {
	RequestID   string        `json:"request_id,omitempty"`
	Outcome     string        `json:"outcome"` // "ok" or a failure kind
	Report      *SurveyReport `json:"report,omitempty"`
	Error       string        `json:"error,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// OutcomeOK marks a result carrying a report.
const OutcomeOK = "ok"

// NewSurveyResult wraps a survey's outcome for the result topic. A non-nil
// err wins over the report; its kind becomes the outcome label.
func NewSurveyResult(requestID string, report *SurveyReport, err error) SurveyResult {
	res := SurveyResult{
		RequestID:   requestID,
		ProcessedAt: clock.Now().UTC(),
	}
	if err != nil {
		res.Outcome = KindOf(err).String()
		res.Error = err.Error()
		return res
	}
	res.Outcome = OutcomeOK
	res.Report = report
	return res
}

// AssembleReport builds the report for a completed survey.
func AssembleReport(plant PlantType, window DateRange, bounds Boundary, plan SamplingPlan, pool SamplePool, sel Selection, elapsed time.Duration) SurveyReport {
	return SurveyReport{
		OptimalPoint: OptimalPoint{Lat: sel.Point.Lat, Lon: sel.Point.Lon},
		Value:        bandValue(sel.Point, plant.SignalBand()),
		Vegetation:   bandValue(sel.Point, BandVegetation),
		Score:        bandValue(sel.Point, BandScore),
		PlantType:    plant,
		Stats: PerformanceStats{
			TotalSamples:          len(pool.Points),
			ProcessingTimeSeconds: Round2(elapsed.Seconds()),
			ResolutionMeters:      plan.ScaleMeters,
			AreaKm2:               Round2(plan.AreaKm2),
			PassesCompleted:       pool.PassesCompleted,
			CandidatesEvaluated:   sel.CandidatesEvaluated,
		},
		Window:   window,
		Boundary: bounds,
	}
}

// bandValue extracts a named band from a sample point, nil when absent.
func bandValue(p SamplePoint, band string) *float64 {
	v, ok := p.Properties[band]
	if !ok {
		return nil
	}
	return &v
}

// Round2 rounds to two decimal places, as reported in survey statistics.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
