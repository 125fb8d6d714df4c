package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/renewgrid/sitescout/internal/domain"
)

// maxBodyBytes caps request bodies; survey payloads are a few hundred bytes.
const maxBodyBytes = 1 << 20

// publishTimeout bounds the best-effort result mirror to Kafka.
const publishTimeout = 5 * time.Second

var validate = newValidator()

// newValidator builds a validator that reports JSON field names, so a
// missing PowerType surfaces as "power_type".
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// handleSurvey serves POST /get_optimal_location: the region survey.
// Errors map to status codes by kind; the legacy endpoint below does not.
func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	req, err := domain.ParseSurveyRequest(domain.RawMessage{Value: body})
	if err != nil {
		s.countSurvey("region", req.PlantType, err)
		s.writeError(w, err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	start := time.Now()
	report, err := s.service.Survey(r.Context(), req)
	s.metrics.SurveyDuration.WithLabelValues("region").Observe(time.Since(start).Seconds())
	s.countSurvey("region", req.PlantType, err)

	s.publishResult(domain.NewSurveyResult(req.RequestID, report, err))

	if err != nil {
		s.logger.Warn("survey failed", "request_id", req.RequestID, "plant_type", req.PlantType, "error", err)
		s.writeError(w, err)
		return
	}

	s.engineReached.Store(true)
	writeJSON(w, http.StatusOK, report)
}

// Legacy point request wire format.
type pointLocationDTO struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lon *float64 `json:"lon" validate:"required"`
}

type pointTimeDTO struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

type pointRequestDTO struct {
	PowerType string            `json:"power_type" validate:"required"`
	Location  *pointLocationDTO `json:"location" validate:"required"`
	Time      *pointTimeDTO     `json:"time" validate:"required"`
}

// handleLegacyPoint serves POST /get_optimal_locations. The original
// service always answered 200 and signalled failure through an "error"
// field; existing clients key on that, so the contract is preserved.
func (s *Server) handleLegacyPoint(w http.ResponseWriter, r *http.Request) {
	var dto pointRequestDTO
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&dto); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": "no JSON data received"})
		return
	}

	if err := validate.Struct(dto); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": missingFieldsMessage(err)})
		return
	}

	start := time.Now()
	est, err := s.service.EstimatePoint(r.Context(), domain.PointQuery{
		PlantType: dto.PowerType,
		Lat:       *dto.Location.Lat,
		Lon:       *dto.Location.Lon,
		Window:    domain.DateRange{Start: dto.Time.Start, End: dto.Time.End},
	})
	s.metrics.SurveyDuration.WithLabelValues("point").Observe(time.Since(start).Seconds())
	s.countSurvey("point", dto.PowerType, err)

	if err != nil {
		s.logger.Warn("point estimate failed", "power_type", dto.PowerType, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	s.engineReached.Store(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"lat":                  est.Lat,
		"lon":                  est.Lon,
		est.Plant.SignalBand(): est.Value,
	})
}

// handleEngineHealth serves GET /health: a live engine probe with round-trip
// timing, matching the legacy health contract.
func (s *Server) handleEngineHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.engine.Ping(ctx); err != nil {
		s.logger.Warn("engine health probe failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	s.engineReached.Store(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"earth_engine":     "connected",
		"response_time_ms": domain.Round2(time.Since(start).Seconds() * 1000),
	})
}

// countSurvey records one survey outcome. A nil err counts as ok.
func (s *Server) countSurvey(mode, plantType string, err error) {
	plantLabel := "unknown"
	if plant, plantErr := domain.ParsePlantType(plantType); plantErr == nil {
		plantLabel = string(plant)
	}
	outcome := domain.OutcomeOK
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	s.metrics.SurveysTotal.WithLabelValues(mode, plantLabel, outcome).Inc()
}

// publishResult mirrors a result to the result topic, best-effort: a broker
// outage must not fail the HTTP request.
func (s *Server) publishResult(result domain.SurveyResult) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.events.PublishResults(ctx, []domain.SurveyResult{result}); err != nil {
		s.logger.Warn("result publication failed", "request_id", result.RequestID, "error", err)
	}
}

// writeError maps a tagged error to its transport status code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForKind(domain.KindOf(err)), map[string]string{"error": err.Error()})
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindNoData, domain.KindNoValidSamples, domain.KindNoValidLocation:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// missingFieldsMessage flattens validation failures into the legacy error
// string listing every missing field at once.
func missingFieldsMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "missing required fields: " + strings.Join(fields, ", ")
}
