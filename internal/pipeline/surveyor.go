package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
)

// pointScale is the reduction resolution for legacy point estimates, in
// meters.
const pointScale = 1000

// Surveyor runs site surveys against a raster engine: validate, plan,
// compose, sample, select, assemble. It is safe for concurrent use; all
// state lives in the engine and its cache.
type Surveyor struct {
	engine  domain.RasterEngine
	logger  *slog.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

// NewSurveyor creates a Surveyor. timeout bounds one whole survey; zero
// disables the deadline.
func NewSurveyor(engine domain.RasterEngine, logger *slog.Logger, metrics *observability.Metrics, timeout time.Duration) *Surveyor {
	return &Surveyor{
		engine:  engine,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
	}
}

// Survey finds the optimal plant location inside a boundary. The request is
// validated and normalized first, so no engine call happens for malformed
// input.
func (s *Surveyor) Survey(ctx context.Context, req domain.SurveyRequest) (*domain.SurveyReport, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := domain.Clock().Now()

	bounds, swapped, err := domain.NormalizeBoundary(req.Boundary)
	if err != nil {
		return nil, err
	}
	if swapped {
		s.logger.Warn("boundary corners swapped, lonMin exceeded lonMax",
			"request_id", req.RequestID, "west", bounds.West, "east", bounds.East)
	}

	window, err := domain.NormalizeDateRange(req.Window)
	if err != nil {
		return nil, err
	}

	plant, err := domain.ParsePlantType(req.PlantType)
	if err != nil {
		return nil, err
	}
	if plant == domain.PlantThermal {
		return nil, domain.Errorf(domain.KindInvalidInput, "validate",
			"plant type thermal is not supported for region surveys")
	}

	plan := domain.PlanSampling(bounds)
	s.logger.Info("survey planned",
		"request_id", req.RequestID,
		"plant_type", plant,
		"area_km2", domain.Round2(plan.AreaKm2),
		"scale_m", plan.ScaleMeters,
		"samples", plan.SampleCount,
		"passes", plan.Passes,
	)

	layer, err := s.composeScored(ctx, plant, window, bounds)
	if err != nil {
		return nil, err
	}

	pool, err := s.samplePasses(ctx, layer, bounds, plan)
	if err != nil {
		return nil, err
	}
	s.metrics.SamplePoolSize.Observe(float64(len(pool.Points)))

	sel, err := domain.SelectOptimal(pool.Points, bounds)
	if err != nil {
		return nil, err
	}

	report := domain.AssembleReport(plant, window, bounds, plan, pool, sel, domain.Clock().Since(start))
	s.logger.Info("survey complete",
		"request_id", req.RequestID,
		"plant_type", plant,
		"lat", report.OptimalPoint.Lat,
		"lon", report.OptimalPoint.Lon,
		"total_samples", report.Stats.TotalSamples,
		"passes_completed", report.Stats.PassesCompleted,
		"elapsed_s", report.Stats.ProcessingTimeSeconds,
	)
	return &report, nil
}

// EstimatePoint runs a legacy single-point estimate: one composite, one
// reduction, no sampling or scoring.
func (s *Surveyor) EstimatePoint(ctx context.Context, q domain.PointQuery) (domain.PointEstimate, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	plant, err := domain.ParsePlantType(q.PlantType)
	if err != nil {
		return domain.PointEstimate{}, err
	}
	if err := domain.ValidatePoint(q.Lat, q.Lon); err != nil {
		return domain.PointEstimate{}, err
	}
	window, err := domain.NormalizeDateRange(q.Window)
	if err != nil {
		return domain.PointEstimate{}, err
	}

	spec := pointLayerSpec(plant, window)

	size, err := s.engine.CollectionSize(ctx, spec.Source)
	if err != nil {
		return domain.PointEstimate{}, err
	}
	if size == 0 {
		return domain.PointEstimate{}, domain.Errorf(domain.KindNoData, "compose",
			"no data available for the selected period")
	}

	layer, err := s.engine.ComposeLayer(ctx, spec)
	if err != nil {
		return domain.PointEstimate{}, err
	}

	values, err := s.engine.ReducePoint(ctx, layer, q.Lon, q.Lat, pointScale)
	if err != nil {
		return domain.PointEstimate{}, err
	}

	est := domain.PointEstimate{Lat: q.Lat, Lon: q.Lon, Plant: plant}
	if v, ok := values[plant.SignalBand()]; ok {
		est.Value = &v
	}
	return est, nil
}
