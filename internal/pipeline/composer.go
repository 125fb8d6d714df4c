package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/renewgrid/sitescout/internal/domain"
)

// Dataset identifiers and bands in the remote engine's catalog.
const (
	vegetationCollection = "MODIS/061/MCD12Q1"
	vegetationBand       = "LC_Type1"

	era5LandCollection = "ECMWF/ERA5_LAND/DAILY_AGGR"
	windBandU          = "u_component_of_wind_10m"
	windBandV          = "v_component_of_wind_10m"
	solarFallbackBand  = "surface_net_solar_radiation_sum"

	solarCollection = "NASA/POWER/DAILY_AGGR"
	solarBand       = "ALLSKY_SFC_SW_DWN"

	lstCollection = "MODIS/061/MOD11A1"
	lstBand       = "LST_Day_1km"

	era5DailyCollection = "ECMWF/ERA5/DAILY"
)

// Vegetation layers fall back to this window when the requested one has no
// imagery. MCD12Q1 is an annual product, so short windows often miss it.
var vegetationFallback = domain.DateRange{Start: "2020-01-01", End: "2023-12-31"}

const (
	windSpeedFormula = "sqrt(pow(u, 2) + pow(v, 2))"
	scoreFormula     = "signal - vegetation * 0.05"
)

// composeScored builds the three-band survey composite for a plant type:
// the signal band, the vegetation band, and the derived score. The two
// source layers are independent, so they compose concurrently.
func (s *Surveyor) composeScored(ctx context.Context, plant domain.PlantType, window domain.DateRange, bounds domain.Boundary) (domain.LayerHandle, error) {
	var (
		wg         sync.WaitGroup
		signal     domain.LayerHandle
		vegetation domain.LayerHandle
		signalErr  error
		vegErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		signal, signalErr = s.signalLayer(ctx, plant, window, bounds)
	}()
	go func() {
		defer wg.Done()
		vegetation, vegErr = s.vegetationLayer(ctx, window, bounds)
	}()
	wg.Wait()

	if signalErr != nil {
		return domain.LayerHandle{}, signalErr
	}
	if vegErr != nil {
		return domain.LayerHandle{}, vegErr
	}

	return s.engine.CombineLayers(ctx, domain.CombineSpec{
		Layers: []domain.LayerHandle{signal, vegetation},
		Derived: &domain.DerivedBand{
			Formula: scoreFormula,
			Vars: map[string]string{
				"signal":     plant.SignalBand(),
				"vegetation": domain.BandVegetation,
			},
			Name: domain.BandScore,
		},
	})
}

// vegetationLayer composes the land-cover penalty layer. The engine query
// filters by date only, but the cache key includes the boundary so surveys
// of different regions never share a handle by accident.
func (s *Surveyor) vegetationLayer(ctx context.Context, window domain.DateRange, bounds domain.Boundary) (domain.LayerHandle, error) {
	src := domain.LayerSource{Collection: vegetationCollection, Dates: window, Band: vegetationBand}

	size, err := s.engine.CollectionSize(ctx, src)
	if err != nil {
		return domain.LayerHandle{}, err
	}
	if size == 0 {
		s.logger.Warn("no vegetation imagery in window, using fallback",
			"start", window.Start, "end", window.End,
			"fallback_start", vegetationFallback.Start, "fallback_end", vegetationFallback.End)
		src.Dates = vegetationFallback
	}

	return s.engine.ComposeLayer(ctx, domain.LayerSpec{
		Source:   src,
		Rename:   domain.BandVegetation,
		CacheKey: vegetationCacheKey(src.Dates, bounds),
	})
}

// vegetationCacheKey mirrors the memoization signature of vegetation
// lookups: both the date window and the boundary corners.
func vegetationCacheKey(window domain.DateRange, b domain.Boundary) string {
	return fmt.Sprintf("%s|%s|%.6f|%.6f|%.6f|%.6f",
		window.Start, window.End, b.West, b.South, b.East, b.North)
}

// signalLayer composes the plant-specific measurement layer for a region
// survey.
func (s *Surveyor) signalLayer(ctx context.Context, plant domain.PlantType, window domain.DateRange, bounds domain.Boundary) (domain.LayerHandle, error) {
	switch plant {
	case domain.PlantWind:
		return s.windLayer(ctx, window, bounds)
	case domain.PlantSolar:
		return s.solarLayer(ctx, window, bounds)
	default:
		return domain.LayerHandle{}, domain.Errorf(domain.KindInvalidInput, "compose", "no signal layer for plant type %s", plant)
	}
}

// windLayer derives 10m wind speed from the ERA5-Land u/v components,
// averaged over the window.
func (s *Surveyor) windLayer(ctx context.Context, window domain.DateRange, bounds domain.Boundary) (domain.LayerHandle, error) {
	src := domain.LayerSource{Collection: era5LandCollection, Dates: window, Bounds: &bounds}

	size, err := s.engine.CollectionSize(ctx, src)
	if err != nil {
		return domain.LayerHandle{}, err
	}
	if size == 0 {
		return domain.LayerHandle{}, domain.Errorf(domain.KindNoData, "compose",
			"no wind data available for the selected period")
	}

	return s.engine.ComposeLayer(ctx, domain.LayerSpec{
		Source: src,
		Expression: &domain.BandExpression{
			Formula: windSpeedFormula,
			Vars:    map[string]string{"u": windBandU, "v": windBandV},
		},
		Rename: domain.PlantWind.SignalBand(),
	})
}

// solarLayer prefers the NASA POWER irradiance dataset and falls back to the
// ERA5-Land net solar radiation band when POWER has no imagery or the
// compose fails outright.
func (s *Surveyor) solarLayer(ctx context.Context, window domain.DateRange, bounds domain.Boundary) (domain.LayerHandle, error) {
	primary := domain.LayerSource{Collection: solarCollection, Dates: window, Bounds: &bounds, Band: solarBand}

	size, err := s.engine.CollectionSize(ctx, primary)
	if err == nil && size > 0 {
		layer, composeErr := s.engine.ComposeLayer(ctx, domain.LayerSpec{
			Source: primary,
			Rename: domain.PlantSolar.SignalBand(),
		})
		if composeErr == nil {
			return layer, nil
		}
		s.logger.Warn("primary solar compose failed, trying reanalysis fallback", "error", composeErr)
	} else if err != nil {
		s.logger.Warn("primary solar dataset unavailable, trying reanalysis fallback", "error", err)
	}

	fallback := domain.LayerSource{Collection: era5LandCollection, Dates: window, Bounds: &bounds, Band: solarFallbackBand}
	size, err = s.engine.CollectionSize(ctx, fallback)
	if err != nil {
		return domain.LayerHandle{}, err
	}
	if size == 0 {
		return domain.LayerHandle{}, domain.Errorf(domain.KindNoData, "compose",
			"no solar data available for the selected period")
	}

	return s.engine.ComposeLayer(ctx, domain.LayerSpec{
		Source: fallback,
		Rename: domain.PlantSolar.SignalBand(),
	})
}

// pointLayerSpec describes the single-band composite a point estimate
// reduces. Point estimates keep the legacy behavior: solar and thermal both
// read daytime land surface temperature, resampled bicubically; wind reads
// daily ERA5 with the speed expression applied per image.
func pointLayerSpec(plant domain.PlantType, window domain.DateRange) domain.LayerSpec {
	if plant == domain.PlantWind {
		return domain.LayerSpec{
			Source: domain.LayerSource{Collection: era5DailyCollection, Dates: window},
			Expression: &domain.BandExpression{
				Formula: windSpeedFormula,
				Vars:    map[string]string{"u": windBandU, "v": windBandV},
			},
			PerImage: true,
			Rename:   domain.PlantWind.SignalBand(),
		}
	}
	return domain.LayerSpec{
		Source:   domain.LayerSource{Collection: lstCollection, Dates: window, Band: lstBand},
		Rename:   plant.SignalBand(),
		Resample: "bicubic",
	}
}
