package pipeline

import (
	"context"
	"sync"

	"github.com/renewgrid/sitescout/internal/domain"
)

// Sampling pass parameters. Seeds are fixed so identical requests draw
// identical candidate pools from the engine.
const (
	primarySeed  = 42
	centerSeed   = 123
	edgeSeedBase = 200

	centerShrink = 0.3
	edgeFraction = 0.15

	// Edge strips only pay off on large regions; below this area the
	// primary and center passes already cover the boundary densely.
	edgeAreaKm2 = 2000
)

// samplePasses draws the candidate pool for a survey. The primary pass is
// mandatory: an engine error aborts the survey and an empty result means the
// region has no usable pixels at all. Every later pass is best-effort; its
// failure only narrows coverage. Refinement passes run concurrently and
// merge in fixed pass order so the pool is deterministic.
func (s *Surveyor) samplePasses(ctx context.Context, layer domain.LayerHandle, bounds domain.Boundary, plan domain.SamplingPlan) (domain.SamplePool, error) {
	primary, err := s.engine.SampleRegion(ctx, layer, domain.SampleSpec{
		Region:    bounds,
		Scale:     plan.ScaleMeters,
		NumPixels: plan.SampleCount,
		Seed:      primarySeed,
	})
	if err != nil {
		return domain.SamplePool{}, err
	}
	if len(primary) == 0 {
		return domain.SamplePool{}, domain.Errorf(domain.KindNoValidSamples, "sample", "no valid samples found")
	}

	specs := refinementSpecs(bounds, plan)
	results := make([][]domain.SamplePoint, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec domain.SampleSpec) {
			defer wg.Done()
			points, err := s.engine.SampleRegion(ctx, layer, spec)
			if err != nil {
				s.logger.Warn("refinement pass failed, continuing without it",
					"seed", spec.Seed, "error", err)
				return
			}
			results[i] = points
		}(i, spec)
	}
	wg.Wait()

	pool := domain.SamplePool{Points: primary, PassesCompleted: 1}
	for _, points := range results {
		if len(points) == 0 {
			continue
		}
		pool.Points = append(pool.Points, points...)
		pool.PassesCompleted++
	}
	return pool, nil
}

// refinementSpecs lists the optional passes a plan calls for: a denser
// center pass, and on large regions two edge strips along the west and
// north boundaries.
func refinementSpecs(bounds domain.Boundary, plan domain.SamplingPlan) []domain.SampleSpec {
	var specs []domain.SampleSpec

	if plan.Passes >= 2 {
		specs = append(specs, domain.SampleSpec{
			Region:    bounds.Shrink(centerShrink),
			Scale:     plan.ScaleMeters / 2,
			NumPixels: plan.SampleCount / 3,
			Seed:      centerSeed,
		})
	}

	if plan.Passes >= 3 && plan.AreaKm2 > edgeAreaKm2 {
		for i, strip := range bounds.EdgeStrips(edgeFraction) {
			specs = append(specs, domain.SampleSpec{
				Region:    strip,
				Scale:     plan.ScaleMeters,
				NumPixels: plan.SampleCount / 10,
				Seed:      int64(edgeSeedBase + i),
			})
		}
	}

	return specs
}
