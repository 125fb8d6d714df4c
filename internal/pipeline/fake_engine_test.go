package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/renewgrid/sitescout/internal/domain"
)

// fakeEngine scripts a domain.RasterEngine for surveyor tests: collection
// sizes and per-seed sample sets are configured up front, and every call is
// recorded for assertions. Safe for the surveyor's concurrent passes.
type fakeEngine struct {
	mu sync.Mutex

	sizes      map[string]int // collection -> image count; absent means 1
	sizeErrs   map[string]error
	composeErr map[string]error // collection -> compose failure
	samples    map[int64][]domain.SamplePoint
	sampleErrs map[int64]error
	reduced    map[string]float64
	pingErr    error

	composed []domain.LayerSpec
	combined []domain.CombineSpec
	sampled  []domain.SampleSpec
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		sizes:      map[string]int{},
		sizeErrs:   map[string]error{},
		composeErr: map[string]error{},
		samples:    map[int64][]domain.SamplePoint{},
		sampleErrs: map[int64]error{},
		reduced:    map[string]float64{},
	}
}

func (f *fakeEngine) CollectionSize(_ context.Context, src domain.LayerSource) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.sizeErrs[src.Collection]; ok {
		return 0, err
	}
	if n, ok := f.sizes[src.Collection]; ok {
		return n, nil
	}
	return 1, nil
}

func (f *fakeEngine) ComposeLayer(_ context.Context, spec domain.LayerSpec) (domain.LayerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.composeErr[spec.Source.Collection]; ok {
		return domain.LayerHandle{}, err
	}
	f.composed = append(f.composed, spec)
	return domain.LayerHandle{ID: "layer-" + spec.Rename, Bands: []string{spec.Rename}}, nil
}

func (f *fakeEngine) CombineLayers(_ context.Context, spec domain.CombineSpec) (domain.LayerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.combined = append(f.combined, spec)
	bands := make([]string, 0, len(spec.Layers)+1)
	for _, l := range spec.Layers {
		bands = append(bands, l.Bands...)
	}
	if spec.Derived != nil {
		bands = append(bands, spec.Derived.Name)
	}
	return domain.LayerHandle{ID: "composite", Bands: bands}, nil
}

func (f *fakeEngine) SampleRegion(_ context.Context, _ domain.LayerHandle, spec domain.SampleSpec) ([]domain.SamplePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sampled = append(f.sampled, spec)
	if err, ok := f.sampleErrs[spec.Seed]; ok {
		return nil, err
	}
	return f.samples[spec.Seed], nil
}

func (f *fakeEngine) ReducePoint(_ context.Context, _ domain.LayerHandle, _, _ float64, _ int) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reduced, nil
}

func (f *fakeEngine) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeEngine) sampleCalls() []domain.SampleSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SampleSpec(nil), f.sampled...)
}

// sampleCallBySeed finds a recorded sample call by its seed. Refinement
// passes run concurrently, so their recording order is not stable.
func (f *fakeEngine) sampleCallBySeed(seed int64) (domain.SampleSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, spec := range f.sampled {
		if spec.Seed == seed {
			return spec, true
		}
	}
	return domain.SampleSpec{}, false
}

func (f *fakeEngine) composeCalls() []domain.LayerSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LayerSpec(nil), f.composed...)
}

// point builds a sample with the standard wind survey bands.
func point(lon, lat, signal, vegetation, score float64) domain.SamplePoint {
	return domain.SamplePoint{
		Lon: lon,
		Lat: lat,
		Properties: map[string]float64{
			"wind_speed":          signal,
			domain.BandVegetation: vegetation,
			domain.BandScore:      score,
		},
	}
}

func points(n int, lon, lat float64) []domain.SamplePoint {
	pts := make([]domain.SamplePoint, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, point(lon+float64(i)*0.01, lat, 5+float64(i), 1, 4.95+float64(i)))
	}
	return pts
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
