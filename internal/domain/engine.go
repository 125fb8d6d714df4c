package domain

import "context"

// LayerHandle references a composite raster held by the engine. Handles are
// opaque and only valid against the engine that produced them.
type LayerHandle struct {
	ID    string
	Bands []string
}

// LayerSource selects images from one dataset.
type LayerSource struct {
	Collection string    // dataset identifier, e.g. "MODIS/061/MCD12Q1"
	Dates      DateRange // normalized ISO dates
	Bounds     *Boundary // nil filters by date only
	Band       string    // band selected before reduction; empty keeps all bands
}

// BandExpression derives a band from a source's raw bands.
type BandExpression struct {
	Formula string            // e.g. "sqrt(pow(u, 2) + pow(v, 2))"
	Vars    map[string]string // formula variable -> source band name
}

// LayerSpec describes a server-side composite: matching images are
// mean-reduced, optionally run through an expression, renamed, and
// optionally resampled.
type LayerSpec struct {
	Source     LayerSource
	Expression *BandExpression // applied after the mean unless PerImage is set
	PerImage   bool            // evaluate the expression per image, before the mean
	Rename     string          // name of the resulting band
	Resample   string          // resampling method, e.g. "bicubic"; empty for none

	// CacheKey marks the composite reusable: engines that cache layers may
	// serve a previous handle under the same key. Empty disables caching.
	CacheKey string
}

// DerivedBand is an extra band computed from a combined layer's bands.
type DerivedBand struct {
	Formula string            // e.g. "signal - vegetation * 0.05"
	Vars    map[string]string // formula variable -> band name in the combined layer
	Name    string
}

// CombineSpec merges the bands of several composites into one layer,
// optionally appending a derived band.
type CombineSpec struct {
	Layers  []LayerHandle // bands concatenate in order
	Derived *DerivedBand
}

// SampleSpec parametrizes a random sampling call against a layer.
type SampleSpec struct {
	Region    Boundary
	Scale     int   // pixel resolution in meters
	NumPixels int   // sample budget; the engine may return fewer
	Seed      int64 // sampling is deterministic per seed
}

// RasterEngine is the remote geospatial provider. Raster algebra,
// resampling, and reduction all happen server-side; implementations only
// move descriptions out and numbers back.
type RasterEngine interface {
	// CollectionSize reports how many images match the source filters.
	CollectionSize(ctx context.Context, src LayerSource) (int, error)

	// ComposeLayer builds a composite raster and returns its handle.
	ComposeLayer(ctx context.Context, spec LayerSpec) (LayerHandle, error)

	// CombineLayers merges composites into a multi-band layer.
	CombineLayers(ctx context.Context, spec CombineSpec) (LayerHandle, error)

	// SampleRegion draws random sample points with per-band values.
	// The engine controls point order; it is stable for a given seed.
	SampleRegion(ctx context.Context, layer LayerHandle, spec SampleSpec) ([]SamplePoint, error)

	// ReducePoint mean-reduces the layer at a single location and returns
	// the per-band values. Bands with no data at the point are absent.
	ReducePoint(ctx context.Context, layer LayerHandle, lon, lat float64, scale int) (map[string]float64, error)

	// Ping evaluates a trivial expression to confirm the engine is
	// reachable and authenticated.
	Ping(ctx context.Context) error
}
