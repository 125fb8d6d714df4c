//go:build earthengine

package earthengine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
)

// These tests hit a real raster engine deployment and require ENGINE_BASE_URL
// (plus ENGINE_TOKEN for authenticated deployments).
// Run with: go test -tags=earthengine ./internal/adapter/earthengine/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	baseURL := os.Getenv("ENGINE_BASE_URL")
	if baseURL == "" {
		t.Fatal("ENGINE_BASE_URL must be set to run smoke tests")
	}
	return NewClient(Config{
		BaseURL:    baseURL,
		Project:    envOr("ENGINE_PROJECT", "sitescout-dev"),
		Token:      os.Getenv("ENGINE_TOKEN"),
		Timeout:    30 * time.Second,
		MaxRetries: 1,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestSmoke_Ping(t *testing.T) {
	c := smokeClient(t)
	require.NoError(t, c.Ping(context.Background()))
}

func TestSmoke_CollectionSize(t *testing.T) {
	c := smokeClient(t)

	n, err := c.CollectionSize(context.Background(), domain.LayerSource{
		Collection: "MODIS/061/MCD12Q1",
		Dates:      domain.DateRange{Start: "2020-01-01", End: "2023-12-31"},
	})
	require.NoError(t, err)
	assert.Greater(t, n, 0, "MCD12Q1 publishes at least one image per year")
}

func TestSmoke_ComposeAndSample(t *testing.T) {
	c := smokeClient(t)
	ctx := context.Background()

	// Central Texas, small enough to sample quickly.
	bounds := domain.Boundary{West: -98.0, South: 30.0, East: -97.5, North: 30.5}

	layer, err := c.ComposeLayer(ctx, domain.LayerSpec{
		Source: domain.LayerSource{
			Collection: "ECMWF/ERA5_LAND/DAILY_AGGR",
			Dates:      domain.DateRange{Start: "2023-01-01", End: "2023-01-31"},
			Bounds:     &bounds,
		},
		Expression: &domain.BandExpression{
			Formula: "sqrt(pow(u, 2) + pow(v, 2))",
			Vars: map[string]string{
				"u": "u_component_of_wind_10m",
				"v": "v_component_of_wind_10m",
			},
		},
		Rename: "wind_speed",
	})
	require.NoError(t, err)
	require.NotEmpty(t, layer.ID)

	points, err := c.SampleRegion(ctx, layer, domain.SampleSpec{
		Region:    bounds,
		Scale:     1000,
		NumPixels: 100,
		Seed:      42,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, points)
	for _, p := range points {
		assert.True(t, bounds.Contains(p.Lon, p.Lat), "sampled point outside requested region")
	}
}
