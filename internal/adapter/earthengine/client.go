package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
)

// Retry backoff bounds for transient engine failures.
const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errEngine      = errors.New("engine error") // 4xx, not retried
	errCircuitOpen = errors.New("circuit open")
)

// Config holds the settings for a raster engine client.
type Config struct {
	BaseURL    string
	Project    string
	Token      string // empty disables the Authorization header (local emulators)
	Timeout    time.Duration
	MaxRetries int
}

// Client implements domain.RasterEngine against the raster engine REST API.
type Client struct {
	token      string
	project    string
	httpClient *http.Client
	baseURL    string
	maxRetries int
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a raster engine client.
func NewClient(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:   cfg.Token,
		project: cfg.Project,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "raster-engine",
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		logger:  logger,
		metrics: metrics,
	}
}

// CollectionSize reports how many images match the source filters.
func (c *Client) CollectionSize(ctx context.Context, src domain.LayerSource) (int, error) {
	var out sizeResponse
	path := fmt.Sprintf("/projects/%s/collections:size", c.project)
	if err := c.call(ctx, "collection_size", path, sizeRequest{Source: newSourcePayload(src)}, &out); err != nil {
		return 0, domain.NewError(domain.KindUpstream, "collection_size", err)
	}
	return out.Count, nil
}

// ComposeLayer builds a composite raster and returns its handle.
func (c *Client) ComposeLayer(ctx context.Context, spec domain.LayerSpec) (domain.LayerHandle, error) {
	body := composeRequest{
		Source:   newSourcePayload(spec.Source),
		PerImage: spec.PerImage,
		Rename:   spec.Rename,
		Resample: spec.Resample,
	}
	if spec.Expression != nil {
		body.Expression = &expressionPayload{Formula: spec.Expression.Formula, Vars: spec.Expression.Vars}
	}

	var out layerResponse
	path := fmt.Sprintf("/projects/%s/layers:compose", c.project)
	if err := c.call(ctx, "compose_layer", path, body, &out); err != nil {
		return domain.LayerHandle{}, domain.NewError(domain.KindUpstream, "compose_layer", err)
	}
	return domain.LayerHandle{ID: out.LayerID, Bands: out.Bands}, nil
}

// CombineLayers merges composites into a multi-band layer.
func (c *Client) CombineLayers(ctx context.Context, spec domain.CombineSpec) (domain.LayerHandle, error) {
	body := combineRequest{Layers: make([]string, 0, len(spec.Layers))}
	for _, l := range spec.Layers {
		body.Layers = append(body.Layers, l.ID)
	}
	if spec.Derived != nil {
		body.Derived = &derivedPayload{
			Formula: spec.Derived.Formula,
			Vars:    spec.Derived.Vars,
			Name:    spec.Derived.Name,
		}
	}

	var out layerResponse
	path := fmt.Sprintf("/projects/%s/layers:combine", c.project)
	if err := c.call(ctx, "combine_layers", path, body, &out); err != nil {
		return domain.LayerHandle{}, domain.NewError(domain.KindUpstream, "combine_layers", err)
	}
	return domain.LayerHandle{ID: out.LayerID, Bands: out.Bands}, nil
}

// SampleRegion draws random sample points with per-band values.
func (c *Client) SampleRegion(ctx context.Context, layer domain.LayerHandle, spec domain.SampleSpec) ([]domain.SamplePoint, error) {
	body := sampleRequest{
		Region:     newBoundsPayload(spec.Region),
		Scale:      spec.Scale,
		NumPixels:  spec.NumPixels,
		Seed:       spec.Seed,
		Geometries: true,
	}

	var out sampleResponse
	path := fmt.Sprintf("/projects/%s/layers/%s:sample", c.project, layer.ID)
	if err := c.call(ctx, "sample_region", path, body, &out); err != nil {
		return nil, domain.NewError(domain.KindUpstream, "sample_region", err)
	}

	points := make([]domain.SamplePoint, 0, len(out.Points))
	for _, p := range out.Points {
		points = append(points, domain.SamplePoint{Lon: p.Lon, Lat: p.Lat, Properties: p.Properties})
	}
	return points, nil
}

// ReducePoint mean-reduces the layer at a single location.
func (c *Client) ReducePoint(ctx context.Context, layer domain.LayerHandle, lon, lat float64, scale int) (map[string]float64, error) {
	body := reduceRequest{Lon: lon, Lat: lat, Scale: scale, Reducer: "mean"}

	var out reduceResponse
	path := fmt.Sprintf("/projects/%s/layers/%s:reduce", c.project, layer.ID)
	if err := c.call(ctx, "reduce_point", path, body, &out); err != nil {
		return nil, domain.NewError(domain.KindUpstream, "reduce_point", err)
	}
	return out.Values, nil
}

// Ping evaluates a trivial expression to confirm the engine is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var out computeResponse
	path := fmt.Sprintf("/projects/%s/value:compute", c.project)
	if err := c.call(ctx, "ping", path, computeRequest{Expression: "1"}, &out); err != nil {
		return domain.NewError(domain.KindUpstream, "ping", err)
	}
	return nil
}

// call marshals body, posts it, and decodes the response into out,
// recording per-operation metrics.
func (c *Client) call(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	start := time.Now()
	resp, err := c.doRequest(ctx, c.baseURL+path, payload)
	c.metrics.EngineRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if errors.Is(err, errCircuitOpen) {
			outcome = "rejected"
		}
		c.metrics.EngineRequests.WithLabelValues(op, outcome).Inc()
		c.logger.Warn("engine request failed", "op", op, "error", err)
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.EngineRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("decode response: %w", err)
	}
	c.metrics.EngineRequests.WithLabelValues(op, "success").Inc()
	return nil
}

// doRequest executes the HTTP call with retries, exponential backoff, and a
// circuit breaker. Rate limits, 5xx responses, and transport errors retry;
// engine 4xx responses and an open circuit fail immediately.
func (c *Client) doRequest(ctx context.Context, fullURL string, payload []byte) (*http.Response, error) {
	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
			if reqErr != nil {
				return nil, fmt.Errorf("create request: %w", reqErr)
			}
			req.Header.Set("Content-Type", "application/json")
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}

			resp, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, doErr
			}

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, fmt.Errorf("%w: %s", errRateLimited, drain(resp))
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: status %d: %s", errServerError, resp.StatusCode, drain(resp))
			case resp.StatusCode != http.StatusOK:
				return nil, fmt.Errorf("%w: status %d: %s", errEngine, resp.StatusCode, drain(resp))
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if errors.Is(err, errEngine) || attempt >= c.maxRetries {
			return nil, err
		}

		delay := initialBackoff * time.Duration(math.Pow(2, float64(attempt)))
		if delay > maxBackoff {
			delay = maxBackoff
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

// drain reads a truncated error body and closes it.
func drain(resp *http.Response) string {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return strings.TrimSpace(string(body))
}

// Raster engine API request and response types.

type boundsPayload struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

type sourcePayload struct {
	Collection string         `json:"collection"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	Bounds     *boundsPayload `json:"bounds,omitempty"`
	Band       string         `json:"band,omitempty"`
}

type expressionPayload struct {
	Formula string            `json:"formula"`
	Vars    map[string]string `json:"vars,omitempty"`
}

type sizeRequest struct {
	Source sourcePayload `json:"source"`
}

type sizeResponse struct {
	Count int `json:"count"`
}

type composeRequest struct {
	Source     sourcePayload      `json:"source"`
	Expression *expressionPayload `json:"expression,omitempty"`
	PerImage   bool               `json:"per_image,omitempty"`
	Rename     string             `json:"rename,omitempty"`
	Resample   string             `json:"resample,omitempty"`
}

type layerResponse struct {
	LayerID string   `json:"layer_id"`
	Bands   []string `json:"bands"`
}

type derivedPayload struct {
	Formula string            `json:"formula"`
	Vars    map[string]string `json:"vars,omitempty"`
	Name    string            `json:"name"`
}

type combineRequest struct {
	Layers  []string        `json:"layers"`
	Derived *derivedPayload `json:"derived,omitempty"`
}

type sampleRequest struct {
	Region     boundsPayload `json:"region"`
	Scale      int           `json:"scale"`
	NumPixels  int           `json:"num_pixels"`
	Seed       int64         `json:"seed"`
	Geometries bool          `json:"geometries"`
}

type samplePointPayload struct {
	Lon        float64            `json:"lon"`
	Lat        float64            `json:"lat"`
	Properties map[string]float64 `json:"properties"`
}

type sampleResponse struct {
	Points []samplePointPayload `json:"points"`
}

type reduceRequest struct {
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
	Scale   int     `json:"scale"`
	Reducer string  `json:"reducer"`
}

type reduceResponse struct {
	Values map[string]float64 `json:"values"`
}

type computeRequest struct {
	Expression string `json:"expression"`
}

type computeResponse struct {
	Value float64 `json:"value"`
}

func newSourcePayload(src domain.LayerSource) sourcePayload {
	p := sourcePayload{
		Collection: src.Collection,
		Start:      src.Dates.Start,
		End:        src.Dates.End,
		Band:       src.Band,
	}
	if src.Bounds != nil {
		b := newBoundsPayload(*src.Bounds)
		p.Bounds = &b
	}
	return p
}

func newBoundsPayload(b domain.Boundary) boundsPayload {
	return boundsPayload{West: b.West, South: b.South, East: b.East, North: b.North}
}
