package domain

import "math"

// Kilometers per degree on the flat-earth approximation used for area
// estimates. Longitude shrinks with the cosine of latitude; latitude is
// treated as constant.
const (
	kmPerDegreeLon = 111.32
	kmPerDegreeLat = 110.54
)

// Boundary is a geographic bounding box in WGS-84 degrees. Normalized
// boundaries always satisfy South < North and, except for antimeridian
// spans, West <= East.
type Boundary struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// BoundaryCorners is the raw client-supplied bounding box, pre-validation.
// Field names match the JSON wire format of survey requests.
type BoundaryCorners struct {
	LonMin float64 `json:"lonMin"`
	LatMin float64 `json:"latMin"`
	LonMax float64 `json:"lonMax"`
	LatMax float64 `json:"latMax"`
}

// NormalizeBoundary validates corner coordinates and returns an ordered
// boundary. latMin >= latMax is rejected. lonMin > lonMax is tolerated when
// the implied span is under 180 degrees: the corners are swapped, and the
// swap is reported so callers can log it. Wider inverted spans pass through
// unchanged (antimeridian crossing).
func NormalizeBoundary(c BoundaryCorners) (Boundary, bool, error) {
	if c.LatMin < -90 || c.LatMin > 90 || c.LatMax < -90 || c.LatMax > 90 {
		return Boundary{}, false, Errorf(KindInvalidInput, "validate", "latitude must be between -90 and 90 degrees")
	}
	if c.LonMin < -180 || c.LonMin > 180 || c.LonMax < -180 || c.LonMax > 180 {
		return Boundary{}, false, Errorf(KindInvalidInput, "validate", "longitude must be between -180 and 180 degrees")
	}
	if c.LatMin >= c.LatMax {
		return Boundary{}, false, Errorf(KindInvalidInput, "validate", "latMin must be less than latMax")
	}

	b := Boundary{West: c.LonMin, South: c.LatMin, East: c.LonMax, North: c.LatMax}
	swapped := false
	if b.West > b.East && math.Abs(b.West-b.East) < 180 {
		b.West, b.East = b.East, b.West
		swapped = true
	}
	return b, swapped, nil
}

// Contains reports whether the point lies inside the boundary, edges
// included.
func (b Boundary) Contains(lon, lat float64) bool {
	return b.West <= lon && lon <= b.East && b.South <= lat && lat <= b.North
}

// AreaKm2 approximates the boundary's area on a flat-earth projection.
func (b Boundary) AreaKm2() float64 {
	latCenter := (b.North + b.South) / 2
	lonKm := kmPerDegreeLon * math.Abs(math.Cos(latCenter*math.Pi/180))
	return math.Abs(b.East-b.West) * math.Abs(b.North-b.South) * lonKm * kmPerDegreeLat
}

// Shrink returns the boundary reduced by the given fraction of its width
// and height on every side. Shrink(0.3) keeps the central 40% in each
// dimension.
func (b Boundary) Shrink(fraction float64) Boundary {
	marginLon := (b.East - b.West) * fraction
	marginLat := (b.North - b.South) * fraction
	return Boundary{
		West:  b.West + marginLon,
		South: b.South + marginLat,
		East:  b.East - marginLon,
		North: b.North - marginLat,
	}
}

// EdgeStrips returns the west and north strips sampled by the edge pass.
// Strip width is the given fraction of the smaller boundary dimension, in
// degrees.
func (b Boundary) EdgeStrips(fraction float64) [2]Boundary {
	width := math.Min((b.East-b.West)*fraction, (b.North-b.South)*fraction)
	return [2]Boundary{
		{West: b.West, South: b.South, East: b.West + width, North: b.North},
		{West: b.West, South: b.North - width, East: b.East, North: b.North},
	}
}
