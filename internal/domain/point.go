package domain

// PointQuery is a legacy single-point estimate request: one coordinate, one
// date window, one plant type. Thermal is valid here, unlike region surveys.
type PointQuery struct {
	PlantType string
	Lat       float64
	Lon       float64
	Window    DateRange
}

// PointEstimate is the legacy point response. Value is nil when the engine
// had no data at the location.
type PointEstimate struct {
	Lat   float64
	Lon   float64
	Plant PlantType
	Value *float64
}

// ValidatePoint checks that a coordinate is a real WGS-84 position.
func ValidatePoint(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return Errorf(KindInvalidInput, "validate", "latitude must be between -90 and 90 degrees")
	}
	if lon < -180 || lon > 180 {
		return Errorf(KindInvalidInput, "validate", "longitude must be between -180 and 180 degrees")
	}
	return nil
}
