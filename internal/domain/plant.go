package domain

import "strings"

// PlantType identifies the kind of power plant a survey optimizes for.
type PlantType string

const (
	PlantSolar   PlantType = "solar"
	PlantWind    PlantType = "wind"
	PlantThermal PlantType = "thermal"
)

// Band names shared by every survey composite.
const (
	BandVegetation = "vegetation"
	BandScore      = "score"
)

// SignalBand returns the measurement band each plant type optimizes:
// surface solar flux for solar, 10m wind speed for wind, daytime land
// surface temperature for thermal.
func (p PlantType) SignalBand() string {
	switch p {
	case PlantSolar:
		return "solar_value"
	case PlantWind:
		return "wind_speed"
	case PlantThermal:
		return "thermal_value"
	default:
		return ""
	}
}

// ParsePlantType matches a plant type case-insensitively.
func ParsePlantType(s string) (PlantType, error) {
	switch PlantType(strings.ToLower(strings.TrimSpace(s))) {
	case PlantSolar:
		return PlantSolar, nil
	case PlantWind:
		return PlantWind, nil
	case PlantThermal:
		return PlantThermal, nil
	default:
		return "", Errorf(KindInvalidInput, "validate", "invalid plant type: %s", s)
	}
}
