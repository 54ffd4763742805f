package domain

import "strings"

// Pollutant is the canonical name of a measured substance.
type Pollutant string

const (
	CO      Pollutant = "co"
	O3      Pollutant = "o3"
	NO2     Pollutant = "no2"
	SO2     Pollutant = "so2"
	PM10    Pollutant = "pm10"
	PM25    Pollutant = "pm2_5"
	NOx     Pollutant = "nox"
	Benzene Pollutant = "benzen"
)

// Pollutants lists every recognized pollutant in feed order.
var Pollutants = []Pollutant{CO, O3, NO2, SO2, PM10, PM25, NOx, Benzene}

const (
	UnitMicrogramsPerCubicMeter = "µg/m³"
	UnitMilligramsPerCubicMeter = "mg/m³"
)

// Unit returns the fixed unit of measure for p.
func (p Pollutant) Unit() string {
	if p == CO {
		return UnitMilligramsPerCubicMeter
	}
	return UnitMicrogramsPerCubicMeter
}

// Fractional reports whether p carries decimal values in the feed.
func (p Pollutant) Fractional() bool {
	return p == CO || p == Benzene
}

// PollutantFromTag maps a feed element name to its pollutant. Both "pm2.5"
// and "pm2_5" are accepted for fine particulates.
func PollutantFromTag(tag string) (Pollutant, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "co":
		return CO, true
	case "o3":
		return O3, true
	case "no2":
		return NO2, true
	case "so2":
		return SO2, true
	case "pm10":
		return PM10, true
	case "pm2.5", "pm2_5":
		return PM25, true
	case "nox":
		return NOx, true
	case "benzen":
		return Benzene, true
	default:
		return "", false
	}
}

// PollutantDimension is a row of the pollutant reference table.
type PollutantDimension struct {
	Name Pollutant `json:"name"`
	Unit string    `json:"unit"`
}

// Dimension returns the reference row for p.
func (p Pollutant) Dimension() PollutantDimension {
	return PollutantDimension{Name: p, Unit: p.Unit()}
}
