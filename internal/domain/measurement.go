package domain

import (
	"fmt"
	"strings"
	"time"
)

// Reading is one pollutant value of a measurement.
type Reading struct {
	Pollutant Pollutant `json:"pollutant"`
	Value     float64   `json:"value"`
}

// MeasurementRecord is one station's readings for a reporting window. Its
// identity is StationID plus TimeTo.
type MeasurementRecord struct {
	StationID   string                `json:"station_id"`
	StationName string                `json:"station_name"`
	TimeFrom    time.Time             `json:"time_from"`
	TimeTo      time.Time             `json:"time_to"`
	Values      map[Pollutant]float64 `json:"values"`
}

// NewMeasurementRecord validates and builds a measurement. It fails when the
// station id or name is empty, when from is not before to, or when any value
// is negative. The values map is copied.
func NewMeasurementRecord(stationID, stationName string, from, to time.Time, values map[Pollutant]float64) (MeasurementRecord, error) {
	stationID = strings.TrimSpace(stationID)
	stationName = strings.TrimSpace(NormalizeUnicode(stationName))

	if stationID == "" {
		return MeasurementRecord{}, fmt.Errorf("%w: measurement has no station id", ErrInvalidRecord)
	}
	if stationName == "" {
		return MeasurementRecord{}, fmt.Errorf("%w: measurement for %s has no station name", ErrInvalidRecord, stationID)
	}
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return MeasurementRecord{}, fmt.Errorf("%w: invalid window %s - %s for %s", ErrInvalidRecord,
			from.Format(FeedTimeLayout), to.Format(FeedTimeLayout), stationID)
	}

	copied := make(map[Pollutant]float64, len(values))
	for p, v := range values {
		if v < 0 {
			return MeasurementRecord{}, fmt.Errorf("%w: %s value %v for %s is negative", ErrInvalidRecord, p, v, stationID)
		}
		copied[p] = v
	}

	return MeasurementRecord{
		StationID:   stationID,
		StationName: stationName,
		TimeFrom:    from,
		TimeTo:      to,
		Values:      copied,
	}, nil
}

// Value returns the reading for p, if present.
func (m MeasurementRecord) Value(p Pollutant) (float64, bool) {
	v, ok := m.Values[p]
	return v, ok
}

// Readings returns the present values in canonical pollutant order.
func (m MeasurementRecord) Readings() []Reading {
	out := make([]Reading, 0, len(m.Values))
	for _, p := range Pollutants {
		if v, ok := m.Values[p]; ok {
			out = append(out, Reading{Pollutant: p, Value: v})
		}
	}
	return out
}
