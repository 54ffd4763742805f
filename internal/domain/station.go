package domain

import (
	"fmt"
	"strings"
)

// Coordinates holds the optional location attributes of a station.
type Coordinates struct {
	Latitude        *float64 `json:"latitude,omitempty"`  // WGS84
	Longitude       *float64 `json:"longitude,omitempty"` // WGS84
	Easting         *float64 `json:"easting,omitempty"`   // D96/TM
	Northing        *float64 `json:"northing,omitempty"`  // D96/TM
	ElevationMeters *int     `json:"elevation_meters,omitempty"`
}

// StationRecord is a validated monitoring station. Build it with
// NewStationRecord; values are not modified after construction.
type StationRecord struct {
	ID   string `json:"station_id"`
	Name string `json:"station_name"`
	Coordinates
}

// NewStationRecord trims and normalizes id and name and rejects the record
// when either is empty.
func NewStationRecord(id, name string, coords Coordinates) (StationRecord, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(NormalizeUnicode(name))

	if id == "" {
		return StationRecord{}, fmt.Errorf("%w: station id is empty", ErrInvalidRecord)
	}
	if name == "" {
		return StationRecord{}, fmt.Errorf("%w: station %s has no name", ErrInvalidRecord, id)
	}

	return StationRecord{ID: id, Name: name, Coordinates: coords}, nil
}
