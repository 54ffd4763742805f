package domain

import (
	"strings"
	"time"
)

// StationSnapshot is the serving view of one station.
type StationSnapshot struct {
	StationRecord
	Latest       *MeasurementRecord  `json:"latest,omitempty"`
	Measurements []MeasurementRecord `json:"measurements"`
	Status       Status              `json:"status"`
}

// Snapshot is the published projection of one successful pipeline run.
type Snapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Metadata    FeedMetadata      `json:"metadata"`
	Stations    []StationSnapshot `json:"stations"`
}

// NewSnapshot projects an aggregate for serving, stamped with the package clock.
func NewSnapshot(agg *Aggregate, meta FeedMetadata) Snapshot {
	snap := Snapshot{
		GeneratedAt: clock.Now().UTC(),
		Metadata:    meta,
		Stations:    make([]StationSnapshot, 0, agg.Len()),
	}
	for _, e := range agg.Entries() {
		snap.Stations = append(snap.Stations, newStationSnapshot(e))
	}
	return snap
}

func newStationSnapshot(e StationEntry) StationSnapshot {
	s := StationSnapshot{
		StationRecord: e.Station,
		Measurements:  e.Measurements,
		Status:        StatusUnknown,
	}
	for i := range e.Measurements {
		if s.Latest == nil || e.Measurements[i].TimeTo.After(s.Latest.TimeTo) {
			s.Latest = &e.Measurements[i]
		}
	}
	if s.Latest != nil {
		s.Status = OverallStatus(*s.Latest)
	}
	return s
}

// FindByID returns the station with the given id.
func (s Snapshot) FindByID(id string) (StationSnapshot, bool) {
	id = strings.TrimSpace(id)
	for _, st := range s.Stations {
		if st.ID == id {
			return st, true
		}
	}
	return StationSnapshot{}, false
}

// FindByName returns the first station whose name matches case-insensitively.
func (s Snapshot) FindByName(name string) (StationSnapshot, bool) {
	name = strings.TrimSpace(NormalizeUnicode(name))
	if name == "" {
		return StationSnapshot{}, false
	}
	for _, st := range s.Stations {
		if strings.EqualFold(st.Name, name) {
			return st, true
		}
	}
	return StationSnapshot{}, false
}
