package domain

import "log/slog"

// StationEntry is one station of a merged aggregate with its measurements in
// input order.
type StationEntry struct {
	Station      StationRecord       `json:"station_info"`
	Measurements []MeasurementRecord `json:"measurements"`
}

// Aggregate is the station-keyed join of one pipeline run. It is built fresh
// on every run and never shared between runs.
type Aggregate struct {
	entries map[string]*StationEntry
	order   []string

	// Orphans counts measurements dropped because their station was unknown.
	Orphans int
}

// Merge left-joins measurements onto stations by station id. Every station
// gets an entry, possibly without measurements. A measurement whose station
// is not in the list is dropped with a warning.
func Merge(stations []StationRecord, measurements []MeasurementRecord, logger *slog.Logger) *Aggregate {
	agg := &Aggregate{
		entries: make(map[string]*StationEntry, len(stations)),
		order:   make([]string, 0, len(stations)),
	}

	for _, st := range stations {
		if _, exists := agg.entries[st.ID]; exists {
			continue
		}
		agg.entries[st.ID] = &StationEntry{Station: st, Measurements: []MeasurementRecord{}}
		agg.order = append(agg.order, st.ID)
	}

	for _, m := range measurements {
		entry, ok := agg.entries[m.StationID]
		if !ok {
			agg.Orphans++
			logger.Warn("dropping orphan measurement", "station_id", m.StationID, "time_to", m.TimeTo)
			continue
		}
		entry.Measurements = append(entry.Measurements, m)
	}

	return agg
}

// Len returns the number of stations.
func (a *Aggregate) Len() int { return len(a.order) }

// IDs returns station ids in input order.
func (a *Aggregate) IDs() []string {
	return append([]string(nil), a.order...)
}

// Get returns the entry for a station id.
func (a *Aggregate) Get(id string) (StationEntry, bool) {
	e, ok := a.entries[id]
	if !ok {
		return StationEntry{}, false
	}
	return *e, true
}

// Entries returns all entries in input order.
func (a *Aggregate) Entries() []StationEntry {
	out := make([]StationEntry, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.entries[id])
	}
	return out
}

// MeasurementCount returns the number of measurements kept by the join.
func (a *Aggregate) MeasurementCount() int {
	n := 0
	for _, e := range a.entries {
		n += len(e.Measurements)
	}
	return n
}

// Pollutants returns the distinct pollutants with at least one value, in
// canonical order.
func (a *Aggregate) Pollutants() []Pollutant {
	present := make(map[Pollutant]bool)
	for _, e := range a.entries {
		for _, m := range e.Measurements {
			for p := range m.Values {
				present[p] = true
			}
		}
	}

	out := make([]Pollutant, 0, len(present))
	for _, p := range Pollutants {
		if present[p] {
			out = append(out, p)
		}
	}
	return out
}
