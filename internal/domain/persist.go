package domain

import "time"

// PersistSummary reports what one persistence pass wrote.
type PersistSummary struct {
	PollutantsEnsured    int `json:"pollutants_ensured"`
	StationsInserted     int `json:"stations_inserted"`
	MeasurementsInserted int `json:"measurements_inserted"`
	UnitsFailed          int `json:"units_failed"`
}

// StoreStats holds the row counts of the persisted tables.
type StoreStats struct {
	Stations     int64 `json:"stations"`
	Pollutants   int64 `json:"pollutants"`
	Measurements int64 `json:"measurements"`
}

// FactRow is one measurement fact: a single present pollutant value of a
// measurement, stamped with the end of its window.
type FactRow struct {
	StationID string
	Reading
	MeasuredAt time.Time
}

// FactRows unpacks an entry's measurements into one row per present value.
func (e StationEntry) FactRows() []FactRow {
	var rows []FactRow
	for _, m := range e.Measurements {
		for _, r := range m.Readings() {
			rows = append(rows, FactRow{StationID: e.Station.ID, Reading: r, MeasuredAt: m.TimeTo})
		}
	}
	return rows
}
