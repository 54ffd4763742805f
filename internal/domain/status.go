package domain

// Status is a coarse air-quality rating.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusGood     Status = "good"
	StatusModerate Status = "moderate"
	StatusPoor     Status = "poor"
)

// threshold holds the upper bounds of the good and moderate bands.
type threshold struct {
	good     float64
	moderate float64
}

var statusThresholds = map[Pollutant]threshold{
	PM25: {good: 15, moderate: 25},
	PM10: {good: 20, moderate: 50},
	NO2:  {good: 40, moderate: 80},
	O3:   {good: 80, moderate: 120},
	SO2:  {good: 20, moderate: 50},
	CO:   {good: 1.0, moderate: 1.5},
}

func (s Status) rank() int {
	switch s {
	case StatusGood:
		return 1
	case StatusModerate:
		return 2
	case StatusPoor:
		return 3
	default:
		return 0
	}
}

// ClassifyStatus rates a single value. Pollutants without limits are unknown.
func ClassifyStatus(p Pollutant, value float64) Status {
	t, ok := statusThresholds[p]
	if !ok {
		return StatusUnknown
	}
	switch {
	case value <= t.good:
		return StatusGood
	case value <= t.moderate:
		return StatusModerate
	default:
		return StatusPoor
	}
}

// OverallStatus returns the worst rating among the measurement's values.
func OverallStatus(m MeasurementRecord) Status {
	worst := StatusUnknown
	for p, v := range m.Values {
		if s := ClassifyStatus(p, v); s.rank() > worst.rank() {
			worst = s
		}
	}
	return worst
}
