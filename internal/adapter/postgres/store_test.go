package postgres

import (
	"testing"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaDefinesTables(t *testing.T) {
	for _, table := range []string{"stations", "pollutants", "measurements"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, schemaSQL, "station_id  TEXT NOT NULL UNIQUE")
	assert.Contains(t, schemaSQL, "name  TEXT NOT NULL UNIQUE")
}

func TestStationArgs(t *testing.T) {
	lat, lon, elev := 46.065, 14.517, 299
	st, err := domain.NewStationRecord("E403", "LJ Bežigrad", domain.Coordinates{
		Latitude: &lat, Longitude: &lon, ElevationMeters: &elev,
	})
	require.NoError(t, err)

	args := stationArgs(st)

	require.Len(t, args, 7)
	assert.Equal(t, "E403", args[0])
	assert.Equal(t, "LJ Bežigrad", args[1])
	assert.Equal(t, &lat, args[2])
	assert.Nil(t, args[4].(*float64), "missing easting is passed as NULL")
	assert.Equal(t, &elev, args[6])
}
