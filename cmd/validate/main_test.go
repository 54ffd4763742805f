package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFeed = `<?xml version="1.0" encoding="UTF-8"?>
<arsopodatki verzija="1.4">
  <datum_priprave>01-01-2025 @ 10:30</datum_priprave>
  <postaja sifra="E403" wgs84_sirina="46.065" wgs84_dolzina="14.517">
    <merilno_mesto>LJ Bežigrad</merilno_mesto>
    <datum_od>2025-01-01 09:00</datum_od>
    <datum_do>2025-01-01 10:00</datum_do>
    <pm10>21</pm10>
  </postaja>
  <postaja sifra="E411">
    <merilno_mesto>MB Titova</merilno_mesto>
    <datum_od>2025-01-01 10:00</datum_od>
    <datum_do>2025-01-01 09:00</datum_do>
  </postaja>
</arsopodatki>`

func TestValidate_Phases(t *testing.T) {
	phases := validate([]byte(validFeed), time.UTC, false)
	require.Len(t, phases, 4)
	for _, p := range phases {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestValidate_StrictFailsOnSkipped(t *testing.T) {
	phases := validate([]byte(validFeed), time.UTC, true)

	byName := map[string]*phase{}
	for _, p := range phases {
		byName[p.name] = p
	}
	assert.True(t, byName["Station parsing"].passed())
	assert.False(t, byName["Measurement parsing"].passed(), "the inverted window is skipped")
}

func TestValidate_MalformedDocument(t *testing.T) {
	phases := validate([]byte("<arsopodatki><postaja"), time.UTC, false)

	for _, p := range phases[1:] {
		assert.False(t, p.passed(), p.name)
	}
}

func TestRun_ReportsAndExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte(validFeed), 0o600))

	var out bytes.Buffer
	code := run(&out, path, "UTC", false)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "Parsed 1/2 measurements, skipped: 1 measurements")

	out.Reset()
	assert.Equal(t, 1, run(&out, filepath.Join(t.TempDir(), "missing.xml"), "UTC", false))
}
