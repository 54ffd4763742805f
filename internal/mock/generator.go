// Package mock generates realistic ARSO air-quality data for local
// development and tests without touching the live feed.
package mock

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Station is a fixed monitoring site used by the generator.
type Station struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Elevation int
}

// Stations is the default set of Slovenian monitoring sites.
var Stations = []Station{
	{ID: "E403", Name: "LJ Bežigrad", Latitude: 46.0654, Longitude: 14.5124, Elevation: 299},
	{ID: "E404", Name: "CE bolnica", Latitude: 46.2361, Longitude: 15.2674, Elevation: 240},
	{ID: "E405", Name: "Koper", Latitude: 45.5482, Longitude: 13.7296, Elevation: 56},
	{ID: "E407", Name: "MS Rakičan", Latitude: 46.6522, Longitude: 16.1913, Elevation: 188},
	{ID: "E409", Name: "Nova Gorica", Latitude: 45.9559, Longitude: 13.6526, Elevation: 113},
	{ID: "E411", Name: "MB Titova", Latitude: 46.5595, Longitude: 15.6458, Elevation: 270},
	{ID: "E412", Name: "Trbovlje", Latitude: 46.1551, Longitude: 15.0558, Elevation: 250},
	{ID: "E417", Name: "Kranj", Latitude: 46.2403, Longitude: 14.3556, Elevation: 390},
	{ID: "E418", Name: "Novo mesto", Latitude: 45.8011, Longitude: 15.1771, Elevation: 220},
}

// valueRange describes the spread of a pollutant. Most draws land near
// typical; the rest cover the full range.
type valueRange struct {
	min, max, typical float64
}

var ranges = map[domain.Pollutant]valueRange{
	domain.PM25: {min: 3, max: 35, typical: 18},
	domain.PM10: {min: 5, max: 45, typical: 25},
	domain.NO2:  {min: 10, max: 60, typical: 30},
	domain.O3:   {min: 20, max: 180, typical: 80},
	domain.SO2:  {min: 1, max: 20, typical: 8},
	domain.CO:   {min: 0.1, max: 2.0, typical: 0.8},
}

// typicalShare is the probability that a draw stays within 30% of typical.
const typicalShare = 0.7

// Generator produces hourly readings for a fixed station list.
type Generator struct {
	stations []Station
	clock    clockwork.Clock
	location *time.Location

	mu  sync.Mutex
	rng *rand.Rand
}

// Option customizes a Generator.
type Option func(*Generator)

// WithStations replaces the default station list.
func WithStations(stations []Station) Option {
	return func(g *Generator) { g.stations = stations }
}

// WithClock sets the time source for the measurement window.
func WithClock(c clockwork.Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithLocation sets the zone the feed window is expressed in.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) { g.location = loc }
}

// NewGenerator returns a generator whose output is fully determined by seed
// and the clock.
func NewGenerator(seed uint64, opts ...Option) *Generator {
	g := &Generator{
		stations: Stations,
		clock:    clockwork.NewRealClock(),
		location: time.UTC,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Window returns the measurement window ending at the last full hour.
func (g *Generator) Window() (from, to time.Time) {
	to = g.clock.Now().In(g.location).Truncate(time.Hour)
	return to.Add(-time.Hour), to
}

// Value draws a reading for p. Fractional pollutants keep one decimal;
// the rest are whole numbers as in the live feed.
func (g *Generator) Value(p domain.Pollutant) (float64, error) {
	r, ok := ranges[p]
	if !ok {
		return 0, fmt.Errorf("unknown pollutant: %s", p)
	}

	g.mu.Lock()
	var v float64
	if g.rng.Float64() < typicalShare {
		lo, hi := r.typical*0.7, r.typical*1.3
		v = lo + g.rng.Float64()*(hi-lo)
	} else {
		v = r.min + g.rng.Float64()*(r.max-r.min)
	}
	g.mu.Unlock()

	if p.Fractional() {
		return math.Round(v*10) / 10, nil
	}
	return math.Round(v), nil
}

// Aggregate builds a merged aggregate with one measurement per station.
func (g *Generator) Aggregate() (*domain.Aggregate, error) {
	from, to := g.Window()

	stations := make([]domain.StationRecord, 0, len(g.stations))
	measurements := make([]domain.MeasurementRecord, 0, len(g.stations))
	for _, s := range g.stations {
		lat, lon, elev := s.Latitude, s.Longitude, s.Elevation
		st, err := domain.NewStationRecord(s.ID, s.Name, domain.Coordinates{
			Latitude: &lat, Longitude: &lon, ElevationMeters: &elev,
		})
		if err != nil {
			return nil, fmt.Errorf("mock station %q: %w", s.ID, err)
		}
		stations = append(stations, st)

		values, err := g.values()
		if err != nil {
			return nil, err
		}
		m, err := domain.NewMeasurementRecord(s.ID, s.Name, from, to, values)
		if err != nil {
			return nil, fmt.Errorf("mock measurement %q: %w", s.ID, err)
		}
		measurements = append(measurements, m)
	}

	return domain.Merge(stations, measurements, slog.New(slog.NewTextHandler(io.Discard, nil))), nil
}

// Fetch renders a fresh feed document, standing in for the live feed client.
func (g *Generator) Fetch(_ context.Context) ([]byte, error) {
	return g.XML()
}

// Snapshot implements the serving source interface.
func (g *Generator) Snapshot(_ context.Context) (domain.Snapshot, error) {
	agg, err := g.Aggregate()
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.NewSnapshot(agg, g.metadata()), nil
}

func (g *Generator) values() (map[domain.Pollutant]float64, error) {
	values := make(map[domain.Pollutant]float64, len(ranges))
	for _, p := range domain.Pollutants {
		if _, ok := ranges[p]; !ok {
			continue
		}
		v, err := g.Value(p)
		if err != nil {
			return nil, err
		}
		values[p] = v
	}
	return values, nil
}

func (g *Generator) metadata() domain.FeedMetadata {
	return domain.FeedMetadata{
		Version:                "1.4",
		Source:                 "Agencija RS za okolje (mock)",
		SuggestedCapture:       "5 minut čez polno uro",
		SuggestedCapturePeriod: "60",
		PreparedAt:             g.clock.Now().In(g.location).Truncate(time.Minute),
	}
}

type feedDoc struct {
	XMLName  xml.Name      `xml:"arsopodatki"`
	Version  string        `xml:"verzija,attr"`
	Source   string        `xml:"vir"`
	Capture  string        `xml:"predlagan_zajem"`
	Period   string        `xml:"predlagan_zajem_perioda"`
	Prepared string        `xml:"datum_priprave"`
	Stations []feedStation `xml:"postaja"`
}

type feedStation struct {
	ID        string      `xml:"sifra,attr"`
	Latitude  string      `xml:"wgs84_sirina,attr,omitempty"`
	Longitude string      `xml:"wgs84_dolzina,attr,omitempty"`
	Elevation string      `xml:"nadm_visina,attr,omitempty"`
	Name      string      `xml:"merilno_mesto"`
	From      string      `xml:"datum_od"`
	To        string      `xml:"datum_do"`
	Fields    []feedField `xml:",any"`
}

type feedField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// feedTag is the element name the live feed uses for p.
func feedTag(p domain.Pollutant) string {
	if p == domain.PM25 {
		return "pm2.5"
	}
	return string(p)
}

// XML renders a fresh aggregate as an ARSO feed document.
func (g *Generator) XML() ([]byte, error) {
	agg, err := g.Aggregate()
	if err != nil {
		return nil, err
	}
	meta := g.metadata()

	doc := feedDoc{
		Version:  meta.Version,
		Source:   meta.Source,
		Capture:  meta.SuggestedCapture,
		Period:   meta.SuggestedCapturePeriod,
		Prepared: meta.PreparedAt.Format(domain.PreparedTimeLayout),
	}
	for _, e := range agg.Entries() {
		fs := feedStation{ID: e.Station.ID, Name: e.Station.Name}
		if c := e.Station.Coordinates; c.Latitude != nil && c.Longitude != nil {
			fs.Latitude = strconv.FormatFloat(*c.Latitude, 'f', -1, 64)
			fs.Longitude = strconv.FormatFloat(*c.Longitude, 'f', -1, 64)
		}
		if c := e.Station.Coordinates; c.ElevationMeters != nil {
			fs.Elevation = strconv.Itoa(*c.ElevationMeters)
		}
		for _, m := range e.Measurements {
			fs.From = m.TimeFrom.In(g.location).Format(domain.FeedTimeLayout)
			fs.To = m.TimeTo.In(g.location).Format(domain.FeedTimeLayout)
			for _, r := range m.Readings() {
				fs.Fields = append(fs.Fields, feedField{
					XMLName: xml.Name{Local: feedTag(r.Pollutant)},
					Value:   strconv.FormatFloat(r.Value, 'f', -1, 64),
				})
			}
		}
		doc.Stations = append(doc.Stations, fs)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render mock feed: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
