package domain

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// FeedTimeLayout is the layout of <datum_od> and <datum_do>.
	FeedTimeLayout = "2006-01-02 15:04"
	// PreparedTimeLayout is the layout of the root <datum_priprave>.
	PreparedTimeLayout = "02-01-2006 @ 15:04"

	stationElement = "postaja"
)

// xmlStation is one <postaja> element. It carries both the station metadata
// and the station's readings for the current window.
type xmlStation struct {
	ID        string     `xml:"sifra,attr"`
	Latitude  string     `xml:"wgs84_sirina,attr"`
	Longitude string     `xml:"wgs84_dolzina,attr"`
	Easting   string     `xml:"d96_e,attr"`
	Northing  string     `xml:"d96_n,attr"`
	Elevation string     `xml:"nadm_visina,attr"`
	Name      string     `xml:"merilno_mesto"`
	From      string     `xml:"datum_od"`
	To        string     `xml:"datum_do"`
	Fields    []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// ParseStations extracts the deduplicated list of valid stations from a feed
// document. Invalid elements are skipped and counted; when several elements
// share an id the first one wins. A document without any valid station is a
// failure.
func ParseStations(doc []byte, logger *slog.Logger) ParseResult[StationRecord] {
	var (
		stations []StationRecord
		seen     = make(map[string]struct{})
		skipped  int
	)

	found, failure := walkStations(doc, func(el xmlStation) {
		st, err := el.station()
		if err != nil {
			skipped++
			logger.Warn("skipping station element", "error", err)
			return
		}
		if _, decoded := DecodeUnicodeEscapes(el.Name); !decoded {
			logger.Warn("could not decode unicode escape", "station_id", st.ID, "text", el.Name)
		}
		if _, dup := seen[st.ID]; dup {
			return
		}
		seen[st.ID] = struct{}{}
		stations = append(stations, st)
	})
	if failure != nil {
		logger.Error("station parse failed", "kind", failure.Kind, "error", failure)
		return ParseResult[StationRecord]{Found: found, Message: failure.Reason, Err: failure}
	}

	if found == 0 {
		logger.Warn("no station elements found in feed")
		return failed[StationRecord](ParseNoElements, "No stations found in XML data", nil)
	}
	if len(stations) == 0 {
		res := failed[StationRecord](ParseNoValidElements,
			fmt.Sprintf("No valid stations among %d elements, skipped: %d", found, skipped), nil)
		res.Found, res.Skipped = found, skipped
		logger.Warn("no valid stations in feed", "found", found, "skipped", skipped)
		return res
	}

	msg := summary("stations", len(stations), found, skipped)
	logger.Info(msg, "parsed", len(stations), "found", found, "skipped", skipped)
	return ParseResult[StationRecord]{Items: stations, Found: found, Skipped: skipped, Message: msg}
}

// ParseMeasurements extracts one measurement per valid station element.
// Timestamps are read in loc (UTC when nil). Each pollutant field is coerced
// on its own and a field that does not parse is left out; a missing or
// inverted window, a missing station id or name, or a negative value rejects
// the whole element. No deduplication is applied.
func ParseMeasurements(doc []byte, loc *time.Location, logger *slog.Logger) ParseResult[MeasurementRecord] {
	if loc == nil {
		loc = time.UTC
	}

	var (
		measurements []MeasurementRecord
		skipped      int
	)

	found, failure := walkStations(doc, func(el xmlStation) {
		m, err := el.measurement(loc)
		if err != nil {
			skipped++
			logger.Warn("skipping measurement element", "station_id", strings.TrimSpace(el.ID), "error", err)
			return
		}
		measurements = append(measurements, m)
	})
	if failure != nil {
		logger.Error("measurement parse failed", "kind", failure.Kind, "error", failure)
		return ParseResult[MeasurementRecord]{Found: found, Message: failure.Reason, Err: failure}
	}

	if found == 0 {
		logger.Warn("no measurement elements found in feed")
		return failed[MeasurementRecord](ParseNoElements, "No measurements found in XML data", nil)
	}
	if len(measurements) == 0 {
		res := failed[MeasurementRecord](ParseNoValidElements,
			fmt.Sprintf("No valid measurements among %d elements, skipped: %d", found, skipped), nil)
		res.Found, res.Skipped = found, skipped
		logger.Warn("no valid measurements in feed", "found", found, "skipped", skipped)
		return res
	}

	msg := summary("measurements", len(measurements), found, skipped)
	logger.Info(msg, "parsed", len(measurements), "found", found, "skipped", skipped)
	return ParseResult[MeasurementRecord]{Items: measurements, Found: found, Skipped: skipped, Message: msg}
}

func summary(what string, parsed, found, skipped int) string {
	if skipped > 0 {
		return fmt.Sprintf("Parsed %d/%d %s, skipped: %d %s", parsed, found, what, skipped, what)
	}
	return fmt.Sprintf("Successfully parsed all %d %s", parsed, what)
}

func (el xmlStation) station() (StationRecord, error) {
	var (
		coords Coordinates
		err    error
	)
	if coords.Latitude, err = optionalFloat("wgs84_sirina", el.Latitude); err != nil {
		return StationRecord{}, err
	}
	if coords.Longitude, err = optionalFloat("wgs84_dolzina", el.Longitude); err != nil {
		return StationRecord{}, err
	}
	if coords.Easting, err = optionalFloat("d96_e", el.Easting); err != nil {
		return StationRecord{}, err
	}
	if coords.Northing, err = optionalFloat("d96_n", el.Northing); err != nil {
		return StationRecord{}, err
	}
	if strings.TrimSpace(el.Elevation) != "" {
		v, ok := ParseInteger(el.Elevation)
		if !ok {
			return StationRecord{}, fmt.Errorf("%w: invalid nadm_visina %q", ErrInvalidRecord, el.Elevation)
		}
		coords.ElevationMeters = &v
	}
	return NewStationRecord(el.ID, el.Name, coords)
}

func (el xmlStation) measurement(loc *time.Location) (MeasurementRecord, error) {
	from, err := parseFeedTime(el.From, loc)
	if err != nil {
		return MeasurementRecord{}, fmt.Errorf("%w: datum_od: %w", ErrInvalidRecord, err)
	}
	to, err := parseFeedTime(el.To, loc)
	if err != nil {
		return MeasurementRecord{}, fmt.Errorf("%w: datum_do: %w", ErrInvalidRecord, err)
	}

	values := make(map[Pollutant]float64)
	for _, f := range el.Fields {
		p, ok := PollutantFromTag(f.XMLName.Local)
		if !ok {
			continue
		}
		if _, dup := values[p]; dup {
			continue
		}
		if p.Fractional() {
			if v, ok := ParseFraction(f.Value); ok {
				values[p] = v
			}
			continue
		}
		if v, ok := ParseInteger(f.Value); ok {
			values[p] = float64(v)
		}
	}

	return NewMeasurementRecord(el.ID, el.Name, from, to, values)
}

func parseFeedTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	return time.ParseInLocation(FeedTimeLayout, s, loc)
}

// optionalFloat reads an optional numeric attribute. Absent or blank text is
// nil; text that is present but not numeric rejects the element.
func optionalFloat(attr, s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, ok := ParseFraction(s)
	if !ok {
		return nil, fmt.Errorf("%w: invalid %s %q", ErrInvalidRecord, attr, s)
	}
	return &v, nil
}

// walkStations streams the document and calls visit for every <postaja>
// element at any depth. It returns the number of elements visited. A second
// top-level element is reported as malformed.
func walkStations(doc []byte, visit func(xmlStation)) (int, *ParseFailure) {
	dec, charsetErr := newDecoder(doc)
	if dec == nil {
		return 0, &ParseFailure{Kind: ParseEncoding, Reason: "document is not valid UTF-8"}
	}

	found, depth := 0, 0
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return found, decodeFailure(err, *charsetErr)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			if _, end := tok.(xml.EndElement); end {
				depth--
			}
			continue
		}
		if sawRoot && depth == 0 {
			return found, &ParseFailure{
				Kind:   ParseMalformedXML,
				Reason: fmt.Sprintf("Invalid XML structure: junk after document element <%s>", start.Name.Local),
			}
		}
		sawRoot = true
		if start.Name.Local != stationElement {
			depth++
			continue
		}

		var el xmlStation
		if err := dec.DecodeElement(&el, &start); err != nil {
			return found, decodeFailure(err, *charsetErr)
		}
		found++
		visit(el)
	}

	if !sawRoot {
		return 0, &ParseFailure{Kind: ParseMalformedXML, Reason: "Invalid XML structure: no root element"}
	}
	return found, nil
}

// newDecoder returns nil when doc is not valid UTF-8. The returned flag is set
// if the document declares a charset other than UTF-8.
func newDecoder(doc []byte) (*xml.Decoder, *bool) {
	charsetErr := false
	if !utf8.Valid(doc) {
		return nil, &charsetErr
	}

	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(label) {
		case "utf-8", "utf8", "us-ascii", "ascii":
			return input, nil
		}
		charsetErr = true
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return dec, &charsetErr
}

func decodeFailure(err error, charsetErr bool) *ParseFailure {
	if charsetErr {
		return &ParseFailure{Kind: ParseEncoding, Reason: "Character decoding problems", Err: err}
	}
	return &ParseFailure{Kind: ParseMalformedXML, Reason: "Invalid XML structure", Err: err}
}
