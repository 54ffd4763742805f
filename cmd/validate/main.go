// Command validate runs the parse and merge phases of the ingestion pipeline
// against a local ARSO feed file and reports pass/fail per phase. It never
// touches the network or the database.
//
// Usage:
//
//	go run ./cmd/validate -xml data/mock/arso_feed.xml [-tz Europe/Ljubljana] [-strict]
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	xmlPath := flag.String("xml", "", "path to an ARSO XML feed document")
	tz := flag.String("tz", "Europe/Ljubljana", "time zone of the feed timestamps")
	strict := flag.Bool("strict", false, "treat skipped elements and orphan measurements as failures")
	flag.Parse()

	if *xmlPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *xmlPath, *tz, *strict); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, xmlPath, tz string, strict bool) int {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load time zone: %v\n", err)
		return 1
	}
	doc, err := os.ReadFile(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read feed: %v\n", err)
		return 1
	}

	fmt.Fprintln(w, "=== ARSO Feed Validation ===")
	fmt.Fprintf(w, "File: %s (%d bytes)\n", xmlPath, len(doc))

	phases := validate(doc, loc, strict)
	return report(w, phases)
}

// validate runs every phase against doc. Phases after a structural parse
// failure still run so the report shows all problems at once.
func validate(doc []byte, loc *time.Location, strict bool) []*phase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	meta := &phase{name: "Feed metadata"}
	md, err := domain.ParseMetadata(doc, loc)
	if err != nil {
		meta.errorf("%v", err)
	}
	if md.Version == "" {
		meta.notef("root has no verzija attribute")
	}
	if !md.PreparedAt.IsZero() {
		meta.notef("prepared at %s", md.PreparedAt.Format(time.RFC3339))
	}

	st := &phase{name: "Station parsing"}
	stations := domain.ParseStations(doc, logger)
	checkResult(st, stations.Err, stations.Message, stations.Skipped, strict)

	ms := &phase{name: "Measurement parsing"}
	measurements := domain.ParseMeasurements(doc, loc, logger)
	checkResult(ms, measurements.Err, measurements.Message, measurements.Skipped, strict)
	for _, m := range measurements.Items {
		if len(m.Values) == 0 {
			ms.notef("station %s reports no pollutant values", m.StationID)
		}
	}

	mg := &phase{name: "Merge"}
	if stations.OK() && measurements.OK() {
		agg := domain.Merge(stations.Items, measurements.Items, logger)
		mg.notef("%d stations, %d measurements, pollutants %v", agg.Len(), agg.MeasurementCount(), agg.Pollutants())
		if agg.Orphans > 0 {
			msg := fmt.Sprintf("%d measurements reference unknown stations", agg.Orphans)
			if strict {
				mg.errorf("%s", msg)
			} else {
				mg.notef("%s", msg)
			}
		}
		for _, e := range agg.Entries() {
			if len(e.Measurements) == 0 {
				mg.notef("station %s has no measurements", e.Station.ID)
			}
		}
	} else {
		mg.errorf("skipped: parsing did not succeed")
	}

	return []*phase{meta, st, ms, mg}
}

func checkResult(p *phase, err error, msg string, skipped int, strict bool) {
	if err != nil {
		p.errorf("%v", err)
		return
	}
	p.notef("%s", msg)
	if skipped > 0 && strict {
		p.errorf("%d elements skipped", skipped)
	}
}

func report(w io.Writer, phases []*phase) int {
	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-28s %s\n", p.name, status)
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}
