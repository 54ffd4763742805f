// Command genmock writes a mock ARSO air-quality feed, and optionally the
// matching serving snapshot, for local development and fixtures. Output is
// reproducible for a given seed and time.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -xml-out data/mock/arso_feed.xml \
//	  -snapshot-out data/mock/arso_snapshot.json \
//	  -seed 42 -at 2025-01-01T10:05:00+01:00
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/couchcryptid/arso-air-quality-etl/internal/mock"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	xmlOut := flag.String("xml-out", "", "output path for the mock XML feed")
	snapshotOut := flag.String("snapshot-out", "", "optional output path for the JSON snapshot")
	seed := flag.Uint64("seed", 42, "random seed")
	at := flag.String("at", "", "generation time (RFC 3339); defaults to now")
	tz := flag.String("tz", "Europe/Ljubljana", "time zone of the feed timestamps")
	flag.Parse()

	if *xmlOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -xml-out")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}

	now := time.Now()
	if *at != "" {
		now, err = time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
	}

	// Fixed clock so the XML and the snapshot describe the same window.
	clock := clockwork.NewFakeClockAt(now)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	doc, err := mock.NewGenerator(*seed, mock.WithClock(clock), mock.WithLocation(loc)).XML()
	if err != nil {
		return fmt.Errorf("generate feed: %w", err)
	}
	if err := writeFile(*xmlOut, doc); err != nil {
		return fmt.Errorf("writing XML feed: %w", err)
	}
	log.Printf("wrote XML feed: %s (%d stations)", *xmlOut, len(mock.Stations))

	if *snapshotOut == "" {
		return nil
	}

	// A second generator with the same seed reproduces the same readings.
	snap, err := mock.NewGenerator(*seed, mock.WithClock(clock), mock.WithLocation(loc)).Snapshot(context.Background())
	if err != nil {
		return fmt.Errorf("generate snapshot: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	if err := writeFile(*snapshotOut, append(data, '\n')); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	log.Printf("wrote snapshot: %s", *snapshotOut)

	printStats(snap)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printStats(snap domain.Snapshot) {
	counts := map[domain.Status]int{}
	for _, st := range snap.Stations {
		counts[st.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Stations: %d\n", len(snap.Stations))
	for _, s := range statuses {
		fmt.Printf("  %-9s %d\n", s, counts[domain.Status(s)])
	}
}
