package domain

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// FeedMetadata describes the feed document itself.
type FeedMetadata struct {
	Version                string    `json:"version,omitempty"`
	Source                 string    `json:"source,omitempty"`
	SuggestedCapture       string    `json:"suggested_capture,omitempty"`
	SuggestedCapturePeriod string    `json:"suggested_capture_period,omitempty"`
	PreparedAt             time.Time `json:"prepared_at,omitzero"`
}

type xmlRoot struct {
	XMLName  xml.Name `xml:"arsopodatki"`
	Version  string   `xml:"verzija,attr"`
	Source   string   `xml:"vir"`
	Capture  string   `xml:"predlagan_zajem"`
	Period   string   `xml:"predlagan_zajem_perioda"`
	Prepared string   `xml:"datum_priprave"`
}

// ParseMetadata reads the root attributes and header children of a feed
// document. When only the preparation timestamp is malformed the other fields
// are still returned alongside the error.
func ParseMetadata(doc []byte, loc *time.Location) (FeedMetadata, error) {
	if loc == nil {
		loc = time.UTC
	}

	dec, _ := newDecoder(doc)
	if dec == nil {
		return FeedMetadata{}, &ParseFailure{Kind: ParseEncoding, Reason: "document is not valid UTF-8"}
	}

	var root xmlRoot
	if err := dec.Decode(&root); err != nil {
		return FeedMetadata{}, fmt.Errorf("decode feed root: %w", err)
	}

	meta := FeedMetadata{
		Version:                strings.TrimSpace(root.Version),
		Source:                 strings.TrimSpace(NormalizeUnicode(root.Source)),
		SuggestedCapture:       strings.TrimSpace(root.Capture),
		SuggestedCapturePeriod: strings.TrimSpace(root.Period),
	}

	if prepared := strings.TrimSpace(root.Prepared); prepared != "" {
		t, err := time.ParseInLocation(PreparedTimeLayout, prepared, loc)
		if err != nil {
			return meta, fmt.Errorf("parse datum_priprave %q: %w", prepared, err)
		}
		meta.PreparedAt = t
	}
	return meta, nil
}
