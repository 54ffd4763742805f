package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord is returned when a station or measurement violates its invariants.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrNoSnapshot is returned by snapshot sources that have nothing to serve yet.
	ErrNoSnapshot = errors.New("no snapshot available")
)

// ParseFailureKind classifies a document-level parse failure.
type ParseFailureKind string

const (
	ParseMalformedXML    ParseFailureKind = "malformed_xml"
	ParseEncoding        ParseFailureKind = "encoding"
	ParseNoElements      ParseFailureKind = "no_elements"
	ParseNoValidElements ParseFailureKind = "no_valid_elements"
)

// ParseFailure is a structural failure that makes a whole document unusable.
type ParseFailure struct {
	Kind   ParseFailureKind
	Reason string
	Err    error
}

func (e *ParseFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// FetchFailureKind classifies why the feed could not be retrieved.
type FetchFailureKind string

const (
	FetchTimeout    FetchFailureKind = "timeout"
	FetchConnection FetchFailureKind = "connection"
	FetchHTTP       FetchFailureKind = "http"
)

// FetchError reports a failed feed download.
type FetchError struct {
	Kind       FetchFailureKind
	StatusCode int // set for FetchHTTP when a response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failure: status %d: %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failure: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
