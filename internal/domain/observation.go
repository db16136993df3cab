package domain

import (
	"fmt"
	"strings"
)

// Observation is what one fetch produced. It is exactly one of
// FeedObservation, ScalarObservation or FetchFailure.
type Observation interface {
	observation()
}

// Item is one entry of a feed. ID is stable across fetches of the same content.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Date        string `json:"date,omitempty"`
	Image       string `json:"image,omitempty"`
}

// FeedObservation holds items newest-first.
type FeedObservation struct {
	Items []Item
}

// Reading is one scalar target's value. Err is set when that target alone failed.
type Reading struct {
	TargetID string
	Name     string
	Value    string
	Unit     string
	Link     string
	Err      string
}

func (r Reading) OK() bool { return r.Err == "" }

type ScalarObservation struct {
	Readings []Reading
}

type FailureKind string

const (
	FailureNetwork FailureKind = "network"
	FailureTimeout FailureKind = "timeout"
	FailureHTTP    FailureKind = "http"
	FailureParse   FailureKind = "parse"
	FailureBlocked FailureKind = "blocked"
)

// FetchFailure is both an Observation and an error.
type FetchFailure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (FeedObservation) observation()   {}
func (ScalarObservation) observation() {}
func (*FetchFailure) observation()     {}

func (f *FetchFailure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

// Unwrap maps the failure kind onto the error taxonomy so callers can use errors.Is.
func (f *FetchFailure) Unwrap() []error {
	out := []error{f.Kind.sentinel()}
	if f.Err != nil {
		out = append(out, f.Err)
	}
	return out
}

func (k FailureKind) sentinel() error {
	switch k {
	case FailureBlocked:
		return ErrBlocked
	case FailureParse:
		return ErrParse
	default:
		return ErrFetch
	}
}

// Fail builds a FetchFailure observation.
func Fail(kind FailureKind, err error, format string, args ...any) *FetchFailure {
	return &FetchFailure{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
