package extractors

import (
	"errors"
	"fmt"
)

// ErrorKind classifies extraction failures so the route layer can map them
// to client-facing status codes.
type ErrorKind string

const (
	// KindBadInput marks a malformed page or domain URL.
	KindBadInput ErrorKind = "bad_input"
	// KindUpstreamUnavailable marks a failed or non-200 resolution fetch.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindParseError marks an expected HTML/script/JSON shape that was absent.
	KindParseError ErrorKind = "parse_error"
)

// ExtractionError is the terminal failure of a single resolution step.
// Steps never retry; the first failing step aborts the whole extraction.
type ExtractionError struct {
	Step string
	Kind ErrorKind
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Step, e.Kind)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an extraction error, or the empty string for
// any other error.
func KindOf(err error) ErrorKind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

func badInput(step string, err error) *ExtractionError {
	return &ExtractionError{Step: step, Kind: KindBadInput, Err: err}
}

func upstreamUnavailable(step string, err error) *ExtractionError {
	return &ExtractionError{Step: step, Kind: KindUpstreamUnavailable, Err: err}
}

func parseError(step string, err error) *ExtractionError {
	return &ExtractionError{Step: step, Kind: KindParseError, Err: err}
}
