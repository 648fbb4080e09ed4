package syncer

import (
	"fmt"
	"strings"
)

// NetworkError reports a failed retrieval: either the transport failed or
// the server answered with a non-2xx status.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sync: fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("sync: fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError reports a remote document that is not a usable template.
// Fields lists the offending top-level keys.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return "sync: invalid survey template format: " + strings.Join(e.Fields, ", ")
	}
	return fmt.Sprintf("sync: invalid survey template format: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
