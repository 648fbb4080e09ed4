package form

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation on a closed or cancelled draft.
	ErrClosed = errors.New("form: draft closed")
	// ErrBusy is returned while a submission is validating or saving.
	ErrBusy = errors.New("form: submission in progress")
	// ErrUnknownQuestion is returned when an answer targets a question the
	// template does not declare.
	ErrUnknownQuestion = errors.New("form: unknown question")
	// ErrStaleCapture is returned when a capture completes after its question
	// was answered again, recaptured, or the draft went away. The result is
	// dropped.
	ErrStaleCapture = errors.New("form: stale capture discarded")
	// ErrPayloadTooLarge is returned when a captured file exceeds the limit.
	ErrPayloadTooLarge = errors.New("form: file too large")
)

// StoreWriteError wraps the store failure that moved a submission to the
// Error state. The draft is kept.
type StoreWriteError struct {
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("form: save failed: %v", e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

type GeolocationReason string

const (
	GeolocationUnavailable GeolocationReason = "unavailable"
	GeolocationDenied      GeolocationReason = "denied"
)

// GeolocationError is non-fatal: it only produces a status message.
type GeolocationError struct {
	Reason GeolocationReason
	Err    error
}

func (e *GeolocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("form: geolocation %s: %v", e.Reason, e.Err)
	}
	return "form: geolocation " + string(e.Reason)
}

func (e *GeolocationError) Unwrap() error { return e.Err }

func (e *GeolocationError) message() string {
	if e.Reason == GeolocationDenied {
		return "Location permission was denied."
	}
	return "Geolocation is not available on this device."
}
