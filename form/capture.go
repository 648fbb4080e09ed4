package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"

	"github.com/mbolis/field-survey/log"
	"github.com/mbolis/field-survey/model"
)

// FileHandle is a file picked or shot by the user.
type FileHandle interface {
	Name() string
	// ContentType is the declared media type; empty when unknown.
	ContentType() string
	Open() (io.ReadCloser, error)
}

// BytesFile is a FileHandle over an in-memory buffer.
type BytesFile struct {
	FileName string
	Type     string
	Data     []byte
}

func (f BytesFile) Name() string        { return f.FileName }
func (f BytesFile) ContentType() string { return f.Type }
func (f BytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator produces the device position. Failures should be reported as
// *GeolocationError; anything else counts as unavailable.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

type LocatorFunc func(ctx context.Context) (Position, error)

func (f LocatorFunc) Locate(ctx context.Context) (Position, error) { return f(ctx) }

// beginCapture takes a new ticket for the question and derives a context
// that ends with either ctx or the session.
func (s *Session) beginCapture(ctx context.Context, questionID string) (uint64, context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return 0, nil, nil, err
	}
	if _, ok := s.template.Question(questionID); !ok {
		return 0, nil, nil, fmt.Errorf("%w %q", ErrUnknownQuestion, questionID)
	}
	s.tickets[questionID]++
	ticket := s.tickets[questionID]

	cctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ticket, cctx, func() { stop(); cancel() }, nil
}

// finishCapture stores v unless the capture was superseded or the session
// went away in the meantime.
func (s *Session) finishCapture(questionID string, ticket uint64, v model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.tickets[questionID] != ticket {
		return ErrStaleCapture
	}
	if s.state == Validating || s.state == Saving {
		return ErrBusy
	}
	s.status = ""
	s.applyLocked(questionID, v)
	return nil
}

// failCapture ends a capture that produced nothing. If no newer edit or
// capture of the question started meanwhile, the question goes back to the
// capture that was current before this one and status, when not empty,
// becomes the session status. It reports false when the capture was stale.
func (s *Session) failCapture(questionID string, ticket uint64, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.tickets[questionID] != ticket {
		return false
	}
	s.tickets[questionID] = ticket - 1
	if status != "" {
		s.status = status
	}
	return true
}

func (s *Session) abortErr(err error) error {
	if s.ctx.Err() != nil {
		return ErrStaleCapture
	}
	return err
}

// CaptureFile reads the file and stores it as a data URI answer. The read
// stops at the payload limit and when ctx or the session ends. A failed
// capture does not supersede one started before it.
func (s *Session) CaptureFile(ctx context.Context, questionID string, f FileHandle) (err error) {
	ticket, cctx, done, err := s.beginCapture(ctx, questionID)
	if err != nil {
		return err
	}
	defer done()
	defer func() {
		if err != nil {
			s.failCapture(questionID, ticket, "")
		}
	}()

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("form.capture.open: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(ctxReader{cctx, rc}, s.maxPayload+1))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return s.abortErr(err)
		}
		return fmt.Errorf("form.capture.read: %w", err)
	}
	if int64(len(data)) > s.maxPayload {
		log.Warnf("form.capture: %q on instance %d exceeds %d bytes", f.Name(), s.instance.InstanceID, s.maxPayload)
		return ErrPayloadTooLarge
	}

	mt, params := mediaType(f.ContentType(), data)
	v := model.BinaryValue{
		Name:     f.Name(),
		MimeType: mt,
		Payload:  dataurl.New(data, mt, params...).String(),
	}
	return s.finishCapture(questionID, ticket, v)
}

// CaptureLocation asks loc for the position. A failure leaves the draft
// unchanged and sets the status message; the returned error is always a
// *GeolocationError in that case.
func (s *Session) CaptureLocation(ctx context.Context, questionID string, loc Locator) error {
	ticket, cctx, done, err := s.beginCapture(ctx, questionID)
	if err != nil {
		return err
	}
	defer done()

	var pos Position
	if loc == nil {
		err = &GeolocationError{Reason: GeolocationUnavailable}
	} else {
		pos, err = loc.Locate(cctx)
	}
	if err != nil {
		if s.ctx.Err() != nil {
			return ErrStaleCapture
		}
		var gerr *GeolocationError
		if !errors.As(err, &gerr) {
			gerr = &GeolocationError{Reason: GeolocationUnavailable, Err: err}
		}
		if !s.failCapture(questionID, ticket, gerr.message()) {
			return ErrStaleCapture
		}
		log.Debugf("form.capture.location: %s", gerr)
		return gerr
	}

	err = s.finishCapture(questionID, ticket, model.Geo(pos.Latitude, pos.Longitude))
	if errors.Is(err, ErrBusy) {
		s.failCapture(questionID, ticket, "")
	}
	return err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// mediaType keeps the declared type when it is usable and sniffs the
// content otherwise.
func mediaType(declared string, data []byte) (string, []string) {
	mt, params, err := mime.ParseMediaType(declared)
	if err != nil || mt == "application/octet-stream" || strings.Count(mt, "/") != 1 {
		mt, params, err = mime.ParseMediaType(mimetype.Detect(data).String())
		if err != nil {
			return "application/octet-stream", nil
		}
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, params[k])
	}
	return mt, pairs
}
