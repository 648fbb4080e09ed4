// Package form edits one survey instance against its template.
//
// A Session holds a draft copy of the instance's answers. Nothing reaches
// the store until Submit validates the draft and commits it as a single
// replacement of the instance's answers. The submission lifecycle is
//
//	Idle -> Validating -> Invalid -> (edit) -> Idle
//	Idle -> Validating -> Saving -> Success | Error -> (dismiss) -> Idle
//
// and Cancel throws the draft away without writing.
package form

import (
	"context"
	"fmt"
	"sync"

	"github.com/mbolis/field-survey/config"
	"github.com/mbolis/field-survey/log"
	"github.com/mbolis/field-survey/model"
)

type Store interface {
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	GetInstance(ctx context.Context, id int64) (*model.Instance, error)
	UpdateInstanceAnswers(ctx context.Context, id int64, answers model.Answers) error
}

type State string

const (
	Idle       State = "idle"
	Validating State = "validating"
	Invalid    State = "invalid"
	Saving     State = "saving"
	Success    State = "success"
	Error      State = "error"
	Cancelled  State = "cancelled"
)

const (
	bannerInvalid = "Please answer all required questions."
	bannerSaved   = "Survey saved!"
	bannerFailed  = "The survey could not be saved. Your answers are still here, try again."
)

type Option func(*Session)

// WithMaxPayload bounds the size of captured files.
func WithMaxPayload(n int64) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxPayload = n
		}
	}
}

type Session struct {
	store      Store
	maxPayload int64

	// session lifetime; cancelling it aborts in-flight captures
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	template *model.Template
	instance *model.Instance
	original model.Answers
	draft    model.Answers
	state    State
	invalid  map[string]bool
	order    []string
	banner   string
	status   string
	focus    string
	tickets  map[string]uint64
	closed   bool
}

// Load starts a draft for the instance with the given id.
func Load(ctx context.Context, store Store, instanceID int64, opts ...Option) (*Session, error) {
	inst, err := store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("form.load.instance: %w", err)
	}
	tpl, err := store.GetTemplate(ctx, inst.SurveyID)
	if err != nil {
		return nil, fmt.Errorf("form.load.template: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:      store,
		maxPayload: config.DefaultMaxPayload,
		ctx:        sctx,
		cancel:     cancel,
		template:   tpl,
		instance:   inst,
		original:   inst.Answers.Clone(),
		draft:      inst.Answers.Clone(),
		state:      Idle,
		invalid:    map[string]bool{},
		tickets:    map[string]uint64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) InstanceID() int64 {
	return s.instance.InstanceID
}

func (s *Session) SurveyID() string {
	return s.instance.SurveyID
}

func (s *Session) Template() *model.Template {
	return s.template
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Invalid returns the question ids that failed the last validation and have
// not been edited since, in template order.
func (s *Session) Invalid() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidLocked()
}

func (s *Session) invalidLocked() []string {
	var out []string
	for _, id := range s.order {
		if s.invalid[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

// Status is the last non-fatal message, such as a failed location capture.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Focus names the question to scroll to after a failed validation.
func (s *Session) Focus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

// Draft returns a copy of the current draft answers.
func (s *Session) Draft() model.Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// editable reports why the draft can't be changed right now, if it can't.
func (s *Session) editableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.state == Validating || s.state == Saving {
		return ErrBusy
	}
	return nil
}

// SetAnswer records v for the question in the draft. It clears the
// question's validation flag and any banner, and supersedes a capture in
// flight for the same question. A binary answer must carry a data URI or no
// payload at all.
func (s *Session) SetAnswer(questionID string, v model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	if _, ok := s.template.Question(questionID); !ok {
		return fmt.Errorf("%w %q", ErrUnknownQuestion, questionID)
	}
	if b, ok := v.(model.BinaryValue); ok {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("question %q: %w", questionID, err)
		}
	}
	s.tickets[questionID]++
	s.applyLocked(questionID, v)
	return nil
}

// ClearAnswer removes the question's answer from the draft.
func (s *Session) ClearAnswer(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	if _, ok := s.template.Question(questionID); !ok {
		return fmt.Errorf("%w %q", ErrUnknownQuestion, questionID)
	}
	s.tickets[questionID]++
	delete(s.draft, questionID)
	s.touchLocked(questionID)
	return nil
}

func (s *Session) applyLocked(questionID string, v model.Answer) {
	s.draft[questionID] = v
	s.touchLocked(questionID)
}

func (s *Session) touchLocked(questionID string) {
	delete(s.invalid, questionID)
	s.banner = ""
	if s.focus == questionID {
		s.focus = ""
	}
	s.state = Idle
}

// Submit validates the draft and, if every required question is answered,
// commits it. Failed validation is not an error: the returned state is
// Invalid and Invalid() lists the questions. A store failure returns Error
// with a *StoreWriteError and keeps the draft.
func (s *Session) Submit(ctx context.Context) (State, error) {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return s.state, err
	}

	s.state = Validating
	missing := MissingRequired(s.template, s.draft)
	if len(missing) > 0 {
		s.order = missing
		s.invalid = make(map[string]bool, len(missing))
		for _, id := range missing {
			s.invalid[id] = true
		}
		s.focus = missing[0]
		s.banner = bannerInvalid
		s.state = Invalid
		s.mu.Unlock()
		log.Debugf("form.submit: instance %d missing %v", s.instance.InstanceID, missing)
		return Invalid, nil
	}

	s.order, s.invalid, s.focus = nil, map[string]bool{}, ""
	s.banner = ""
	snapshot := s.draft.Clone()
	s.state = Saving
	s.mu.Unlock()

	err := s.store.UpdateInstanceAnswers(ctx, s.instance.InstanceID, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Errorf("form.submit.save: instance %d: %s", s.instance.InstanceID, err)
		s.state = Error
		s.banner = bannerFailed
		return Error, &StoreWriteError{Err: err}
	}
	s.instance.Answers = snapshot
	s.original = snapshot.Clone()
	s.state = Success
	s.banner = bannerSaved
	return Success, nil
}

// DismissBanner clears the Success or Error banner and returns to Idle.
func (s *Session) DismissBanner() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	if s.state == Success || s.state == Error {
		s.state = Idle
		s.banner = ""
	}
	return nil
}

// Cancel restores the answers loaded from the store, discards the draft and
// closes the session. Nothing is written.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	s.draft = s.original.Clone()
	s.state = Cancelled
	s.closeLocked()
	return nil
}

// Close ends the session and aborts captures in flight. Later completions
// are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}
