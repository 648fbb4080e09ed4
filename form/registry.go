package form

import (
	"context"
	"sync"

	"github.com/mbolis/field-survey/log"
)

// Registry keeps at most one open draft per instance.
type Registry struct {
	store Store
	opts  []Option

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry(store Store, opts ...Option) *Registry {
	return &Registry{
		store:    store,
		opts:     opts,
		sessions: map[int64]*Session{},
	}
}

// Open returns the open draft for the instance, loading a fresh one when
// there is none.
func (r *Registry) Open(ctx context.Context, instanceID int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[instanceID]; ok && !s.Closed() {
		return s, nil
	}
	s, err := Load(ctx, r.store, instanceID, r.opts...)
	if err != nil {
		return nil, err
	}
	r.sessions[instanceID] = s
	log.Debugf("form: opened draft for instance %d", instanceID)
	return s, nil
}

// Get returns the open draft for the instance, if any.
func (r *Registry) Get(instanceID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[instanceID]
	if !ok {
		return nil, false
	}
	if s.Closed() {
		delete(r.sessions, instanceID)
		return nil, false
	}
	return s, true
}

func (r *Registry) Close(instanceID int64) {
	r.mu.Lock()
	s, ok := r.sessions[instanceID]
	delete(r.sessions, instanceID)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// CloseSurvey closes every draft of the given template.
func (r *Registry) CloseSurvey(surveyID string) {
	r.mu.Lock()
	var closing []*Session
	for id, s := range r.sessions {
		if s.SurveyID() == surveyID {
			closing = append(closing, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range closing {
		s.Close()
	}
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	closing := r.sessions
	r.sessions = map[int64]*Session{}
	r.mu.Unlock()

	for _, s := range closing {
		s.Close()
	}
}
