// Package syncer retrieves survey templates from a URL and adopts them into
// the local store under a version policy: unknown templates are inserted,
// newer versions replace the stored one only after confirmation, and equal
// or older versions are left alone.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mbolis/field-survey/log"
	"github.com/mbolis/field-survey/model"
	"github.com/mbolis/field-survey/store"
)

type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	PutTemplate(ctx context.Context, t *model.Template) error
}

type Outcome string

const (
	Inserted Outcome = "inserted"
	Updated  Outcome = "updated"
	Declined Outcome = "declined"
	UpToDate Outcome = "up-to-date"
)

type Result struct {
	Outcome Outcome `json:"outcome"`
	// Template is what the store holds once the sync is over.
	Template *model.Template `json:"template"`
	// RemoteVersion is the version of the retrieved document.
	RemoteVersion int `json:"remoteVersion"`
	// PreviousVersion is the stored version before the sync, 0 if none.
	PreviousVersion int `json:"previousVersion,omitempty"`
}

func (r Result) Message() string {
	switch r.Outcome {
	case Inserted:
		return fmt.Sprintf("Added %q (version %d).", r.Template.Title, r.RemoteVersion)
	case Updated:
		return fmt.Sprintf("Updated %q from version %d to %d.", r.Template.Title, r.PreviousVersion, r.RemoteVersion)
	case Declined:
		return fmt.Sprintf("Kept version %d of %q.", r.PreviousVersion, r.Template.Title)
	case UpToDate:
		return "You already have the latest version of this survey."
	}
	return string(r.Outcome)
}

// Update describes a pending replacement of a stored template.
type Update struct {
	Current *model.Template
	Remote  *model.Template
}

// Confirmer decides whether a newer remote version replaces the stored one.
// The sync does not go on until it returns. Returning false is a decline,
// not an error.
type Confirmer interface {
	ConfirmUpdate(ctx context.Context, u Update) (bool, error)
}

type ConfirmFunc func(ctx context.Context, u Update) (bool, error)

func (f ConfirmFunc) ConfirmUpdate(ctx context.Context, u Update) (bool, error) {
	return f(ctx, u)
}

// Always answers every confirmation with accept.
func Always(accept bool) Confirmer {
	return ConfirmFunc(func(context.Context, Update) (bool, error) {
		return accept, nil
	})
}

type Option func(*Coordinator)

func WithFetcher(f Fetcher) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithHTTPClient sets the client and timeout of the default fetcher.
func WithHTTPClient(client *http.Client, timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.fetcher = &HTTPFetcher{Client: client, Timeout: timeout}
	}
}

// WithConfirmer sets the confirmer used by Sync. Without one, upgrades are
// declined.
func WithConfirmer(confirmer Confirmer) Option {
	return func(c *Coordinator) {
		if confirmer != nil {
			c.confirmer = confirmer
		}
	}
}

// Coordinator holds no lock: callers must not start a second sync while one
// is outstanding.
type Coordinator struct {
	store     TemplateStore
	fetcher   Fetcher
	confirmer Confirmer
}

func New(s TemplateStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     s,
		fetcher:   &HTTPFetcher{Client: http.DefaultClient},
		confirmer: Always(false),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Sync(ctx context.Context, url string) (Result, error) {
	return c.SyncWith(ctx, url, c.confirmer)
}

// SyncWith runs one sync asking confirmer, instead of the configured one,
// about upgrades. Nothing is written to the store unless the returned
// outcome is Inserted or Updated.
func (c *Coordinator) SyncWith(ctx context.Context, url string, confirmer Confirmer) (Result, error) {
	data, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			err = &NetworkError{URL: url, Err: err}
		}
		log.Debugf("sync.fetch: %s", err)
		return Result{}, err
	}

	remote, err := parseDocument(data)
	if err != nil {
		log.Debugf("sync.validate: %s", err)
		return Result{}, err
	}

	existing, err := c.store.GetTemplate(ctx, remote.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("sync.lookup: %w", err)
	}

	if existing == nil {
		if err := c.store.PutTemplate(ctx, remote); err != nil {
			return Result{}, fmt.Errorf("sync.insert: %w", err)
		}
		log.Infof("sync: added template %q version %d", remote.ID, remote.Version)
		return Result{Outcome: Inserted, Template: remote, RemoteVersion: remote.Version}, nil
	}

	res := Result{
		Template:        existing,
		RemoteVersion:   remote.Version,
		PreviousVersion: existing.Version,
	}
	if remote.Version <= existing.Version {
		res.Outcome = UpToDate
		return res, nil
	}

	accepted, err := confirmer.ConfirmUpdate(ctx, Update{Current: existing, Remote: remote})
	if err != nil {
		return Result{}, fmt.Errorf("sync.confirm: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !accepted {
		res.Outcome = Declined
		return res, nil
	}

	if err := c.store.PutTemplate(ctx, remote); err != nil {
		return Result{}, fmt.Errorf("sync.replace: %w", err)
	}
	log.Infof("sync: updated template %q from version %d to %d", remote.ID, existing.Version, remote.Version)
	res.Outcome = Updated
	res.Template = remote
	return res, nil
}
