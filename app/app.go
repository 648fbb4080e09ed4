package app

import (
	"github.com/mbolis/field-survey/config"
	"github.com/mbolis/field-survey/export"
	"github.com/mbolis/field-survey/form"
	"github.com/mbolis/field-survey/store"
	"github.com/mbolis/field-survey/syncer"
)

type App struct {
	*store.Store
	Syncer   *syncer.Coordinator
	Forms    *form.Registry
	Exporter *export.Packager
	config.Config
}

// New wires the components around an open store.
func New(s *store.Store, cfg config.Config) App {
	return App{
		Store:    s,
		Syncer:   syncer.New(s, syncer.WithHTTPClient(nil, cfg.FetchTimeout)),
		Forms:    form.NewRegistry(s, form.WithMaxPayload(cfg.MaxPayload)),
		Exporter: export.New(s),
		Config:   cfg,
	}
}
