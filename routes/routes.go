package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/field-survey/app"
	"github.com/mbolis/field-survey/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middlewares.RequestLogger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))
	root.Mount("/", servePublicFiles(app.PublicDir))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Route("/templates", func(r chi.Router) {
		r.Get("/", ListTemplates(app))
		r.With(middlewares.SingleFlight("sync.busy")).Post("/sync", SyncTemplate(app))

		r.Get("/{id}", GetTemplate(app))
		r.Delete("/{id}", DeleteTemplate(app))

		r.Get("/{id}/instances", ListInstances(app))
		r.Post("/{id}/instances", CreateInstance(app))

		r.Get("/{id}/export", ExportTemplate(app))
	})

	api.Route(`/instances/{id:^\d+$}`, func(r chi.Router) {
		r.Get("/", GetInstance(app))
		r.Delete("/", DeleteInstance(app))

		r.Route("/draft", func(r chi.Router) {
			r.Post("/", OpenDraft(app))
			r.Get("/", ViewDraft(app))
			r.Delete("/", CancelDraft(app))

			r.Put("/answers/{qid}", SetAnswer(app))
			r.Delete("/answers/{qid}", ClearAnswer(app))
			r.Post("/answers/{qid}/file", CaptureFile(app))
			r.Post("/answers/{qid}/location", CaptureLocation(app))

			r.Post("/submit", SubmitDraft(app))
			r.Post("/dismiss", DismissDraft(app))
		})
	})

	return api
}

func servePublicFiles(dir string) http.Handler {
	if dir == "" {
		dir = "public"
	}
	return http.FileServer(http.Dir(dir))
}

func instanceID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
