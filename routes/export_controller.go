package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mbolis/field-survey/app"
	"github.com/mbolis/field-survey/export"
	"github.com/mbolis/field-survey/httpx"
	"github.com/mbolis/field-survey/log"
	"github.com/mbolis/field-survey/store"
)

// ExportTemplate downloads every instance of the template as a zip archive.
func ExportTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		archive, err := app.Exporter.Package(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "export", id)
			return
		}
		if errors.Is(err, export.ErrNoInstances) {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "export.no_instances", "There are no instances to export.")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "export", err)
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Name))
		w.Header().Set("Content-Length", strconv.Itoa(len(archive.Data)))
		_, _ = w.Write(archive.Data)
	}
}
