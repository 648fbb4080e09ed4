package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/field-survey/app"
	"github.com/mbolis/field-survey/httpx"
	"github.com/mbolis/field-survey/log"
	"github.com/mbolis/field-survey/model"
	"github.com/mbolis/field-survey/store"
	"github.com/mbolis/field-survey/syncer"
)

// UpdateAvailable is reported when a newer version exists but the request
// did not confirm the upgrade.
const UpdateAvailable syncer.Outcome = "update-available"

func ListTemplates(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := app.Store.ListTemplates(r.Context())
		if err != nil {
			httpx.LogInternalError(w, r, "db.list_templates", err)
			return
		}
		if templates == nil {
			templates = []model.Template{}
		}

		render.JSON(w, r, map[string]any{
			"templates": templates,
		})
	}
}

func GetTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		tpl, err := app.Store.GetTemplate(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "get_template", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_template", err)
			return
		}

		render.JSON(w, r, tpl)
	}
}

// DeleteTemplate removes the template and all of its instances. Open drafts
// of those instances are closed first.
func DeleteTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		app.Forms.CloseSurvey(id)

		err := app.Store.DeleteTemplate(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "delete_template", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_template", err)
			return
		}

		log.Infof("deleted template %q", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

type syncRequest struct {
	URL     string `json:"url"`
	Confirm bool   `json:"confirm"`
}

type syncResponse struct {
	syncer.Result
	Message string `json:"message"`
}

// SyncTemplate runs one sync. The request body's confirm flag answers the
// upgrade question up front: without it a newer version is only reported.
func SyncTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := syncRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if req.URL == "" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.sync.url", "url is required")
			return
		}

		asked := false
		confirmer := syncer.ConfirmFunc(func(context.Context, syncer.Update) (bool, error) {
			asked = true
			return req.Confirm, nil
		})

		res, err := app.Syncer.SyncWith(r.Context(), req.URL, confirmer)
		if err != nil {
			syncError(w, r, err)
			return
		}

		resp := syncResponse{Result: res, Message: res.Message()}
		if res.Outcome == syncer.Declined && asked && !req.Confirm {
			resp.Outcome = UpdateAvailable
			resp.Message = fmt.Sprintf("Version %d of %q is available (you have version %d).",
				res.RemoteVersion, res.Template.Title, res.PreviousVersion)
		}
		if res.Outcome == syncer.Inserted {
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, resp)
	}
}

func syncError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *syncer.ValidationError
	var nerr *syncer.NetworkError
	switch {
	case errors.As(err, &verr):
		log.Debugf("sync.invalid_template: %s", err)
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]any{
			"error":  "Invalid survey template format.",
			"code":   "sync.invalid_template",
			"fields": verr.Fields,
		})
	case errors.As(err, &nerr):
		httpx.LogStatusMsg(w, r, http.StatusBadGateway, log.InfoLevel, "sync.network", "%s", nerr.Error())
	default:
		httpx.LogInternalError(w, r, "sync", err)
	}
}
