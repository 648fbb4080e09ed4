package routes

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/field-survey/app"
	"github.com/mbolis/field-survey/httpx"
	"github.com/mbolis/field-survey/log"
	"github.com/mbolis/field-survey/model"
	"github.com/mbolis/field-survey/store"
)

// ListInstances lists the instances of a template, oldest first.
func ListInstances(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")
		_, err := app.Store.GetTemplate(r.Context(), surveyID)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "list_instances", surveyID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_template", err)
			return
		}

		instances, err := app.Store.ListInstancesBySurvey(r.Context(), surveyID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.list_instances", err)
			return
		}
		if instances == nil {
			instances = []model.Instance{}
		}
		sort.Slice(instances, func(i, j int) bool {
			a, b := instances[i], instances[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.InstanceID < b.InstanceID
		})

		render.JSON(w, r, map[string]any{
			"instances": instances,
		})
	}
}

// CreateInstance starts a new, empty instance of the template.
func CreateInstance(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")
		_, err := app.Store.GetTemplate(r.Context(), surveyID)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "create_instance", surveyID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_template", err)
			return
		}

		id, err := app.Store.AddInstance(r.Context(), model.Instance{SurveyID: surveyID})
		if err != nil {
			httpx.LogInternalError(w, r, "db.add_instance", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"instanceId": id,
		})
	}
}

func GetInstance(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := instanceID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		inst, err := app.Store.GetInstance(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "get_instance", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_instance", err)
			return
		}

		render.JSON(w, r, inst)
	}
}

func DeleteInstance(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := instanceID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		app.Forms.Close(id)

		err = app.Store.DeleteInstance(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "delete_instance", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_instance", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
