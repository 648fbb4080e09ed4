package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	json "github.com/goccy/go-json"

	"github.com/mbolis/field-survey/app"
	"github.com/mbolis/field-survey/form"
	"github.com/mbolis/field-survey/httpx"
	"github.com/mbolis/field-survey/log"
	"github.com/mbolis/field-survey/model"
	"github.com/mbolis/field-survey/store"
)

// multipart overhead allowed on top of the payload limit
const uploadSlack = 1 << 20

// OpenDraft opens the instance for editing, or returns the draft already
// open for it.
func OpenDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := instanceID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		sess, err := app.Forms.Open(r.Context(), id)
		if err != nil {
			draftError(w, r, "draft.open", err)
			return
		}

		render.JSON(w, r, sess.Render())
	}
}

func ViewDraft(app app.App) http.HandlerFunc {
	return withDraft(app, func(w http.ResponseWriter, r *http.Request, sess *form.Session) {
		render.JSON(w, r, sess.Render())
	})
}

// CancelDraft drops the draft without saving.
func CancelDraft(app app.App) http.HandlerFunc {
	return withDraft(app, func(w http.ResponseWriter, r *http.Request, sess *form.Session) {
		if err := sess.Cancel(); err != nil {
			draftError(w, r, "draft.cancel", err)
			return
		}
		app.Forms.Close(sess.InstanceID())
		w.WriteHeader(http.StatusNoContent)
	})
}

type answerRequest struct {
	Value json.RawMessage `json:"value"`
}

// SetAnswer sets one answer of the draft. A null value clears it.
func SetAnswer(app app.App) http.HandlerFunc {
	return withDraft(app, func(w http.ResponseWriter, r *http.Request, sess *form.Session) {
		req := answerRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		value, err := model.DecodeAnswer(req.Value)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.answer", "%s", err.Error())
			return
		}

		qid := chi.URLParam(r, "qid")
		if value == nil {
			err = sess.ClearAnswer(qid)
		} else {
			err = sess.SetAnswer(qid, value)
		}
		if err != nil {
			draftError(w, r, "draft.set_answer", err)
			return
		}

		render.JSON(w, r, sess.Render())
	})
}

func ClearAnswer(app app.App) http.HandlerFunc {
	return withDraft(app, func(w http.ResponseWriter, r *http.Request, sess *form.Session) {
		if err := sess.ClearAnswer(chi.URLParam(r, "qid")); err != nil {
			draftError(w, r, "draft.clear_answer", err)
			return
		}

		render.JSON(w, r, sess.Render())
	})
}

// CaptureFile stores the multipart "file" part as the question's answer.
func CaptureFile(app app.App) http.HandlerFunc {
	return withDraft(app, func(w http.ResponseWriter, r *http.Request, sess *form.Session) {
		r.Body = http.MaxBytesReader(w, r.Body, app.MaxPayload+uploadSlack)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				draftError(w, r, "draft.capture_file", form.ErrPayloadTooLarge)
				return
			}
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_multipart")
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_multipart", "missing file part")
			return
		}

		err := sess.CaptureFile(r.Context(), chi.URLParam(r, "qid"), httpx.Upload{FileHeader: files[0]})
		if err != nil {
			draftError(w, r, "draft.capture_file", err)
			return
		}

		render.JSON(w, r, sess.Render())
	})
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	// Error reports a failure on the device: "denied" or "unavailable".
	Error string `json:"error"`
}

// Locate turns the reported reading into a position or a geolocation
// error.
func (l locationRequest) Locate(context.Context) (form.Position, error) {
	switch {
	case l.Error == string(form.GeolocationDenied):
		return form.Position{}, &form.GeolocationError{Reason: form.GeolocationDenied}
	case l.Error != "" || l.Latitude == nil || l.Longitude == nil:
		return form.Position{}, &form.GeolocationError{Reason: form.GeolocationUnavailable}
	}
	return form.Position{Latitude: *l.Latitude, Longitude: *l.Longitude}, nil
}

// CaptureLocation records the device position. A failed reading is not an
// HTTP error: the view carries the status message instead.
func CaptureLocation(app app.App) http.HandlerFunc {
	return withDraft(app, func(w http.ResponseWriter, r *http.Request, sess *form.Session) {
		req := locationRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		err := sess.CaptureLocation(r.Context(), chi.URLParam(r, "qid"), req)
		var gerr *form.GeolocationError
		if err != nil && !errors.As(err, &gerr) {
			draftError(w, r, "draft.capture_location", err)
			return
		}

		render.JSON(w, r, sess.Render())
	})
}

func SubmitDraft(app app.App) http.HandlerFunc {
	return withDraft(app, func(w http.ResponseWriter, r *http.Request, sess *form.Session) {
		state, err := sess.Submit(r.Context())

		var werr *form.StoreWriteError
		switch {
		case errors.As(err, &werr):
			log.Errorf("draft.submit: %s", err)
			render.Status(r, http.StatusInternalServerError)
		case err != nil:
			draftError(w, r, "draft.submit", err)
			return
		case state == form.Invalid:
			render.Status(r, http.StatusUnprocessableEntity)
		}

		render.JSON(w, r, sess.Render())
	})
}

func DismissDraft(app app.App) http.HandlerFunc {
	return withDraft(app, func(w http.ResponseWriter, r *http.Request, sess *form.Session) {
		if err := sess.DismissBanner(); err != nil {
			draftError(w, r, "draft.dismiss", err)
			return
		}

		render.JSON(w, r, sess.Render())
	})
}

type draftHandler func(w http.ResponseWriter, r *http.Request, sess *form.Session)

// withDraft resolves the open draft of the instance in the URL.
func withDraft(app app.App, h draftHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := instanceID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		sess, ok := app.Forms.Get(id)
		if !ok {
			httpx.LogNotFound(w, r, "draft.not_open", id)
			return
		}

		h(w, r, sess)
	}
}

func draftError(w http.ResponseWriter, r *http.Request, code string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, form.ErrUnknownQuestion):
		httpx.LogStatusMsg(w, r, http.StatusNotFound, log.DebugLevel, code, "%s", err.Error())
	case errors.Is(err, form.ErrBusy), errors.Is(err, form.ErrClosed), errors.Is(err, form.ErrStaleCapture):
		httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, code, "%s", err.Error())
	case errors.Is(err, model.ErrInvalidPayload):
		httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, code, "%s", err.Error())
	case errors.Is(err, form.ErrPayloadTooLarge):
		httpx.LogStatusMsg(w, r, http.StatusRequestEntityTooLarge, log.InfoLevel, code, "%s", err.Error())
	default:
		httpx.LogInternalError(w, r, code, err)
	}
}
