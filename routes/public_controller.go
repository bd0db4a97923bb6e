package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/submissions"
)

func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := app.Forms.GetPublicForm(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, form, "Form retrieved successfully")
	}
}

type submitted struct {
	SubmissionID string `json:"submissionId"`
	Message      string `json:"message"`
}

func PublicSubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submissions.Request
		if err := decodeBody(r, &req); err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}

		meta := submissions.Meta{
			IPAddress: httpx.ClientIP(r),
			UserAgent: r.UserAgent(),
		}
		id, err := app.Submissions.SubmitForm(r.Context(), chi.URLParam(r, "id"), req, meta)
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}

		const msg = "Form submitted successfully"
		httpx.SuccessStatus(w, r, http.StatusCreated, submitted{id, msg}, msg)
	}
}

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.Success(w, r, map[string]string{"status": "ok"}, "OK")
	}
}
