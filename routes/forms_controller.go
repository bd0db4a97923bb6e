package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/model"
)

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := pagination(r)
		forms, err := app.Forms.ListForms(r.Context(), caller(r), page, limit)
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, forms, "Forms retrieved successfully")
	}
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.FormInput
		if err := decodeBody(r, &in); err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}

		form, err := app.Forms.CreateForm(r.Context(), caller(r), in)
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.SuccessStatus(w, r, http.StatusCreated, form, "Form created successfully")
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return getForm(app, "Form retrieved successfully")
}

// PreviewForm hands the owner their form whatever its status.
func PreviewForm(app app.App) http.HandlerFunc {
	return getForm(app, "Form retrieved successfully for preview")
}

func getForm(app app.App, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := app.Forms.GetForm(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, form, msg)
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.FormInput
		if err := decodeBody(r, &in); err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}

		form, err := app.Forms.UpdateForm(r.Context(), caller(r), chi.URLParam(r, "id"), in)
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, form, "Form updated successfully")
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := app.Forms.DeleteForm(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, nil, "Form deleted successfully")
	}
}

func ListSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := pagination(r)
		subs, err := app.Submissions.ListSubmissions(r.Context(), caller(r), chi.URLParam(r, "id"), page, limit)
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, subs, "Submissions retrieved successfully")
	}
}

func MarkSubmissionRead(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := app.Submissions.MarkAsRead(r.Context(), caller(r), chi.URLParam(r, "id"), chi.URLParam(r, "sid"))
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, nil, "Submission marked as read")
	}
}

func GetFormAnalytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analytics, err := app.Submissions.GetFormAnalytics(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, analytics, "Analytics retrieved successfully")
	}
}
