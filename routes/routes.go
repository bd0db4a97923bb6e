package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if app.BodyLimit > 0 {
		root.Use(middleware.RequestSize(app.BodyLimit))
	}

	root.Get("/health", Health(app))
	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	authenticate := middlewares.Authenticate(app.TokenSecret, app.Resolver, app.Debug)

	api.Route("/auth", func(r chi.Router) {
		r.With(middlewares.RateLimit(app.Limiters.SignUp, app.Debug)).Post("/signup", SignUp(app))
		r.With(middlewares.RateLimit(app.Limiters.SignIn, app.Debug)).Post("/signin", SignIn(app))
		r.Post("/refresh", Refresh(app))
		r.With(authenticate).Post("/logout", Logout(app))
	})

	api.Get("/f/{slug}", PublicGetForm(app))

	api.Route("/forms", func(r chi.Router) {
		r.With(middlewares.RateLimit(app.Limiters.Submit, app.Debug)).
			Post("/{id}/submit", PublicSubmitForm(app))

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			// CRUD form
			r.Get("/", ListForms(app))
			r.Post("/", CreateForm(app))
			r.Get("/{id}", GetForm(app))
			r.Put("/{id}", UpdateForm(app))
			r.Delete("/{id}", DeleteForm(app))
			r.Get("/{id}/preview", PreviewForm(app))

			r.Get("/{id}/submissions", ListSubmissions(app))
			r.Put("/{id}/submissions/{sid}/read", MarkSubmissionRead(app))
			r.Get("/{id}/analytics", GetFormAnalytics(app))
		})
	})

	return api
}
