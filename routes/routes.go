package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mufaddal-lashkar/airtable-client/app"
	"github.com/mufaddal-lashkar/airtable-client/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Route("/auth", func(r chi.Router) {
		r.Get("/login", Login(app))
		r.Get("/callback", LoginCallback(app))
		r.Get("/me", Me(app))
		r.Post("/logout", Logout(app))
	})

	root.Mount("/api", apiRouter(app))
	root.Mount("/", servePublicFiles())

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	// public submission surface
	api.Get(`/forms/{id:^\d+$}/public`, PublicGetFormById(app))
	api.Post(`/forms/{id:^\d+$}/submissions`, PublicSubmitForm(app))

	api.Group(func(r chi.Router) {
		r.Use(middlewares.SessionAuth(app.Sessions))

		// Airtable schema proxy for the builder's pickers
		r.Get("/airtable/bases", ListBases(app))
		r.Get("/airtable/bases/{baseId}/tables", ListTables(app))

		// CRUD form
		r.Post("/forms", CreateForm(app))
		r.Get("/forms", ListForms(app))
		r.Get(`/forms/{id:^\d+$}`, GetFormById(app))
		r.Put(`/forms/{id:^\d+$}`, UpdateForm(app))
		r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))

		// builder schema operations
		r.Post(`/forms/{id:^\d+$}/questions`, AddQuestion(app))
		r.Delete(`/forms/{id:^\d+$}/questions/{key}`, RemoveQuestion(app))
		r.Get(`/forms/{id:^\d+$}/questions/{key}/rule-targets`, RuleTargetCandidates(app))
		r.Post(`/forms/{id:^\d+$}/questions/{key}/rules`, AddRule(app))
		r.Put(`/forms/{id:^\d+$}/order`, ReorderQuestions(app))

		r.Get(`/forms/{id:^\d+$}/responses`, GetFormResponses(app))
		r.Get(`/forms/{id:^\d+$}/responses/export`, ExportFormResponses(app))
	})

	return api
}

func servePublicFiles() http.Handler {
	return http.FileServer(http.Dir("public"))
}
