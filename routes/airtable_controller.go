package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mufaddal-lashkar/airtable-client/airtable"
	"github.com/mufaddal-lashkar/airtable-client/app"
	"github.com/mufaddal-lashkar/airtable-client/httpx"
	"github.com/mufaddal-lashkar/airtable-client/log"
	"github.com/mufaddal-lashkar/airtable-client/routes/middlewares"
)

// The builder's base/table/field pickers are fed straight from the
// Airtable metadata API; nothing from here is persisted until a field
// becomes a question.

func ListBases(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middlewares.SessionFromContext(r.Context())

		bases, err := app.Airtable.ListBases(r.Context(), sess.AccessToken)
		if err != nil {
			logUpstreamError(w, "airtable.list_bases", err)
			return
		}

		render.JSON(w, r, bases)
	}
}

func ListTables(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middlewares.SessionFromContext(r.Context())
		baseID := chi.URLParam(r, "baseId")

		tables, err := app.Airtable.ListTables(r.Context(), sess.AccessToken, baseID)
		if err != nil {
			logUpstreamError(w, "airtable.list_tables", err)
			return
		}

		render.JSON(w, r, tables)
	}
}

// logUpstreamError maps Airtable failures onto this API: an upstream
// 401 means the stored token no longer works and the user must log in
// again; everything else is a transient gateway problem.
func logUpstreamError(w http.ResponseWriter, code string, err error) {
	var apiErr *airtable.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, code+".token")
		return
	}
	log.Errorf("%s: %s", code, err)
	httpx.LogStatus(w, http.StatusBadGateway, log.WarnLevel, code)
}
