package middlewares

import (
	"context"
	"net/http"

	"github.com/mufaddal-lashkar/airtable-client/httpx"
	"github.com/mufaddal-lashkar/airtable-client/log"
)

type ctxKey int

const sessionKey ctxKey = iota

// SessionAuth rejects requests without a valid session cookie and puts
// the resolved session on the request context for controllers.
func SessionAuth(sessions *httpx.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Get(r.Context(), r)
			if err != nil {
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.session")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by SessionAuth. The
// zero Session when the middleware did not run.
func SessionFromContext(ctx context.Context) httpx.Session {
	sess, _ := ctx.Value(sessionKey).(httpx.Session)
	return sess
}
