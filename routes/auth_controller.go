package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/gofrs/uuid"

	"github.com/mufaddal-lashkar/airtable-client/airtable"
	"github.com/mufaddal-lashkar/airtable-client/app"
	"github.com/mufaddal-lashkar/airtable-client/httpx"
	"github.com/mufaddal-lashkar/airtable-client/log"
)

const (
	stateCookie    = "oauth_state"
	verifierCookie = "oauth_verifier"
)

// Login starts the Airtable OAuth flow: it parks the state nonce and
// PKCE verifier in short-lived cookies and hands the SPA the authorize
// URL to redirect to.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.Must(uuid.NewV4()).String()
		verifier := airtable.NewVerifier()

		http.SetCookie(w, loginCookie(stateCookie, state))
		http.SetCookie(w, loginCookie(verifierCookie, verifier))

		render.JSON(w, r, map[string]any{
			"url": app.Airtable.LoginURL(state, verifier),
		})
	}
}

// LoginCallback finishes the flow: state check, code exchange, whoami,
// session creation, then a redirect back into the SPA.
func LoginCallback(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := r.Cookie(stateCookie)
		if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "auth.callback.state")
			return
		}
		verifier, err := r.Cookie(verifierCookie)
		if err != nil || verifier.Value == "" {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "auth.callback.verifier")
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "auth.callback.code")
			return
		}

		token, err := app.Airtable.Exchange(r.Context(), code, verifier.Value)
		if err != nil {
			log.Errorf("auth.callback.exchange: %s", err)
			httpx.LogStatus(w, http.StatusBadGateway, log.DebugLevel, "auth.callback.exchange")
			return
		}

		user, err := app.Airtable.Whoami(r.Context(), token.AccessToken)
		if err != nil {
			log.Errorf("auth.callback.whoami: %s", err)
			httpx.LogStatus(w, http.StatusBadGateway, log.DebugLevel, "auth.callback.whoami")
			return
		}

		cookie, err := app.Sessions.Create(r.Context(), httpx.Session{
			UserID:       user.ID,
			UserEmail:    user.Email,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenExpiry:  token.Expiry,
		})
		if err != nil {
			httpx.LogInternalError(w, "auth.callback.session", err)
			return
		}

		http.SetCookie(w, cookie)
		http.SetCookie(w, expiredCookie(stateCookie))
		http.SetCookie(w, expiredCookie(verifierCookie))

		http.Redirect(w, r, app.FrontendUrl, http.StatusFound)
	}
}

// Me reports the logged-in user, or 401 when there is none. The SPA
// treats the result only as present or absent.
func Me(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := app.Sessions.Get(r.Context(), r)
		if err != nil {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.me")
			return
		}

		render.JSON(w, r, map[string]any{
			"id":    sess.UserID,
			"email": sess.UserEmail,
		})
	}
}

func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := app.Sessions.Destroy(r.Context(), r)
		if err != nil {
			httpx.LogInternalError(w, "auth.logout", err)
			return
		}
		http.SetCookie(w, cookie)
		w.WriteHeader(http.StatusNoContent)
	}
}

func loginCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
