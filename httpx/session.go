package httpx

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/mufaddal-lashkar/airtable-client/config"
)

const sessionCookie = "session"

var ErrNoSession = errors.New("no valid session")

// Session is one logged-in browser: the Airtable user it belongs to
// and the access token obtained for it at login.
type Session struct {
	ID           string
	UserID       string
	UserEmail    string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
}

// Sessions stores sessions in the database and hands the browser a
// signed cookie carrying only the session id.
type Sessions struct {
	db     *sql.DB
	secret []byte
	ttl    time.Duration
}

func NewSessions(db *sql.DB, cfg config.Config) *Sessions {
	return &Sessions{
		db:     db,
		secret: []byte(cfg.SessionSecret),
		ttl:    cfg.SessionTTL,
	}
}

// Create persists a fresh session and returns the cookie to set.
func (s *Sessions) Create(ctx context.Context, sess Session) (*http.Cookie, error) {
	id := uuid.Must(uuid.NewV4()).String()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, user_id, user_email, access_token, refresh_token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		sess.UserID,
		sess.UserEmail,
		sess.AccessToken,
		sess.RefreshToken,
		sess.TokenExpiry,
		time.Now(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert session")
	}

	expiry := time.Now().Add(s.ttl)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": id,
		"exp": expiry.Unix(),
	}).SignedString(s.secret)
	if err != nil {
		return nil, errors.Wrap(err, "sign session token")
	}

	return &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Get resolves the session referenced by the request's cookie. Missing,
// expired or tampered cookies all come back as ErrNoSession.
func (s *Sessions) Get(ctx context.Context, r *http.Request) (Session, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return Session{}, ErrNoSession
	}

	id, err := s.parseToken(cookie.Value)
	if err != nil {
		return Session{}, ErrNoSession
	}

	sess := Session{ID: id}
	var expiresAt sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT user_id, user_email, access_token, refresh_token, expires_at
		FROM session WHERE id = ?`,
		id,
	).Scan(&sess.UserID, &sess.UserEmail, &sess.AccessToken, &sess.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "load session")
	}
	if expiresAt.Valid {
		sess.TokenExpiry = expiresAt.Time
	}
	return sess, nil
}

// LatestForUser returns the most recent session of a user. Public form
// submission uses this to write records with the form owner's token.
func (s *Sessions) LatestForUser(ctx context.Context, userID string) (Session, error) {
	sess := Session{UserID: userID}
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_email, access_token, refresh_token, expires_at
		FROM session
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT 1`,
		userID,
	).Scan(&sess.ID, &sess.UserEmail, &sess.AccessToken, &sess.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "load latest session")
	}
	if expiresAt.Valid {
		sess.TokenExpiry = expiresAt.Time
	}
	return sess, nil
}

// Destroy deletes the request's session, if any, and returns the
// expired cookie to send back.
func (s *Sessions) Destroy(ctx context.Context, r *http.Request) (*http.Cookie, error) {
	cleared := &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return cleared, nil
	}
	id, err := s.parseToken(cookie.Value)
	if err != nil {
		return cleared, nil
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM session WHERE id = ?", id)
	if err != nil {
		return cleared, errors.Wrap(err, "delete session")
	}
	return cleared, nil
}

func (s *Sessions) parseToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrNoSession
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrNoSession
	}
	id, _ := claims["sid"].(string)
	if id == "" {
		return "", ErrNoSession
	}
	return id, nil
}
