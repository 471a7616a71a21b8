package airtable

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/mufaddal-lashkar/airtable-client/config"
)

type oauth2Config = oauth2.Config

// Airtable requires PKCE on its authorization-code flow, so every
// login carries a verifier the callback must replay.

func newOAuthConfig(cfg config.Config) *oauth2Config {
	return &oauth2.Config{
		ClientID:     cfg.AirtableClientID,
		ClientSecret: cfg.AirtableSecret,
		RedirectURL:  cfg.RedirectUrl,
		Scopes: []string{
			"data.records:read",
			"data.records:write",
			"schema.bases:read",
			"user.email:read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://airtable.com/oauth2/v1/authorize",
			TokenURL: "https://airtable.com/oauth2/v1/token",
		},
	}
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// LoginURL builds the authorize redirect for one login attempt.
func (c *Client) LoginURL(state, verifier string) string {
	return c.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades the callback code for a token set.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return c.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}
