package airtable

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/mufaddal-lashkar/airtable-client/config"
)

// Client talks to the Airtable REST API on behalf of a logged-in user.
// Every call takes the user's access token: the client itself holds no
// per-user state.
type Client struct {
	apiURL string
	http   *http.Client
	oauth  *oauth2Config
}

func New(cfg config.Config) *Client {
	return &Client{
		apiURL: strings.TrimRight(cfg.AirtableAPIUrl, "/"),
		http:   &http.Client{Timeout: 15 * time.Second},
		oauth:  newOAuthConfig(cfg),
	}
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Base struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PermissionLevel string `json:"permissionLevel,omitempty"`
}

type Table struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

type Field struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Options *FieldOptions `json:"options,omitempty"`
}

type FieldOptions struct {
	Choices []Choice `json:"choices,omitempty"`
}

type Choice struct {
	Name string `json:"name"`
}

// ChoiceNames flattens the select choices configured on the field.
// Empty for non-select fields.
func (f Field) ChoiceNames() []string {
	if f.Options == nil {
		return nil
	}
	names := make([]string, len(f.Options.Choices))
	for i, c := range f.Options.Choices {
		names[i] = c.Name
	}
	return names
}

// APIError is a non-2xx reply from Airtable.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable: status %d: %s", e.StatusCode, e.Body)
}

// Whoami resolves the user owning the access token.
func (c *Client) Whoami(ctx context.Context, token string) (User, error) {
	var user User
	err := c.get(ctx, token, "/v0/meta/whoami", &user)
	if err != nil {
		return User{}, errors.Wrap(err, "whoami")
	}
	return user, nil
}

// ListBases returns every base the token grants access to, following
// offset pagination.
func (c *Client) ListBases(ctx context.Context, token string) ([]Base, error) {
	var bases []Base
	offset := ""
	for {
		path := "/v0/meta/bases"
		if offset != "" {
			path += "?offset=" + url.QueryEscape(offset)
		}

		var page struct {
			Bases  []Base `json:"bases"`
			Offset string `json:"offset"`
		}
		if err := c.get(ctx, token, path, &page); err != nil {
			return nil, errors.Wrap(err, "list bases")
		}

		bases = append(bases, page.Bases...)
		if page.Offset == "" {
			return bases, nil
		}
		offset = page.Offset
	}
}

// ListTables returns the tables of a base together with their field
// schemas, including select choices.
func (c *Client) ListTables(ctx context.Context, token, baseID string) ([]Table, error) {
	var page struct {
		Tables []Table `json:"tables"`
	}
	err := c.get(ctx, token, "/v0/meta/bases/"+url.PathEscape(baseID)+"/tables", &page)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	return page.Tables, nil
}

// CreateRecord writes one record into the given table and returns the
// new record's id. Field values are keyed by Airtable field id;
// typecast lets Airtable coerce strings into numeric fields.
func (c *Client) CreateRecord(ctx context.Context, token, baseID, tableID string, fields map[string]any) (string, error) {
	body, err := json.Marshal(map[string]any{
		"fields":   fields,
		"typecast": true,
	})
	if err != nil {
		return "", errors.Wrap(err, "create record: encode")
	}

	var record struct {
		ID string `json:"id"`
	}
	path := "/v0/" + url.PathEscape(baseID) + "/" + url.PathEscape(tableID)
	err = c.do(ctx, token, http.MethodPost, path, body, &record)
	if err != nil {
		return "", errors.Wrap(err, "create record")
	}
	return record.ID, nil
}

func (c *Client) get(ctx context.Context, token, path string, out any) error {
	return c.do(ctx, token, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, token, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
