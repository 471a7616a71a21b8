package airtable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/mufaddal-lashkar/airtable-client/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Config{
		AirtableAPIUrl:   srv.URL,
		AirtableClientID: "client-id",
		RedirectUrl:      "http://localhost/auth/callback",
	})
}

func TestWhoami(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/meta/whoami" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Write([]byte(`{"id":"usr123","email":"a@b.c"}`))
	}))

	user, err := c.Whoami(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Whoami: %v", err)
	}
	if user.ID != "usr123" || user.Email != "a@b.c" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestListBasesPaginates(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			w.Write([]byte(`{"bases":[{"id":"app1","name":"One"}],"offset":"next"}`))
			return
		}
		w.Write([]byte(`{"bases":[{"id":"app2","name":"Two"}]}`))
	}))

	bases, err := c.ListBases(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListBases: %v", err)
	}

	want := []Base{
		{ID: "app1", Name: "One"},
		{ID: "app2", Name: "Two"},
	}
	if diff := cmp.Diff(want, bases); diff != "" {
		t.Fatalf("bases mismatch (-want +got):\n%s", diff)
	}
}

func TestListTables(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/meta/bases/app1/tables" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"tables":[
			{"id":"tbl1","name":"People","fields":[
				{"id":"fld1","name":"Name","type":"singleLineText"},
				{"id":"fld2","name":"Color","type":"singleSelect","options":{"choices":[{"name":"Red"},{"name":"Blue"}]}}
			]}
		]}`))
	}))

	tables, err := c.ListTables(context.Background(), "tok", "app1")
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(tables) != 1 || len(tables[0].Fields) != 2 {
		t.Fatalf("unexpected tables %+v", tables)
	}

	if got := tables[0].Fields[0].ChoiceNames(); got != nil {
		t.Fatalf("non-select field has no choices, got %v", got)
	}
	if diff := cmp.Diff([]string{"Red", "Blue"}, tables[0].Fields[1].ChoiceNames()); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateRecord(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v0/app1/tbl1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var body struct {
			Fields   map[string]any `json:"fields"`
			Typecast bool           `json:"typecast"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if !body.Typecast {
			t.Errorf("typecast must be requested")
		}
		if body.Fields["fld1"] != "hello" {
			t.Errorf("unexpected fields %v", body.Fields)
		}

		w.Write([]byte(`{"id":"recABC"}`))
	}))

	id, err := c.CreateRecord(context.Background(), "tok", "app1", "tbl1", map[string]any{"fld1": "hello"})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if id != "recABC" {
		t.Fatalf("record id = %q, want recABC", id)
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"NOT_AUTHORIZED"}`, http.StatusUnauthorized)
	}))

	_, err := c.ListBases(context.Background(), "stale")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestLoginURL(t *testing.T) {
	t.Parallel()

	c := New(config.Config{
		AirtableClientID: "client-id",
		RedirectUrl:      "http://localhost/auth/callback",
	})

	url := c.LoginURL("state123", NewVerifier())
	for _, want := range []string{"airtable.com/oauth2/v1/authorize", "state=state123", "code_challenge=", "client_id=client-id"} {
		if !strings.Contains(url, want) {
			t.Fatalf("login url %q missing %q", url, want)
		}
	}
}
