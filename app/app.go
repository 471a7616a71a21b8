package app

import (
	"database/sql"

	"github.com/mufaddal-lashkar/airtable-client/airtable"
	"github.com/mufaddal-lashkar/airtable-client/config"
	"github.com/mufaddal-lashkar/airtable-client/httpx"
)

type App struct {
	*sql.DB
	Airtable *airtable.Client
	Sessions *httpx.Sessions
	config.Config
}
