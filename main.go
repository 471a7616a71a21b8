package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/mufaddal-lashkar/airtable-client/airtable"
	"github.com/mufaddal-lashkar/airtable-client/app"
	"github.com/mufaddal-lashkar/airtable-client/config"
	"github.com/mufaddal-lashkar/airtable-client/database"
	"github.com/mufaddal-lashkar/airtable-client/httpx"
	"github.com/mufaddal-lashkar/airtable-client/log"
	"github.com/mufaddal-lashkar/airtable-client/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	app := app.App{
		DB:       db,
		Airtable: airtable.New(cfg),
		Sessions: httpx.NewSessions(db, cfg),
		Config:   cfg,
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
