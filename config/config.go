package config

import (
	"errors"
	"flag"
	"net"
	"regexp"
	"strconv"
	"time"
)

type Config struct {
	Addr             string
	DBUrl            string
	SessionSecret    string
	SessionTTL       time.Duration
	AirtableClientID string
	AirtableSecret   string
	AirtableAPIUrl   string
	RedirectUrl      string
	FrontendUrl      string
	Debug            bool
}

func ParseFlags() (cfg Config, err error) {
	var host string
	flag.StringVar(&host, "host", "0.0.0.0", "listen host name (default 0.0.0.0)")
	var port uint
	flag.UintVar(&port, "port", 80, "listen port number (default 80)")
	flag.StringVar(&cfg.DBUrl, "db-url", "airform.sqlite", "path to SQLite3 DB file (default airform.sqlite)")
	flag.StringVar(&cfg.SessionSecret, "session-secret", "", "secret key for session cookie signing")
	var ttl uint
	flag.UintVar(&ttl, "session-ttl", 7*24*3600, "session TTL in seconds (default one week)")
	flag.StringVar(&cfg.AirtableClientID, "airtable-client-id", "", "Airtable OAuth client id")
	flag.StringVar(&cfg.AirtableSecret, "airtable-client-secret", "", "Airtable OAuth client secret (empty for a public PKCE client)")
	flag.StringVar(&cfg.AirtableAPIUrl, "airtable-api-url", "https://api.airtable.com", "Airtable API base URL")
	flag.StringVar(&cfg.RedirectUrl, "redirect-url", "", "OAuth callback URL registered with Airtable")
	flag.StringVar(&cfg.FrontendUrl, "frontend-url", "/dashboard", "location to redirect to after login")
	flag.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	flag.Parse()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.SessionTTL = time.Duration(ttl) * time.Second

	switch {
	case cfg.SessionSecret == "":
		err = errors.New("missing parameter -session-secret")
	case cfg.AirtableClientID == "":
		err = errors.New("missing parameter -airtable-client-id")
	case cfg.RedirectUrl == "":
		err = errors.New("missing parameter -redirect-url")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
