package musicbrainz

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.arctag.dev/arctag"
)

var userAgent = `arctag/` + arctag.Version + ` ( https://go.arctag.dev/arctag )`

type Client struct {
	*MBClient
	*CAAClient
}

func DefaultClient(logger *slog.Logger) Client {
	return Client{
		MBClient: &MBClient{
			BaseURL: "https://musicbrainz.org/ws/2/",
			// https://musicbrainz.org/doc/MusicBrainz_API/Rate_Limiting
			RateLimit:  1 * time.Second,
			UserAgent:  userAgent,
			HTTPClient: http.DefaultClient,
			Logger:     logger,
		},
		CAAClient: &CAAClient{
			BaseURL:    "https://coverartarchive.org/",
			HTTPClient: http.DefaultClient,
			Logger:     logger,
		},
	}
}

type StatusError int

func (se StatusError) Error() string {
	return strconv.Itoa(int(se))
}
