package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.arctag.dev/arctag/clientutil"
)

type CAAClient struct {
	BaseURL   string
	RateLimit time.Duration
	Logger    *slog.Logger

	initOnce   sync.Once
	HTTPClient *http.Client
}

func (c *CAAClient) init() {
	c.initOnce.Do(func() {
		logger := c.Logger
		if logger == nil {
			logger = slog.Default()
		}
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithCache(12*time.Hour),
			clientutil.WithRateLimit(c.RateLimit),
			clientutil.WithLogging(logger),
		))
	})
}

func (c *CAAClient) request(ctx context.Context, r *http.Request, dest any) error {
	c.init()

	r = r.WithContext(ctx)
	resp, err := c.HTTPClient.Do(r)
	if err != nil {
		return fmt.Errorf("make caa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("caa returned non 2xx: %w", StatusError(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode caa response: %w", err)
	}
	return nil
}

// GetCover downloads the front cover of the release, falling back to its release group. No cover
// is not an error and returns nil data.
func (c *CAAClient) GetCover(ctx context.Context, release *Release) ([]byte, error) {
	coverURL, err := c.getCoverURL(ctx, release)
	if err != nil {
		return nil, err
	}
	if coverURL == "" {
		return nil, nil
	}

	c.init()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("download cover: %w", StatusError(resp.StatusCode))
	}
	cover, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cover: %w", err)
	}
	return cover, nil
}

func (c *CAAClient) getCoverURL(ctx context.Context, release *Release) (string, error) {
	var candidateURLs []string
	if release.CoverArtArchive.Front {
		candidateURLs = append(candidateURLs, joinPath(c.BaseURL, "release", release.ID))
	}
	if release.ReleaseGroup.ID != "" {
		candidateURLs = append(candidateURLs, joinPath(c.BaseURL, "release-group", release.ReleaseGroup.ID))
	}

	for _, candidate := range candidateURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}

		var caa caaResponse
		err = c.request(ctx, req, &caa)
		if se := StatusError(0); errors.As(err, &se) && se == http.StatusNotFound {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("make caa release request: %w", err)
		}

		for _, img := range caa.Images {
			if img.Front {
				return img.Image, nil
			}
		}
		return "", nil
	}
	return "", nil
}

type caaResponse struct {
	Release string `json:"release"`
	Images  []struct {
		Approved bool     `json:"approved"`
		Front    bool     `json:"front"`
		Image    string   `json:"image"`
		Types    []string `json:"types"`
	} `json:"images"`
}
