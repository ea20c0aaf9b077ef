package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/config"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/promutil"
)

const defaultHTTPBaseURL = "https://www.kaggle.com"

// HTTPStrategy downloads the full rendered notebook, including code cell
// outputs, from Kaggle's public download endpoint.
type HTTPStrategy struct {
	// BaseURL points at Kaggle; tests point it at a local server.
	BaseURL string

	client  *http.Client
	workers int
}

// NewHTTPStrategy returns an HTTPStrategy configured from cfg.
func NewHTTPStrategy(cfg *config.Configuration) *HTTPStrategy {
	return &HTTPStrategy{
		BaseURL: defaultHTTPBaseURL,
		client: &http.Client{
			Transport: promutil.InstrumentRoundTripper("kaggle-http", nil),
			Timeout:   cfg.HTTPTimeout,
		},
		workers: cfg.DownloadWorkers,
	}
}

// Fetch implements Strategy.
func (s *HTTPStrategy) Fetch(ctx context.Context, identifiers []string, dest string) error {
	return downloadAll(ctx, "http", identifiers, dest, s.workers, s.get)
}

func (s *HTTPStrategy) get(ctx context.Context, user, slug string) (_ []byte, retErr error) {
	url := fmt.Sprintf("%s/code/%s/%s/download", s.BaseURL, user, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.EnsureStack(err)
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, errors.EnsureStack(err)
	}
	defer errors.Close(&retErr, res.Body, "close response body")
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("GET %s: %s", url, res.Status)
	}
	data, err := io.ReadAll(res.Body)
	return data, errors.EnsureStack(err)
}
