package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/config"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/promutil"
)

const defaultAPIBaseURL = "https://www.kaggle.com/api/v1"

// APIStrategy pulls notebook sources through the authenticated Kaggle API.
// Notebooks fetched this way miss code cell outputs; the HTTP strategy gets
// the full rendered notebook.
type APIStrategy struct {
	// BaseURL points at the Kaggle API; tests point it at a local server.
	BaseURL string

	client   *http.Client
	workers  int
	username string
	key      string
}

// NewAPIStrategy returns an APIStrategy configured from cfg.
func NewAPIStrategy(cfg *config.Configuration) *APIStrategy {
	return &APIStrategy{
		BaseURL: defaultAPIBaseURL,
		client: &http.Client{
			Transport: promutil.InstrumentRoundTripper("kaggle-api", nil),
			Timeout:   cfg.HTTPTimeout,
		},
		workers:  cfg.DownloadWorkers,
		username: cfg.KaggleUsername,
		key:      cfg.KaggleKey,
	}
}

// Fetch implements Strategy.
func (s *APIStrategy) Fetch(ctx context.Context, identifiers []string, dest string) error {
	if s.username == "" || s.key == "" {
		return errors.New("the API strategy needs KAGGLE_USERNAME and KAGGLE_KEY to be set")
	}
	return downloadAll(ctx, "api", identifiers, dest, s.workers, s.get)
}

// kernelPullResponse is the subset of the Kaggle kernels/pull response that
// carries the notebook source.
type kernelPullResponse struct {
	Blob struct {
		Source string `json:"source"`
	} `json:"blob"`
}

func (s *APIStrategy) get(ctx context.Context, user, slug string) (_ []byte, retErr error) {
	u := fmt.Sprintf("%s/kernels/pull?user_name=%s&kernel_slug=%s",
		s.BaseURL, url.QueryEscape(user), url.QueryEscape(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.EnsureStack(err)
	}
	req.SetBasicAuth(s.username, s.key)
	res, err := s.client.Do(req)
	if err != nil {
		return nil, errors.EnsureStack(err)
	}
	defer errors.Close(&retErr, res.Body, "close response body")
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("GET %s: %s", u, res.Status)
	}
	var pull kernelPullResponse
	if err := json.NewDecoder(res.Body).Decode(&pull); err != nil {
		return nil, errors.Wrap(err, "decode kernels/pull response")
	}
	if pull.Blob.Source == "" {
		return nil, errors.Errorf("kernel %s/%s has no source", user, slug)
	}
	return []byte(pull.Blob.Source), nil
}
