package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

// Source fetches a fresh USD to KRW rate from somewhere.
type Source interface {
	FetchRate(ctx context.Context) (float64, error)
}

// HTTPSource reads a rate out of a JSON document served over HTTP.
type HTTPSource struct {
	URL    string
	Path   string // JSON path to the rate, e.g. $.rates.KRW
	Client *http.Client
}

// NewHTTPSource returns a source with a 10 second client timeout.
func NewHTTPSource(url, path string) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Path:   path,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) FetchRate(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch exchange rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch exchange rate: unexpected status %d", resp.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode exchange rate: %w", err)
	}
	return extractRate(doc, s.Path)
}

func extractRate(doc any, path string) (float64, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", path, err)
	}
	rate, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("lookup %s: not a number: %v", path, v)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("lookup %s: non-positive rate %v", path, rate)
	}
	return rate, nil
}
