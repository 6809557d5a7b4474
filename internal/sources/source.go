package sources

import (
	"context"
	"github.com/maxaizer/jobfeed/internal/entities"
	"golang.org/x/time/rate"
	"io"
	"net/http"
)

// Source wraps one external origin of postings.
type Source interface {
	// Name is the module identifier used to select the source.
	Name() string
	// Fetch returns every posting currently listed by the source. Each posting must
	// carry a non-empty link that is unique within the result, otherwise the whole
	// fetch fails.
	Fetch(ctx context.Context) ([]entities.Posting, error)
	// Description is the registered text of the source implementation, handed to
	// the diagnosis advisor when the source fails.
	Description() string
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

type httpSource struct {
	httpClient  HTTPClient
	rateLimiter *rate.Limiter
}

func (s *httpSource) SetHTTPClient(client HTTPClient) {
	s.httpClient = client
}

func (s *httpSource) SetRateLimit(maxRequestsPerSecond float32) {
	if maxRequestsPerSecond <= 0 {
		s.rateLimiter = nil
		return
	}
	s.rateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
}

func (s *httpSource) send(ctx context.Context, method, url string, body io.Reader, contentType string) ([]byte, error) {
	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &FetchError{Op: "create request", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: "read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Op: method + " " + url, StatusCode: resp.StatusCode, Body: truncate(string(data), 300)}
	}
	return data, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
