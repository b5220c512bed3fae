package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/systmms/tierup/internal/unit"
)

// HTTPClient is the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProber issues a GET against the unit's health URL.
type HTTPProber struct {
	client HTTPClient
}

// NewHTTPProber creates an HTTP prober whose requests time out after timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
	}
}

// SetClient sets a custom HTTP client for testing.
func (p *HTTPProber) SetClient(client HTTPClient) {
	p.client = client
}

// Probe reports Healthy when the response status matches the expected status
// (any 2xx when unset). Connection errors and other statuses report Starting;
// the engine decides when that becomes a timeout.
func (p *HTTPProber) Probe(ctx context.Context, u unit.Unit) Result {
	start := time.Now()
	check := u.Health

	if check.URL == "" {
		return Result{
			Status:  unit.StatusUnknown,
			Message: "no URL configured",
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, check.URL, nil)
	if err != nil {
		return Result{
			Status:   unit.StatusUnknown,
			Message:  fmt.Sprintf("failed to create request: %v", err),
			Duration: time.Since(start),
		}
	}
	for key, value := range check.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{
			Status:   unit.StatusStarting,
			Message:  fmt.Sprintf("request failed: %v", err),
			Duration: time.Since(start),
		}
	}
	defer resp.Body.Close()

	// Discard body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	elapsed := time.Since(start)
	if !statusMatches(resp.StatusCode, check.ExpectedStatus) {
		return Result{
			Status:   unit.StatusStarting,
			Message:  fmt.Sprintf("unexpected status code %d", resp.StatusCode),
			Duration: elapsed,
		}
	}

	return Result{
		Status:   unit.StatusHealthy,
		Message:  fmt.Sprintf("status %d in %v", resp.StatusCode, elapsed.Round(time.Millisecond)),
		Duration: elapsed,
	}
}

func statusMatches(got, expected int) bool {
	if expected != 0 {
		return got == expected
	}
	return got >= 200 && got < 300
}
