package geocode

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/loveofmn/mapkit/internal/resilience"
)

// newTestLimiter returns a limiter that never blocks tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// noRetry disables backoff so failure tests stay fast.
func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

// multiRewriteTransport rewrites request URLs based on a prefix map so
// provider calls land on httptest servers.
type multiRewriteTransport struct {
	base     http.RoundTripper
	rewrites map[string]string
}

func (t *multiRewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for prefix, testURL := range t.rewrites {
		if len(origURL) >= len(prefix) && origURL[:len(prefix)] == prefix {
			newReq := req.Clone(req.Context())
			parsed, err := req.URL.Parse(testURL + origURL[len(prefix):])
			if err != nil {
				return nil, err
			}
			newReq.URL = parsed
			newReq.Host = parsed.Host
			return t.base.RoundTrip(newReq)
		}
	}
	return t.base.RoundTrip(req)
}

func newRewriteClient(rewrites map[string]string) *http.Client {
	return &http.Client{
		Transport: &multiRewriteTransport{
			base:     http.DefaultTransport,
			rewrites: rewrites,
		},
	}
}
