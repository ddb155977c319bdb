package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yllada/claw-manager/common"
)

// ProbeResult is the outcome of one health probe.
type ProbeResult struct {
	Reachable    bool
	HTTPStatusOK bool
	StatusCode   int
	Latency      time.Duration
	Timestamp    time.Time
	Err          error
}

// Healthy reports a reachable endpoint answering 2xx.
func (r ProbeResult) Healthy() bool {
	return r.Reachable && r.HTTPStatusOK
}

// Prober answers whether the gateway is healthy at url.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) bool
}

// HTTPProber issues GET requests with a per-call deadline.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber returns a prober with keep-alives disabled so that a probe
// made after a stop does not ride an old connection.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:             nil,
				DisableKeepAlives: true,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe returns true only for a 2xx answer within timeout.
func (p *HTTPProber) Probe(ctx context.Context, url string, timeout time.Duration) bool {
	return p.Check(ctx, url, timeout).Healthy()
}

// Check performs one probe and reports the details. It never retries.
func (p *HTTPProber) Check(ctx context.Context, url string, timeout time.Duration) ProbeResult {
	if timeout <= 0 {
		timeout = common.ProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := ProbeResult{Timestamp: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Err = err
		return result
	}

	resp, err := p.client.Do(req)
	result.Latency = time.Since(result.Timestamp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %v", common.ErrProbeTimeout, timeout)
		}
		result.Err = err
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	result.Reachable = true
	result.StatusCode = resp.StatusCode
	result.HTTPStatusOK = resp.StatusCode >= 200 && resp.StatusCode < 300
	return result
}
