// Package workflows runs the few lain operations that fan out: probing every
// ingress URL of an app at once.
package workflows

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	flow "github.com/noneback/go-taskflow"
)

// DefaultProbeTimeout bounds each probe request.
const DefaultProbeTimeout = time.Second

// ProbeResult is the outcome of one URL probe.
type ProbeResult struct {
	URL        string
	StatusCode int
	Latency    time.Duration
	Err        error
}

// String renders the result as a status line.
func (r ProbeResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s  error: %v", r.URL, r.Err)
	}
	return fmt.Sprintf("%s  %d %s (%s)", r.URL, r.StatusCode, http.StatusText(r.StatusCode), r.Latency.Round(time.Millisecond))
}

// Prober checks ingress URLs.
type Prober struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewProber returns a prober with DefaultProbeTimeout.
func NewProber() *Prober {
	return &Prober{Client: http.DefaultClient, Timeout: DefaultProbeTimeout}
}

// NewProbeTask adds a task probing url into result.
func (tf *TaskFlow) NewProbeTask(ctx context.Context, p *Prober, url string, result *ProbeResult) *flow.Task {
	return tf.NewTask(fmt.Sprintf("probe-%s", url), func() {
		*result = p.probe(ctx, url)
		log.Debug("Probed URL", "url", url, "code", result.StatusCode, "error", result.Err)
	})
}

// Probe requests every URL concurrently, one worker per URL, and returns one
// result per URL in input order.
func (p *Prober) Probe(ctx context.Context, urls []string) []ProbeResult {
	if len(urls) == 0 {
		return nil
	}

	results := make([]ProbeResult, len(urls))
	tf := NewTaskFlow("probe")
	for i, url := range urls {
		tf.NewProbeTask(ctx, p, url, &results[i])
	}
	tf.Run(len(urls))

	return results
}

func (p *Prober) probe(ctx context.Context, url string) ProbeResult {
	res := ProbeResult{URL: url}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Err = err
		return res
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	resp.Body.Close()

	res.StatusCode = resp.StatusCode
	return res
}
