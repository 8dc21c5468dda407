package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Monitor reports whether the network collaborators are reachable.
type Monitor interface {
	Connected() bool
}

// Static is a monitor with a fixed answer. Useful for offline commands and tests.
type Static bool

// Connected returns the fixed value.
func (s Static) Connected() bool { return bool(s) }

// Checker probes a URL to decide connectivity, caching the result briefly so
// the session loop does not hammer the endpoint on every transition.
type Checker struct {
	URL      string
	Interval time.Duration

	mu        sync.Mutex
	client    *http.Client
	lastCheck time.Time
	lastOK    bool
}

// NewChecker creates a checker probing the given URL. A zero interval
// defaults to 10 seconds between probes.
func NewChecker(url string) *Checker {
	return &Checker{
		URL:      url,
		Interval: 10 * time.Second,
		client:   &http.Client{Timeout: 3 * time.Second},
	}
}

// Connected probes the URL, reusing the cached result within the interval.
func (c *Checker) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !c.lastCheck.IsZero() && now.Sub(c.lastCheck) < c.Interval {
		return c.lastOK
	}

	c.lastCheck = now
	c.lastOK = c.probe()
	return c.lastOK
}

func (c *Checker) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "HEAD", c.URL, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	// Any response at all means the network path is up.
	return true
}
