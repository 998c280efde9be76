// Package deploy is the pluggable deployment hook behind the deploy action.
// The action contract only requires a reproducible success/failure result;
// what "deploying" means is the hook's business (external CI in production,
// a no-op in development).
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Release describes a completed deployment.
type Release struct {
	Version    string    `json:"version"`
	DeployedAt time.Time `json:"deployed_at"`
}

// Deployer triggers a deployment and reports the resulting release.
type Deployer interface {
	Deploy(ctx context.Context) (*Release, error)
}

// Versioned tracks a semantic version across deployments: each successful
// deploy bumps the patch component.
type Versioned struct {
	mu      sync.Mutex
	current *semver.Version
	clock   func() time.Time
}

// NewVersioned starts the version sequence at the given version, which must
// be valid semver.
func NewVersioned(initial string) (*Versioned, error) {
	v, err := semver.NewVersion(initial)
	if err != nil {
		return nil, fmt.Errorf("invalid initial version %q: %w", initial, err)
	}
	return &Versioned{current: v, clock: time.Now}, nil
}

// WithClock overrides the clock for testing.
func (d *Versioned) WithClock(clock func() time.Time) *Versioned {
	d.clock = clock
	return d
}

// Deploy bumps the patch version and reports it as deployed. This is the
// development no-op hook.
func (d *Versioned) Deploy(ctx context.Context) (*Release, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.current.IncPatch()
	d.current = &next
	return &Release{
		Version:    next.String(),
		DeployedAt: d.clock().UTC(),
	}, nil
}

// Current returns the latest deployed version.
func (d *Versioned) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.String()
}

// Webhook posts to an external CI endpoint and treats a 2xx response as a
// successful deployment.
type Webhook struct {
	url        string
	httpClient *http.Client
	versions   *Versioned
}

func NewWebhook(url string, versions *Versioned) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		versions:   versions,
	}
}

func (w *Webhook) Deploy(ctx context.Context) (*Release, error) {
	payload, err := json.Marshal(map[string]string{"trigger": "gummybear-ai"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deploy webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("deploy webhook: status %d", resp.StatusCode)
	}
	return w.versions.Deploy(ctx)
}
