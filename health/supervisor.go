// Package health runs the periodic supervisor that watches the process's
// own liveness and requests a restart when it can't recover.
package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

const (
	checkInterval = 10 * time.Minute
	initialDelay  = 10 * time.Second
	probeTimeout  = 10 * time.Second
)

// StreamStatus reports whether the price stream is currently healthy.
type StreamStatus func() bool

// RestartFunc requests a process restart with a human-readable reason.
type RestartFunc func(reason string)

// Supervisor polls the local /health endpoint on a fixed period and
// requests a restart if the endpoint is unreachable or reports the
// stream as stale.
type Supervisor struct {
	healthURL string
	stream    StreamStatus
	restart   RestartFunc
	client    *http.Client
}

// New builds a Supervisor that probes healthURL (e.g. http://127.0.0.1:80/health).
func New(healthURL string, stream StreamStatus, restart RestartFunc) *Supervisor {
	return &Supervisor{
		healthURL: healthURL,
		stream:    stream,
		restart:   restart,
		client:    &http.Client{Timeout: probeTimeout},
	}
}

// Run blocks, checking every checkInterval after an initial delay, until
// ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	log.Printf("✅ HEALTH: supervisor starting, first check in %s", initialDelay)

	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	s.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Supervisor) check(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.healthURL, nil)
	if err != nil {
		log.Printf("⚠️ HEALTH: building probe request: %v", err)
		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("❌ HEALTH: local health endpoint unreachable: %v", err)
		s.restart("health endpoint unreachable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ HEALTH: local health endpoint returned %d", resp.StatusCode)
		s.restart("health endpoint returned non-200")
		return
	}

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if s.stream != nil && !s.stream() {
		log.Println("❌ HEALTH: price stream reports unhealthy")
		s.restart("price stream stale")
		return
	}

	log.Println("✅ HEALTH: periodic check passed")
}
