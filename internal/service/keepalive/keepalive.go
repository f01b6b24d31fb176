// Package keepalive periodically pings the service's own health endpoint so
// free-tier hosts that idle out processes keep the instance warm.
package keepalive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fairyhunter13/immigration-assistant/internal/observability"
)

// Service pings url every interval. Failures are logged and counted, never
// fatal; a broken keep-alive must not take the process with it.
type Service struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a keep-alive Service pinging url every interval.
func New(url string, interval time.Duration) *Service {
	return &Service{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Start launches the ping loop. The first ping is delayed by one interval so
// startup traffic is never mixed with keep-alive noise. Start is idempotent.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
	slog.Info("keep-alive started",
		slog.String("url", s.url),
		slog.Duration("interval", s.interval))
}

// Stop halts the loop and waits for it to exit. Stop is idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("keep-alive stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ping(ctx)
		}
	}
}

func (s *Service) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		s.fail(err)
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.fail(err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.fail(fmt.Errorf("unexpected status %d", resp.StatusCode))
		return
	}
	slog.Debug("keep-alive ping ok", slog.String("url", s.url))
}

func (s *Service) fail(err error) {
	slog.Warn("keep-alive ping failed", slog.String("url", s.url), slog.Any("error", err))
	observability.KeepAliveFailuresTotal.Inc()
}
