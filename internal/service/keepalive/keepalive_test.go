package keepalive

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServicePingsUntilStopped(t *testing.T) {
	var pings atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	svc := New(ts.URL, 20*time.Millisecond)
	svc.Start()

	assert.Eventually(t, func() bool { return pings.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	svc.Stop()
	after := pings.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, pings.Load(), "no pings after Stop")
}

func TestServiceSurvivesFailures(t *testing.T) {
	var pings atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	svc := New(ts.URL, 20*time.Millisecond)
	svc.Start()
	defer svc.Stop()

	assert.Eventually(t, func() bool { return pings.Load() >= 2 }, 2*time.Second, 10*time.Millisecond,
		"failed pings must not stop the loop")
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	svc := New(ts.URL, time.Hour)
	svc.Start()
	svc.Start()
	svc.Stop()
	svc.Stop()
}

func TestFirstPingIsDelayed(t *testing.T) {
	var pings atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
	}))
	defer ts.Close()

	svc := New(ts.URL, time.Hour)
	svc.Start()
	defer svc.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, pings.Load(), "first ping waits a full interval")
}
