package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/m-lab/go/osx"
	"github.com/m-lab/go/prometheusx/promtest"
	"github.com/m-lab/go/rtx"
	"go.uber.org/goleak"

	"github.com/m-lab/redisconn/redis/redistest"
)

// Get a bunch of open ports, and then close them. Hopefully the ports will
// remain open for the next few microseconds so that we can use them in unit
// tests.
func getOpenPorts(n int) []string {
	ports := []string{}
	for i := 0; i < n; i++ {
		ts := httptest.NewServer(http.NewServeMux())
		defer ts.Close()
		u, err := url.Parse(ts.URL)
		rtx.Must(err, "Could not parse url to local server:", ts.URL)
		ports = append(ports, ":"+u.Port())
	}
	return ports
}

func setupMain(t *testing.T) string {
	srv := redistest.NewServer(t)
	ports := getOpenPorts(2)
	for _, ev := range []struct{ key, value string }{
		{"HEALTH_ADDR", ports[0]},
		{"PROMETHEUSX_LISTEN_ADDRESS", ports[1]},
		{"REDIS_HOST", srv.Host()},
		{"REDIS_PORT", strconv.Itoa(srv.Port())},
	} {
		t.Cleanup(osx.MustSetenv(ev.key, ev.value))
	}
	return "http://127.0.0.1" + ports[0] + "/health"
}

// waitForHealth polls url until it answers 200 or the deadline passes.
func waitForHealth(url string, deadline time.Time) bool {
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func Test_ContextCancelsMain(t *testing.T) {
	healthURL := setupMain(t)

	// Set up the global context for main()
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		main()
	}()

	if !waitForHealth(healthURL, time.Now().Add(10*time.Second)) {
		t.Error("health endpoint never reported an open connection")
	}
	cancel()

	// If this doesn't time out, then canceling the context causes main to exit.
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("main did not return after cancel")
	}
}

func TestMetrics(t *testing.T) {
	promtest.LintMetrics(t)
}

type fakeState bool

func (f fakeState) IsOpen() bool { return bool(f) }

func Test_healthHandler(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	tests := []struct {
		name string
		open bool
		code int
		body string
	}{
		{"open", true, http.StatusOK, "open\n"},
		{"closed", false, http.StatusServiceUnavailable, "closed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			healthHandler(fakeState(tt.open)).ServeHTTP(rec, req)
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			if rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}
