package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/pm2-watchdog/internal/infrastructure/config"
)

// fakeInflux serves the two endpoints the client uses.
func fakeInflux(t *testing.T, writes chan<- string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "watchdog-test-token",
		Org:           "ops",
		Bucket:        "watchdog",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	if _, err := Connect(context.Background(), cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want %v", err, ErrDisabled)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if _, err := Connect(context.Background(), testConfig("http://127.0.0.1:1")); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want %v", err, ErrConnectionFailed)
	}
}

func TestWriteRestartCount(t *testing.T) {
	writes := make(chan string, 4)
	srv := fakeInflux(t, writes)

	client, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteRestartCount("api", 7, "flagged")
	client.Flush()

	select {
	case body := <-writes:
		if !strings.HasPrefix(body, "process_restarts,") {
			t.Errorf("line protocol = %q, want process_restarts measurement", body)
		}
		for _, want := range []string{"outcome=flagged", "process=api", "restarts=7i"} {
			if !strings.Contains(body, want) {
				t.Errorf("line protocol = %q, missing %q", body, want)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no write received")
	}
}

func TestWriteAfterClose(t *testing.T) {
	writes := make(chan string, 4)
	srv := fakeInflux(t, writes)

	client, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Release(context.Background()); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// Must not panic or write.
	client.WriteRestartCount("api", 7, "flagged")
	client.Flush()

	if !errors.Is(client.HealthCheck(context.Background()), ErrNotConnected) {
		t.Error("HealthCheck() after Close should report ErrNotConnected")
	}

	select {
	case body := <-writes:
		t.Errorf("unexpected write after Close: %q", body)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseNil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on zero Client error = %v", err)
	}
}

func TestNewRestartPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	point := newRestartPoint("web-01", "worker", 3, "healthy", ts)

	got := write.PointToLineProtocol(point, time.Second)
	want := "process_restarts,host=web-01,outcome=healthy,process=worker restarts=3i 1700000000\n"
	if got != want {
		t.Errorf("line protocol = %q, want %q", got, want)
	}
}
