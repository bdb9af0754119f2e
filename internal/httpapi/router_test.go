package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/execution"
	"github.com/dshills/eventsys/internal/metrics"
)

var (
	apiRootType = event.NewAbstractType("api.root")
	apiLeafType = event.NewType("api.leaf", apiRootType)
)

type fakeSource struct {
	sys   *execution.System
	ready bool
}

func (f *fakeSource) Stats() execution.Stats { return f.sys.Stats() }
func (f *fakeSource) Ready() bool            { return f.ready }

func newTestRouter(t *testing.T) (http.Handler, *fakeSource) {
	t.Helper()
	src := &fakeSource{sys: execution.NewSystem(), ready: true}
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(src.sys))
	return NewRouter(src, reg, zerolog.Nop()), src
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthz(t *testing.T) {
	h, src := newTestRouter(t)

	rr := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	src.ready = false
	rr = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStats(t *testing.T) {
	h, src := newTestRouter(t)
	c := src.sys.NewContainer("api")
	c.Listener(apiLeafType, func(event.Event) error { return nil })

	rr := get(t, h, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var stats execution.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Listeners)
	assert.Equal(t, 1, stats.Types)
}

func TestTypes(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := get(t, h, "/types")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Types []typeInfo `json:"types"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.Types, typeInfo{Name: "api.root", Abstract: true})
	assert.Contains(t, body.Types, typeInfo{Name: "api.leaf", Parents: []string{"api.root"}})
}

func TestMetrics(t *testing.T) {
	h, _ := newTestRouter(t)

	get(t, h, "/healthz")
	rr := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "eventsys_dispatch_calls_total")
	assert.Contains(t, body, `eventsys_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestNotFound(t *testing.T) {
	h, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/events").Code)
}

func TestServer_Serve(t *testing.T) {
	h, _ := newTestRouter(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), h, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "ok")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
