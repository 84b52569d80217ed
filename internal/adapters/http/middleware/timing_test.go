package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crmpilates/internal/adapters/http/perf"
)

func timed(collector *perf.Collector, h http.HandlerFunc) http.Handler {
	return Timing(collector, time.Second)(h)
}

// TestTiming_RecordsEntry verifies method, path and status of the recorded entry.
func TestTiming_RecordsEntry(t *testing.T) {
	collector := perf.NewCollector(10)
	handler := timed(collector, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/sessions/checkin", nil))

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Path != "POST /sessions/checkin" {
		t.Fatalf("SlowestPaths = %+v", snap.SlowestPaths)
	}
	if rr.Code != http.StatusSeeOther {
		t.Errorf("status = %d", rr.Code)
	}
}

// TestTiming_SkipsStatic verifies static assets are excluded.
func TestTiming_SkipsStatic(t *testing.T) {
	collector := perf.NewCollector(10)
	handler := timed(collector, func(w http.ResponseWriter, r *http.Request) {})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/static/app.css", nil))

	if collector.TotalRecorded() != 0 {
		t.Errorf("TotalRecorded = %d, want 0", collector.TotalRecorded())
	}
}

// TestTiming_RequestID echoes an incoming id and generates one otherwise.
func TestTiming_RequestID(t *testing.T) {
	handler := timed(nil, func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/calendar", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("echoed id = %q", got)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/calendar", nil))
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("no generated request id")
	}
}

// TestTiming_PoolNoStateLeak verifies a pooled writer does not carry a status over.
func TestTiming_PoolNoStateLeak(t *testing.T) {
	collector := perf.NewCollector(10)
	timed(collector, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/fail", nil))

	rr := httptest.NewRecorder()
	timed(collector, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).ServeHTTP(rr, httptest.NewRequest("GET", "/ok", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

// TestTiming_HandlerPanic still records before the panic propagates.
func TestTiming_HandlerPanic(t *testing.T) {
	collector := perf.NewCollector(10)
	handler := timed(collector, func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic to propagate")
		}
		if collector.TotalRecorded() != 1 {
			t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/panic", nil))
}

// BenchmarkTiming measures per-request overhead.
func BenchmarkTiming(b *testing.B) {
	handler := Timing(perf.NewCollector(perf.DefaultRingSize), 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/calendar", nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
