package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()
	h := rl.Middleware(okHandler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/detect", nil)
		req.RemoteAddr = "10.0.0.1:51000"
		w := httptest.NewRecorder()
		h(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
	}
}

func TestRateLimiterBlocksOverBudget(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()
	h := rl.Middleware(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/detect", nil)
		req.RemoteAddr = "10.0.0.2:51000"
		w := httptest.NewRecorder()
		h(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("warmup request %d status = %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/detect", nil)
	req.RemoteAddr = "10.0.0.2:51000"
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over-budget status = %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()
	h := rl.Middleware(okHandler)

	for _, addr := range []string{"10.0.0.3:1", "10.0.0.4:2", "10.0.0.5:3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/detect", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("client %s status = %d", addr, w.Code)
		}
	}
}

func TestRateLimiterPortsShareBucket(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()
	h := rl.Middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/detect", nil)
	req.RemoteAddr = "10.0.0.6:40000"
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}

	// Same host on a new ephemeral port hits the same bucket.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/detect", nil)
	req.RemoteAddr = "10.0.0.6:40001"
	w = httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second port status = %d", w.Code)
	}
}
