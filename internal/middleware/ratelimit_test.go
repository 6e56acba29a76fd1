package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(10, 20)

	if limiter == nil {
		t.Fatal("Expected limiter to be created")
	}
	if limiter.rate != 10 {
		t.Errorf("Expected rate 10, got %v", limiter.rate)
	}
	if limiter.burst != 20 {
		t.Errorf("Expected burst 20, got %d", limiter.burst)
	}
}

func TestIPRateLimiter_Allow(t *testing.T) {
	// Very low rate for testing
	limiter := NewIPRateLimiter(1, 2) // 1 per second, burst of 2

	ip := "192.168.1.1"

	// First two should be allowed (burst)
	if !limiter.Allow(ip) {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow(ip) {
		t.Error("Second request should be allowed (within burst)")
	}

	// Third should be denied (burst exhausted)
	if limiter.Allow(ip) {
		t.Error("Third request should be denied")
	}

	// A different IP has its own allowance
	if !limiter.Allow("192.168.1.2") {
		t.Error("Different IP should be allowed")
	}
}

func TestRateLimitFunc(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)

	handler := RateLimitFunc(limiter, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		return req
	}

	rec := httptest.NewRecorder()
	handler(rec, newReq())
	if rec.Code != http.StatusOK {
		t.Errorf("Expected first request to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, newReq())
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected second request to be limited, got %d", rec.Code)
	}
}

func TestGetIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	if ip := getIP(req); ip != "10.0.0.1:1234" {
		t.Errorf("Expected RemoteAddr fallback, got %s", ip)
	}

	req.Header.Set("X-Real-IP", "1.2.3.4")
	if ip := getIP(req); ip != "1.2.3.4" {
		t.Errorf("Expected X-Real-IP, got %s", ip)
	}

	req.Header.Set("X-Forwarded-For", "5.6.7.8")
	if ip := getIP(req); ip != "5.6.7.8" {
		t.Errorf("Expected X-Forwarded-For to win, got %s", ip)
	}
}
