package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/contracts"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/metrics"
	"slotkeeper/pkg/middleware"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
)

type routes func(*httprouter.Router)

func (f routes) RegisterRoutes(r *httprouter.Router) { f(r) }

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1024,
		ShutdownTimeout:   time.Second,
		Log:               logger.New(logger.Config{Output: io.Discard}),
	}
}

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	a := NewApplication(testConfig(), metrics.NewCollector("apptest"))

	health := routes(func(r *httprouter.Router) {
		r.GET("/health", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			w.WriteHeader(http.StatusOK)
		})
	})
	api := routes(func(r *httprouter.Router) {
		r.POST("/api/v1/echo", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			w.Header().Set("X-Seen-Provider", middleware.ProviderIDFromContext(r.Context()))
			w.WriteHeader(http.StatusCreated)
		})
	})
	a.SetApp(health, api)
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a
}

func TestSetApp_ComposesMiddleware(t *testing.T) {
	a := newTestApplication(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ProviderIDHeader, "prov-1")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w.Header().Get("X-Seen-Provider") != "prov-1" {
		t.Error("identity middleware not applied")
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("request logging middleware not applied")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("content type middleware not applied, got %d", w.Code)
	}
}

func TestSetApp_ServesHealthAndMetrics(t *testing.T) {
	a := newTestApplication(t)

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestWorkers_StopOnShutdown(t *testing.T) {
	a := newTestApplication(t)

	var stopped atomic.Bool
	a.AddWorker("test", contracts.WorkerFunc(func(ctx context.Context) {
		<-ctx.Done()
		stopped.Store(true)
	}))
	var closed atomic.Bool
	a.AddCloser("test", func() error {
		closed.Store(true)
		return nil
	})

	a.startWorkers()
	a.stopBackground()

	if !stopped.Load() || !closed.Load() {
		t.Errorf("stopped=%v closed=%v", stopped.Load(), closed.Load())
	}
}
