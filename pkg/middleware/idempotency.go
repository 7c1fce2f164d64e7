package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/logger"
	"sync"
	"time"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	// PendingClaimTTL bounds how long a crashed request can block retries
	// of the same key.
	PendingClaimTTL = time.Minute
)

// ErrRequestInFlight means another request with the same key has claimed it
// and has not finished yet.
var ErrRequestInFlight = errors.New("request with this idempotency key is in flight")

// IdempotencyStore tracks one claim per scoped key. Claim returns the stored
// response when the key already completed, nil when the caller now owns the
// key, or ErrRequestInFlight.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (*CachedResponse, error)
	Complete(ctx context.Context, key string, response *CachedResponse) error
	Release(ctx context.Context, key string) error
	Stop()
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
}

type idempotencyEntry struct {
	response  *CachedResponse // nil while pending
	expiresAt time.Time
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]idempotencyEntry
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries: make(map[string]idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key string) (*CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		if e.response == nil {
			return nil, ErrRequestInFlight
		}
		return e.response, nil
	}
	s.entries[key] = idempotencyEntry{expiresAt: now.Add(PendingClaimTTL)}
	return nil, nil
}

func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key string, response *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{response: response, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.response == nil {
		delete(s.entries, key)
	}
	return nil
}

func (s *InMemoryIdempotencyStore) evictLoop() {
	ticker := time.NewTicker(min(s.ttl, PendingClaimTTL))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, e := range s.entries {
				if !now.Before(e.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency makes a POST carrying an Idempotency-Key run at most once per
// caller and path. A 2xx reply is stored and replayed for repeats; any other
// reply frees the key so the client may retry. A repeat that arrives while
// the first request still runs gets 409 IDEMPOTENCY_IN_PROGRESS. When the
// store itself fails the request runs without protection.
func Idempotency(store IdempotencyStore, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			scoped := scopeKey(r, key)

			cached, err := store.Claim(ctx, scoped)
			switch {
			case errors.Is(err, ErrRequestInFlight):
				apperrors.WriteError(w, apperrors.New("IDEMPOTENCY_IN_PROGRESS", "A request with this Idempotency-Key is still being processed", http.StatusConflict))
				return
			case err != nil:
				log.Warn("Idempotency store unavailable, serving request unprotected",
					"request_id", RequestIDFromContext(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			case cached != nil:
				replayCachedResponse(w, cached)
				return
			}

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			// The request context may already be cancelled by the timeout.
			storeCtx := context.WithoutCancel(ctx)
			if capture.statusCode >= 200 && capture.statusCode < 300 {
				err = store.Complete(storeCtx, scoped, &CachedResponse{
					StatusCode: capture.statusCode,
					Headers:    w.Header().Clone(),
					Body:       capture.body.Bytes(),
				})
			} else {
				err = store.Release(storeCtx, scoped)
			}
			if err != nil {
				log.Warn("Failed to record idempotent response", "request_id", RequestIDFromContext(ctx), "error", err)
			}
		})
	}
}

func scopeKey(r *http.Request, key string) string {
	return DefaultCallerExtractor(r) + "|" + r.URL.Path + "|" + key
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
