package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/soakstead/soakstead-backend/pkg/logger"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) IdempotencyKey(scope, key string) string {
	return "idem:" + scope + ":" + key
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func middlewareLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"abc"}}`))
	})
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotency(store, middlewareLogger())(countingHandler(&calls))

	body := `{"unit_id":"u"}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/reserve", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "key-1")
	firstResp := httptest.NewRecorder()
	handler.ServeHTTP(firstResp, first)

	if firstResp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", firstResp.Code)
	}
	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/reserve", strings.NewReader(body))
	second.Header.Set("Idempotency-Key", "key-1")
	secondResp := httptest.NewRecorder()
	handler.ServeHTTP(secondResp, second)

	if calls != 1 {
		t.Fatalf("expected replay without handler call, got %d calls", calls)
	}
	if secondResp.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", secondResp.Code)
	}
	if secondResp.Body.String() != firstResp.Body.String() {
		t.Fatalf("replayed body differs: %s vs %s", secondResp.Body.String(), firstResp.Body.String())
	}
	if secondResp.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("replay lost content type")
	}
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotency(store, middlewareLogger())(countingHandler(&calls))

	first := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/reserve", strings.NewReader(`{"a":1}`))
	first.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/reserve", strings.NewReader(`{"a":2}`))
	second.Header.Set("Idempotency-Key", "key-1")
	secondResp := httptest.NewRecorder()
	handler.ServeHTTP(secondResp, second)

	if secondResp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key got %d", secondResp.Code)
	}
	if calls != 1 {
		t.Fatalf("handler must not run on mismatch, got %d calls", calls)
	}
}

func TestIdempotencyRequiresHeaderOnGuardedRoutes(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryStore(), middlewareLogger())(countingHandler(&calls))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/reserve", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key got %d", resp.Code)
	}
	if calls != 0 {
		t.Fatalf("handler must not run without key")
	}
}

func TestIdempotencySkipsUnguardedRoutes(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryStore(), middlewareLogger())(countingHandler(&calls))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/board", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if calls != 1 {
		t.Fatalf("expected pass-through on unguarded route")
	}
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestIdempotencyScopesKeysByRoute(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotency(store, middlewareLogger())(countingHandler(&calls))

	reserve := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/reserve", strings.NewReader(`{}`))
	reserve.Header.Set("Idempotency-Key", "shared")
	handler.ServeHTTP(httptest.NewRecorder(), reserve)

	settle := httptest.NewRequest(http.MethodPost, "/api/v1/orders/0b6f9f9e-1111-2222-3333-444455556666/refund/settle", strings.NewReader(`{}`))
	settle.Header.Set("Idempotency-Key", "shared")
	handler.ServeHTTP(httptest.NewRecorder(), settle)

	if calls != 2 {
		t.Fatalf("same key on different routes must not collide, got %d calls", calls)
	}
}

// Mounts the guard the same way the router does, inside a chi route group,
// so the matcher runs against the concrete request path rather than the
// group's wildcard pattern.
func newGuardedRouter(store IdempotencyStore, calls *int) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, middlewareLogger()))
		r.Post("/bookings/reserve", countingHandler(calls).ServeHTTP)
	})
	return r
}

func TestIdempotencyGuardsRoutesMountedUnderChiGroup(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	router := newGuardedRouter(store, &calls)

	noKey := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/reserve", strings.NewReader(`{}`))
	noKeyResp := httptest.NewRecorder()
	router.ServeHTTP(noKeyResp, noKey)

	if noKeyResp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", noKeyResp.Code)
	}
	if calls != 0 {
		t.Fatalf("handler must not run without a key, got %d calls", calls)
	}
}

func TestIdempotencyReplaysThroughChiRouter(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	router := newGuardedRouter(store, &calls)

	body := `{"unit_id":"u"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/reserve", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "key-chi")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201 got %d", i, resp.Code)
		}
	}
	if calls != 1 {
		t.Fatalf("expected replay to skip the handler, got %d calls", calls)
	}
}
