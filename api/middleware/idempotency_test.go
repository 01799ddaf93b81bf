package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebrew/pos-backend/pkg/enums"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	branchID := uuid.MustParse("6f1e9a59-3c4b-4c53-9d0e-7f2a1b4c5d6e")
	ctx = WithActor(ctx, Actor{
		UserID:   uuid.MustParse("0b8f5c7e-2a3d-4e1f-8b9c-1d2e3f4a5b6c"),
		Role:     enums.RoleCashier,
		BranchID: &branchID,
	})
	return req.WithContext(ctx)
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"create order", http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
		{"void order", http.MethodPost, "/api/v1/orders/{orderId}/void", criticalIdempotencyTTL, true},
		{"adjust", http.MethodPost, "/api/v1/inventory/adjust", 0, true},
		{"transfer", http.MethodPost, "/api/v1/inventory/transfer", 0, true},
		{"get order", http.MethodGet, "/api/v1/orders/{orderId}", 0, false},
		{"threshold", http.MethodPatch, "/api/v1/inventory/records/threshold", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := routeTTL(tt.method, tt.pattern)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ttl)
		})
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(`{"foo":"bar"}`))
	resp := httptest.NewRecorder()
	Idempotency(newFakeStore(), time.Hour, nil)(handler).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, handlerCalled)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"order_id":"x"}}`))
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(`{"foo":"bar"}`))
		req.Header.Set("Idempotency-Key", "abc")
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)

		assert.Equal(t, http.StatusCreated, resp.Code)
		assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
		assert.Equal(t, `{"data":{"order_id":"x"}}`, strings.TrimSpace(resp.Body.String()))
	}
	assert.Equal(t, 1, calls)
	for _, ttl := range store.ttls {
		assert.Equal(t, criticalIdempotencyTTL, ttl)
	}
}

func TestIdempotencyUsesDefaultTTL(t *testing.T) {
	store := newFakeStore()
	req := requestWithPattern(http.MethodPost, "/api/v1/inventory/adjust", "/api/v1/inventory/adjust", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "k1")
	Idempotency(store, 3*time.Hour, nil)(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, store.ttls, 1)
	for _, ttl := range store.ttls {
		assert.Equal(t, 3*time.Hour, ttl)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), time.Hour, nil)

	req := requestWithPattern(http.MethodPost, "/api/v1/inventory/transfer", "/api/v1/inventory/transfer", strings.NewReader(`{"quantity":1}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, "/api/v1/inventory/transfer", "/api/v1/inventory/transfer", strings.NewReader(`{"quantity":2}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(resp, replay)

	require.Equal(t, http.StatusConflict, resp.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestIdempotencySkipsServerFailures(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/orders/1/void", "/api/v1/orders/{orderId}/void", strings.NewReader(``))
		req.Header.Set("Idempotency-Key", "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyRejectsDuplicateWhileInFlight(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"order_id":"x"}}`))
	})

	send := func() *httptest.ResponseRecorder {
		req := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(`{"total":"5"}`))
		req.Header.Set("Idempotency-Key", "register-7")
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)
		return resp
	}

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- send() }()
	<-entered

	dup := send()
	require.Equal(t, http.StatusConflict, dup.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(dup.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)

	close(release)
	assert.Equal(t, http.StatusCreated, (<-first).Code)

	replay := send()
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, `{"data":{"order_id":"x"}}`, strings.TrimSpace(replay.Body.String()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("register crashed")
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/inventory/adjust", "/api/v1/inventory/adjust", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "crash")
	assert.Panics(t, func() { mw(handler).ServeHTTP(httptest.NewRecorder(), req) })
	assert.Empty(t, store.data)
}

func TestIdempotencyIgnoresUnlistedRoutes(t *testing.T) {
	store := newFakeStore()
	req := requestWithPattern(http.MethodGet, "/api/v1/inventory/logs", "/api/v1/inventory/logs", nil)
	resp := httptest.NewRecorder()
	Idempotency(store, time.Hour, nil)(okHandler()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, store.data)
}

func TestRoutePatternFallsBackToPathForWildcards(t *testing.T) {
	req := requestWithPattern(http.MethodPost, "/api/v1/orders/abc/void", "/api/*", nil)
	assert.Equal(t, "/api/v1/orders/abc/void", routePattern(req))

	req = requestWithPattern(http.MethodPost, "/api/v1/orders/abc/void", "/api/v1/orders/{orderId}/void", nil)
	assert.Equal(t, "/api/v1/orders/{orderId}/void", routePattern(req))
}
