package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// useRegistry swaps the default registry for a fresh one for the duration
// of the test.
func useRegistry(t *testing.T) *Registry {
	t.Helper()

	previous := DefaultRegistry
	DefaultRegistry = NewRegistry()
	t.Cleanup(func() { DefaultRegistry = previous })
	return DefaultRegistry
}

func TestStatusHandler(t *testing.T) {
	registry := useRegistry(t)

	rec := httptest.NewRecorder()
	StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/debug/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{}`, rec.Body.String())

	registry.RegisterFunc("redis", func(context.Context) error {
		return errors.New("redis ping failed")
	})

	rec = httptest.NewRecorder()
	StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/debug/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"redis":"redis ping failed"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	StatusHandler(rec, httptest.NewRequest(http.MethodPost, "/debug/health", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerGuardsTheApplication(t *testing.T) {
	registry := useRegistry(t)

	handler := Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/map/named", nil))
		return rec
	}

	updater := NewStatusUpdater()
	registry.Register("redis", updater)

	require.Equal(t, http.StatusNoContent, serve().Code, "healthy")

	updater.Update(errors.New("connection refused"))
	rec := serve()
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, "unhealthy")
	require.Contains(t, rec.Body.String(), `"code":"UNAVAILABLE"`)

	updater.Update(nil)
	require.Equal(t, http.StatusNoContent, serve().Code, "recovered")
}

func TestThresholdStatusUpdater(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("timeout")

	tu := NewThresholdStatusUpdater(3)
	tu.Update(failure)
	tu.Update(failure)
	require.NoError(t, tu.Check(ctx), "below threshold")

	tu.Update(failure)
	require.ErrorIs(t, tu.Check(ctx), failure, "threshold reached")

	tu.Update(nil)
	tu.Update(failure)
	require.NoError(t, tu.Check(ctx), "a success resets the count")

	require.IsType(t, &updater{}, NewThresholdStatusUpdater(0))
}

func TestPollReportsTermination(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	checked := make(chan struct{}, 1)
	check := CheckFunc(func(context.Context) error {
		select {
		case checked <- struct{}{}:
		default:
		}
		return nil
	})

	updater := NewThresholdStatusUpdater(5)
	done := make(chan struct{})
	go func() {
		Poll(ctx, updater, check, time.Millisecond)
		close(done)
	}()

	<-checked
	require.NoError(t, updater.Check(context.Background()))

	cancel()
	<-done

	err := updater.Check(context.Background())
	require.ErrorIs(t, err, context.Canceled, "a stopped poll fails regardless of the threshold")
}

func TestRegistryIsolation(t *testing.T) {
	useRegistry(t)

	registry := NewRegistry()
	registry.RegisterFunc("store", func(context.Context) error {
		return errors.New("store unreachable")
	})

	status := registry.CheckStatus(context.Background())
	require.Equal(t, map[string]string{"store": "store unreachable"}, status)
	require.Empty(t, CheckStatus(context.Background()), "check leaked into the default registry")

	require.Panics(t, func() {
		registry.Register("store", NewStatusUpdater())
	}, "registering a check twice")
}
