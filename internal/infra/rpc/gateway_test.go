package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/crmgate/internal/core/config"
	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/core/ui"
	"github.com/vietddude/crmgate/internal/core/ui/uitest"
	"github.com/vietddude/crmgate/internal/infra/storage/memory"
)

type fixture struct {
	gw       *Gateway
	store    *memory.CredentialStore
	notifier *uitest.Notifier
	nav      *uitest.Navigator
}

func testConfig(baseURL string) *config.AppConfig {
	cfg := config.Default()
	cfg.Server.BaseURL = baseURL
	cfg.Server.Timeout = 5 * time.Second
	cfg.RateLimit.MinInterval = 5 * time.Millisecond
	cfg.RateLimit.BackoffBase = 5 * time.Millisecond
	cfg.Session.RedirectDelay = 5 * time.Millisecond
	cfg.Writes.RefreshDelay = time.Millisecond
	cfg.Writes.ReloadDelay = time.Millisecond
	return cfg
}

func newFixture(t *testing.T, cfg *config.AppConfig) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.NewCredentialStore("crm-token", "secret"),
		notifier: &uitest.Notifier{},
		nav:      &uitest.Navigator{Current: "companies"},
	}
	gw, err := NewGateway(cfg, Deps{Store: f.store, Notifier: f.notifier, Navigator: f.nav})
	require.NoError(t, err)
	require.NoError(t, gw.Start(context.Background()))
	t.Cleanup(func() { gw.Close() })
	f.gw = gw
	return f
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestGateway_CallSuccess(t *testing.T) {
	headers := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		jsonHandler(200, `{"success":true,"data":[{"id":1}]}`)(w, r)
	}))
	defer server.Close()

	f := newFixture(t, testConfig(server.URL))

	env, err := f.gw.Call(context.Background(), Get("/api/companies"))
	require.NoError(t, err)
	assert.True(t, env.Success)

	var rows []struct{ ID int }
	require.NoError(t, env.DecodeData(&rows))
	assert.Equal(t, 1, rows[0].ID)

	h := <-headers
	assert.Equal(t, "Bearer secret", h.Get("Authorization"))
	assert.NotEmpty(t, h.Get(HeaderRequestID))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Empty(t, f.notifier.Notices(), "reads are silent")
}

func TestGateway_WriteRefreshesOnce(t *testing.T) {
	server := httptest.NewServer(jsonHandler(200, `{"success":true,"message":"Saved"}`))
	defer server.Close()

	f := newFixture(t, testConfig(server.URL))

	var refreshes atomic.Int32
	f.gw.SetRefreshHook(func(ctx context.Context, message string) error {
		assert.Equal(t, "Saved", message)
		refreshes.Add(1)
		return nil
	})

	_, err := f.gw.Call(context.Background(), Post("/api/companies", map[string]string{"name": "Acme"}))
	require.NoError(t, err)
	_, err = f.gw.Call(context.Background(), Get("/api/companies"))
	require.NoError(t, err)
	skip := Put("/api/companies/1", nil)
	skip.SkipRefresh = true
	_, err = f.gw.Call(context.Background(), skip)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return refreshes.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, 1, f.notifier.Count(ui.SeveritySuccess))
}

func TestGateway_ConcurrentAuthFailureRecoversOnce(t *testing.T) {
	server := httptest.NewServer(jsonHandler(401, `{"success":false,"error":"invalid token"}`))
	defer server.Close()

	f := newFixture(t, testConfig(server.URL))

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.gw.Call(context.Background(), Get("/api/companies"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	}
	assert.True(t, f.gw.Recovering())
	assert.Equal(t, 1, f.store.Clears())
	assert.Equal(t, 1, f.notifier.Count(ui.SeverityError), "only the session notice")

	require.Eventually(t, func() bool { return len(f.nav.Navigations()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "/login.html", f.nav.Navigations()[0].Route)
}

func TestGateway_RetryThenSuccess(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			jsonHandler(429, `{"error":"slow down"}`)(w, r)
			return
		}
		jsonHandler(200, `{"success":true}`)(w, r)
	}))
	defer server.Close()

	f := newFixture(t, testConfig(server.URL))

	env, err := f.gw.Call(context.Background(), Get("/api/x"))
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 1, f.gw.Stats().Usage.Retries)
	assert.Empty(t, f.notifier.Notices())
}

func TestGateway_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		jsonHandler(429, `{}`)(w, r)
	}))
	defer server.Close()

	f := newFixture(t, testConfig(server.URL))

	_, err := f.gw.Call(context.Background(), Get("/api/x"))
	assert.ErrorIs(t, err, domain.ErrServerBusy)
	assert.Equal(t, int32(4), hits.Load(), "initial attempt plus three retries")

	notices := f.notifier.Notices()
	require.Len(t, notices, 1)
	assert.True(t, strings.HasPrefix(notices[0].Message, "Operation failed: server is busy"))
}

func TestGateway_RetryDoesNotBlockQueue(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var throttled atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/a" && throttled.CompareAndSwap(false, true) {
			jsonHandler(429, `{}`)(w, r)
			return
		}
		jsonHandler(200, `{"success":true}`)(w, r)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RateLimit.BackoffBase = 100 * time.Millisecond
	f := newFixture(t, cfg)

	aDone := make(chan error, 1)
	go func() {
		_, err := f.gw.Call(context.Background(), Get("/a"))
		aDone <- err
	}()
	require.Eventually(t, throttled.Load, time.Second, time.Millisecond)

	_, err := f.gw.Call(context.Background(), Get("/b"))
	require.NoError(t, err)
	require.NoError(t, <-aDone)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/a", "/b", "/a"}, order)
}

func TestGateway_RequestFailure(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantMsg     string
	}{
		{"details first", 400, "application/json", `{"error":"e","message":"m","details":"name is required"}`, "name is required"},
		{"mixed field types", 400, "application/json", `{"success":false,"error":{"code":"E1"},"message":"name is required"}`, "name is required"},
		{"error field", 404, "application/json", `{"error":"not found"}`, "not found"},
		{"status text", 500, "text/plain", `oops`, "Internal Server Error"},
		{"malformed failure", 500, "application/json", `{bad`, "request failed with status 500 and the response is not valid JSON"},
		{"malformed success", 200, "application/json", `{bad`, "request succeeded but the response JSON is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			f := newFixture(t, testConfig(server.URL))

			_, err := f.gw.Call(context.Background(), Get("/api/x"))
			var reqErr *domain.RequestError
			require.True(t, errors.As(err, &reqErr), "got %v", err)
			assert.Equal(t, tt.status, reqErr.StatusCode)
			assert.Equal(t, tt.wantMsg, reqErr.Message)

			notices := f.notifier.Notices()
			require.Len(t, notices, 1)
			assert.Equal(t, "Operation failed: "+tt.wantMsg, notices[0].Message)
		})
	}
}

func TestGateway_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/system/status", r.URL.Path)
		jsonHandler(200, `{"success":true,"lastWriteTimestamp":1700000000000}`)(w, r)
	}))
	defer server.Close()

	f := newFixture(t, testConfig(server.URL))

	status, err := f.gw.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, int64(1700000000000), status.LastWriteTimestamp)
}

func TestGateway_ProbeFailureIsSilent(t *testing.T) {
	server := httptest.NewServer(jsonHandler(500, `{"error":"db down"}`))
	defer server.Close()

	f := newFixture(t, testConfig(server.URL))

	_, err := f.gw.Probe(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.notifier.Notices())
}

func TestGateway_CloseSettlesQueuedCalls(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	gw, err := NewGateway(cfg, Deps{Notifier: &uitest.Notifier{}})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := gw.Call(context.Background(), Get("/never"))
		errCh <- err
	}()
	require.Eventually(t, func() bool { return gw.Stats().QueueDepth == 1 }, time.Second, time.Millisecond)

	require.NoError(t, gw.Close())
	assert.ErrorIs(t, <-errCh, domain.ErrGatewayClosed)

	_, err = gw.Call(context.Background(), Get("/after"))
	assert.ErrorIs(t, err, domain.ErrGatewayClosed)
}

func TestGateway_StartContextEndSettlesCalls(t *testing.T) {
	server := httptest.NewServer(jsonHandler(200, `{"success":true}`))
	defer server.Close()

	cfg := testConfig(server.URL)
	gw, err := NewGateway(cfg, Deps{Notifier: &uitest.Notifier{}})
	require.NoError(t, err)
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, gw.Start(ctx))
	_, err = gw.Call(context.Background(), Get("/api/first"))
	require.NoError(t, err)

	cancel()

	callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
	defer callCancel()
	require.Eventually(t, func() bool {
		_, err := gw.Call(callCtx, Get("/api/x"))
		return errors.Is(err, domain.ErrGatewayClosed)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, gw.Stats().QueueDepth)
}

func TestGateway_CallerContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonHandler(200, `{"success":true}`)(w, r)
	}))
	defer server.Close()
	defer close(release)

	f := newFixture(t, testConfig(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.gw.Call(ctx, Get("/slow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateway_StartTwice(t *testing.T) {
	f := newFixture(t, testConfig("http://127.0.0.1:1"))
	assert.ErrorIs(t, f.gw.Start(context.Background()), ErrAlreadyStarted)
}

func TestGateway_Dashboard(t *testing.T) {
	server := httptest.NewServer(jsonHandler(200, `{"success":true}`))
	defer server.Close()

	f := newFixture(t, testConfig(server.URL))
	_, err := f.gw.Call(context.Background(), Get("/api/x"))
	require.NoError(t, err)

	out := f.gw.Dashboard()
	assert.Contains(t, out, "Gateway Dashboard (api)")
	assert.Contains(t, out, "Calls: 1 total")
	assert.Contains(t, out, "success")
}
