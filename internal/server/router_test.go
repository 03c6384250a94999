package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"saga-web/internal/app"
	"saga-web/internal/config"
	"saga-web/internal/domain"
	"saga-web/internal/grimoire"
	"saga-web/internal/poller"
	"saga-web/internal/probe"
	"saga-web/internal/prophesy"
	"saga-web/internal/server/handlers"
	"saga-web/internal/session"
	"saga-web/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend は prophesy / grimoire バックエンドの最小実装です。
type fakeBackend struct {
	sessionFails  bool
	dispatchCalls atomic.Int32
	adminKey      string
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session/create", func(w http.ResponseWriter, r *http.Request) {
		if b.sessionFails {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"_id": "anon-router-test"})
	})

	dispatch := func(w http.ResponseWriter, r *http.Request) {
		b.dispatchCalls.Add(1)
		json.NewEncoder(w).Encode(domain.DispatchResponse{TaskID: "task-xyz"})
	}
	for _, endpoint := range []string{
		prophesy.EndpointGrandStrategy,
		prophesy.EndpointContentIdeas,
		prophesy.EndpointCommerce,
		prophesy.EndpointMarketingAsset,
		prophesy.EndpointTribute,
	} {
		mux.HandleFunc("POST "+endpoint, dispatch)
	}

	mux.HandleFunc("GET /prophesy/status/task-xyz", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.StatusResponse{
			Status: domain.TaskStatusSuccess,
			Result: json.RawMessage(`{"summary": "ok"}`),
		})
	})

	mux.HandleFunc("GET /grimoire/scrolls", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]grimoire.Scroll{{ID: "1", Slug: "first", Title: "最初の記事"}})
	})
	mux.HandleFunc("GET /grimoire/scrolls/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("POST /grimoire/inscribe", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(grimoire.AdminKeyHeader) != b.adminKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(grimoire.Scroll{ID: "2", Slug: "new", Title: "新規"})
	})

	mux.HandleFunc("GET /decoy-ok.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("// decoy"))
	})
	mux.HandleFunc("GET /decoy-blocked.js", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	return mux
}

type testEnv struct {
	backend   *fakeBackend
	container *app.Container
	client    *http.Client
	baseURL   string
}

func newTestEnv(t *testing.T, mutate func(*fakeBackend, *config.Config)) *testEnv {
	t.Helper()

	backend := &fakeBackend{adminKey: "router-admin-key"}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)

	cfg := &config.Config{
		DailyQuota:    10,
		RateLimit:     1000,
		PollInterval:  5 * time.Millisecond,
		HTTPTimeout:   5 * time.Second,
		ProbeDecoyURL: backendSrv.URL + "/decoy-ok.js",
	}
	if mutate != nil {
		mutate(backend, cfg)
	}

	prophesyClient := prophesy.NewClient(backendSrv.URL, "", cfg.HTTPTimeout)
	store := session.NewCookieStore("0123456789abcdef0123456789abcdef", "0123456789abcdef", false)

	endpoints := map[string]string{
		workflow.StackStrategy:  prophesy.EndpointGrandStrategy,
		workflow.StackContent:   prophesy.EndpointContentIdeas,
		workflow.StackCommerce:  prophesy.EndpointCommerce,
		workflow.StackMarketing: prophesy.EndpointMarketingAsset,
		workflow.StackTribute:   prophesy.EndpointTribute,
	}
	dispatchers := make(map[string]workflow.Dispatcher)
	for _, name := range workflow.StackNames() {
		endpoint := endpoints[name]
		dispatchers[name] = workflow.DispatcherFunc(func(ctx context.Context, sessionID string, brief domain.Brief) (string, error) {
			payload := map[string]any{"session_id": sessionID}
			for k, v := range brief {
				payload[k] = v
			}
			return prophesyClient.Dispatch(ctx, endpoint, payload)
		})
	}

	container := &app.Container{
		Config:          cfg,
		Prophesy:        prophesyClient,
		Grimoire:        grimoire.NewClient(backendSrv.URL, cfg.HTTPTimeout),
		SessionStore:    store,
		SessionProvider: session.NewProvider(prophesyClient, store),
		Flows: workflow.NewRegistry(&workflow.SetFactory{
			Poller:      poller.New(prophesyClient, cfg.PollInterval),
			Dispatchers: dispatchers,
		}),
		Probe: probe.NewDetector(
			&probe.HTTPFetcher{Client: &http.Client{Timeout: cfg.HTTPTimeout}},
			nil,
			cfg.ProbeDecoyURL,
			0,
		),
	}
	t.Cleanup(container.Close)

	srv := httptest.NewServer(NewRouter(cfg, handlers.NewHandler(container)))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		backend:   backend,
		container: container,
		client:    &http.Client{Jar: jar},
		baseURL:   srv.URL,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp.StatusCode, decoded
}

// fillStrategy は戦略フローを入力完了まで進めます。
func (e *testEnv) fillStrategy(t *testing.T) {
	t.Helper()

	status, _ := e.do(t, http.MethodPost, "/flows/strategy/begin", nil)
	require.Equal(t, http.StatusOK, status)

	for _, fields := range []map[string]string{
		{"interest": "fitness"},
		{"tone_sample": "明るく"},
		{"target_audience": "20代", "geo_target": "JP"},
	} {
		status, body := e.do(t, http.MethodPost, "/flows/strategy/input", map[string]any{"fields": fields})
		require.Equal(t, http.StatusOK, status, "input failed: %v", body)
	}
}

func (e *testEnv) waitForStage(t *testing.T, path, stage string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, body := e.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, status)
		if body["stage"] == stage {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ステージ %s に時間内に到達しませんでした", stage)
	return nil
}

func TestFlowLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)

	env.fillStrategy(t)

	status, body := env.do(t, http.MethodPost, "/flows/strategy/submit", nil)
	require.Equal(t, http.StatusAccepted, status, "submit failed: %v", body)

	body = env.waitForStage(t, "/flows/strategy", "revealed")
	result, ok := body["result"].(map[string]any)
	require.True(t, ok, "revealed スナップショットに result が無い: %v", body)
	assert.Equal(t, "ok", result["summary"])

	assert.Equal(t, int32(1), env.backend.dispatchCalls.Load())
}

func TestSubmitWhilePollingReturns409(t *testing.T) {
	env := newTestEnv(t, nil)

	env.fillStrategy(t)

	status, _ := env.do(t, http.MethodPost, "/flows/strategy/submit", nil)
	require.Equal(t, http.StatusAccepted, status)

	// 飛行中なら ErrBusy、すでに revealed へ到達していれば invalid transition。
	// どちらの経路でも再送信は 409 で拒否されます。
	status, _ = env.do(t, http.MethodPost, "/flows/strategy/submit", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestFlowRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, func(b *fakeBackend, cfg *config.Config) {
		b.sessionFails = true
	})

	status, body := env.do(t, http.MethodGet, "/flows/strategy", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.NotEmpty(t, body["error"])

	status, _ = env.do(t, http.MethodPost, "/flows/strategy/submit", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Zero(t, env.backend.dispatchCalls.Load(), "セッションなしでディスパッチが発生した")
}

func TestUnknownStackReturns404(t *testing.T) {
	env := newTestEnv(t, nil)

	status, _ := env.do(t, http.MethodGet, "/flows/astrology", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProbeBlocksGeneration(t *testing.T) {
	env := newTestEnv(t, nil)

	// ブロック判定になるおとり URL で検知を実行し直します。
	env.container.Probe = probe.NewDetector(
		&probe.HTTPFetcher{Client: http.DefaultClient},
		nil,
		env.baseURL+"/no-such-decoy.js",
		0,
	)
	result := env.container.Probe.Run(context.Background())
	require.True(t, result.Blocked)

	env.fillStrategy(t)

	status, body := env.do(t, http.MethodPost, "/flows/strategy/submit", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body["error"], "広告ブロッカー")
	assert.Zero(t, env.backend.dispatchCalls.Load())
}

func TestDailyQuotaExhaustion(t *testing.T) {
	env := newTestEnv(t, func(b *fakeBackend, cfg *config.Config) {
		cfg.DailyQuota = 1
	})

	env.fillStrategy(t)
	status, _ := env.do(t, http.MethodPost, "/flows/strategy/submit", nil)
	require.Equal(t, http.StatusAccepted, status)
	env.waitForStage(t, "/flows/strategy", "revealed")

	// 別フローでも同じ日次カウンターを共有します。
	status, _ = env.do(t, http.MethodPost, "/flows/strategy/reset", nil)
	require.Equal(t, http.StatusOK, status)
	env.fillStrategy(t)

	status, body := env.do(t, http.MethodPost, "/flows/strategy/submit", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body["error"], "上限")
	assert.Equal(t, int32(1), env.backend.dispatchCalls.Load())
}

func TestValidationErrorsMapTo400(t *testing.T) {
	env := newTestEnv(t, nil)

	status, _ := env.do(t, http.MethodPost, "/flows/strategy/begin", nil)
	require.Equal(t, http.StatusOK, status)

	// 現在ステップの必須フィールドが欠けた入力は 400 です。
	status, body := env.do(t, http.MethodPost, "/flows/strategy/input", map[string]any{
		"fields": map[string]string{"tone_sample": "明るく"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "interest")

	// 空の fields も 400 です。
	status, _ = env.do(t, http.MethodPost, "/flows/strategy/input", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGrimoireRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	// 一覧は公開で、キー不要です。
	req, err := http.NewRequest(http.MethodGet, env.baseURL+"/grimoire/scrolls", nil)
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var scrolls []grimoire.Scroll
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scrolls))
	require.Len(t, scrolls, 1)
	assert.Equal(t, "first", scrolls[0].Slug)

	// 存在しない記事は 404 です。
	status, _ := env.do(t, http.MethodGet, "/grimoire/scrolls/ghost", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// 管理キーなしの作成は 401 です。
	status, _ = env.do(t, http.MethodPost, "/grimoire/inscribe", map[string]string{
		"title": "新規", "body": "本文",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// ヘッダーのキーで作成できます。
	draftBody, _ := json.Marshal(map[string]string{"title": "新規", "body": "本文"})
	req, err = http.NewRequest(http.MethodPost, env.baseURL+"/grimoire/inscribe", bytes.NewReader(draftBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(grimoire.AdminKeyHeader, "router-admin-key")
	resp, err = env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// タイトル・本文を欠くドラフトはバックエンドに届く前に拒否されます。
	status, _ = env.do(t, http.MethodPost, "/grimoire/inscribe", map[string]string{"title": "孤立"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProbeEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(t, http.MethodGet, "/probe", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["blocked"])
	assert.Equal(t, string(probe.SignalNone), body["signal"])
}

func TestRegenerateBeforeRevealIsNoOp(t *testing.T) {
	env := newTestEnv(t, nil)

	env.fillStrategy(t)

	status, body := env.do(t, http.MethodPost, "/flows/strategy/regenerate", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "collecting", body["stage"])
	assert.Zero(t, env.backend.dispatchCalls.Load())
}
