package app_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pickled-dev/smt-tools/internal/app"
	"github.com/pickled-dev/smt-tools/internal/buildstore"
	"github.com/pickled-dev/smt-tools/internal/config"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

const fixturePath = "../../pkg/fusion/testdata/compendium.yaml"

// testConfig returns a minimal config backed by the fixture compendium and
// an in-memory build store.
func testConfig() *config.Config {
	cfg := &config.Config{
		Server:     config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		Compendium: config.CompendiumConfig{Path: fixturePath},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestNew_ServesRoutes(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig())
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := http.Post(srv.URL+"/v1/search", "application/json",
		strings.NewReader(`{"skills":["Dia","Agi"],"creature":"Lamia"}`))
	if err != nil {
		t.Fatalf("POST /v1/search: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /v1/search = %d, want 200", resp.StatusCode)
	}

	// MCP is off by default.
	resp, err = http.Post(srv.URL+config.DefaultMCPPath, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("POST /mcp with mcp disabled = %d, want 404", resp.StatusCode)
	}
}

func TestNew_MCPEnabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MCP.Enabled = true
	a := newApp(t, cfg)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"0.0.1"}}}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+cfg.MCP.Path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("initialize = %d, want 200", resp.StatusCode)
	}
}

func TestNew_CompendiumErrors(t *testing.T) {
	t.Parallel()

	missing := testConfig()
	missing.Compendium.Path = "testdata/does-not-exist.yaml"
	if _, err := app.New(context.Background(), missing); err == nil {
		t.Error("New with a missing compendium should fail")
	}

	wrongGame := testConfig()
	wrongGame.Compendium.Game = "p4"
	_, err := app.New(context.Background(), wrongGame)
	if err == nil || !strings.Contains(err.Error(), `want "p4"`) {
		t.Errorf("New with a mismatched game = %v, want game error", err)
	}
}

func TestNew_UnknownStoreBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store.Backend = "sqlite"
	_, err := app.New(context.Background(), cfg)
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("err = %v, want ErrBackendNotRegistered", err)
	}
}

func TestNew_InjectedStoreRecordsBuilds(t *testing.T) {
	t.Parallel()

	store := buildstore.NewMemStore()
	a := newApp(t, testConfig(), app.WithBuildStore(store))

	if _, err := a.Service().Search(context.Background(), searchRequest()); err != nil {
		t.Fatalf("Search: %v", err)
	}
	builds, err := store.List(context.Background(), buildstore.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(builds) != 1 || builds[0].Target != "Lamia" {
		t.Errorf("builds = %+v, want one Lamia build", builds)
	}
}

func TestReload(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	a := newApp(t, cfg)

	next := *cfg
	next.Search.MaxLevel = 40
	next.Search.MaxBatch = 2
	a.Reload(config.Diff(cfg, &next), &next)

	lim := a.Service().Limits()
	if lim.MaxLevel != 40 || lim.MaxBatch != 2 {
		t.Errorf("limits after reload = %+v, want max level 40 and batch 2", lim)
	}

	// A broken compendium path keeps the loaded one.
	before := a.Service().Compendium()
	broken := next
	broken.Compendium.Path = "testdata/does-not-exist.yaml"
	a.Reload(config.Diff(&next, &broken), &broken)
	if a.Service().Compendium() != before {
		t.Error("failed compendium reload replaced the compendium")
	}

	// A good path swaps it.
	a.Reload(config.ConfigDiff{CompendiumChanged: true}, cfg)
	if a.Service().Compendium() == before {
		t.Error("compendium reload did not swap the compendium")
	}
}

func TestServe_AndShutdown(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	var resp *http.Response
	for range 50 {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve = %v, want nil", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown = %v", err)
	}
	// Idempotent.
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("second Shutdown = %v", err)
	}
}

func TestShutdown_ExpiredContext(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown = %v, want context.Canceled", err)
	}
}

func TestStores(t *testing.T) {
	t.Parallel()

	s, err := app.Stores().Create(context.Background(), config.StoreConfig{Backend: config.StoreMemory})
	if err != nil {
		t.Fatalf("Create(memory): %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping = %v", err)
	}
}

func searchRequest() fusion.Request {
	return fusion.Request{Skills: []string{"Dia", "Agi"}, Creature: "Lamia"}
}
