// Package health serves the liveness and readiness probes.
//
// GET /healthz answers 200 while the process serves HTTP and reports the
// build version and uptime. GET /readyz runs every [Checker]: a failing
// required check answers 503 with status "fail", a failing optional check
// answers 200 with status "degraded". Searches keep working without the
// build store, so it is registered as optional.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe.
type Checker struct {
	Name string

	// Check returns nil when the dependency is usable. It must respect
	// context cancellation.
	Check func(ctx context.Context) error

	// Optional marks a dependency the service can run without.
	Optional bool
}

// Pinger is implemented by dependencies probed with a round trip, such as a
// database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a required [Checker] that pings p.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Optional  bool   `json:"optional,omitempty"`
}

type liveness struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

type readiness struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz.
type Handler struct {
	version  string
	started  time.Time
	checkers []Checker
}

// New returns a Handler reporting version and evaluating checkers on each
// /readyz request.
func New(version string, checkers ...Checker) *Handler {
	return &Handler{
		version:  version,
		started:  time.Now(),
		checkers: append([]Checker(nil), checkers...),
	}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveness{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz runs the checkers concurrently, each under [checkTimeout].
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu       sync.Mutex
		checks   = make(map[string]checkResult, len(h.checkers))
		failed   bool
		degraded bool
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			start := time.Now()
			err := c.Check(ctx)

			res := checkResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds(), Optional: c.Optional}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Status, res.Error = "fail", err.Error()
				if c.Optional {
					degraded = true
				} else {
					failed = true
				}
			}
			checks[c.Name] = res
			return nil
		})
	}
	_ = g.Wait()

	body := readiness{Status: "ok", Checks: checks}
	code := http.StatusOK
	switch {
	case failed:
		body.Status, code = "fail", http.StatusServiceUnavailable
	case degraded:
		body.Status = "degraded"
	}
	writeJSON(w, code, body)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
