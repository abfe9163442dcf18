// Package api serves the fusion search service over HTTP.
//
// Routes:
//
//	POST   /v1/search            run one search, respond with its outcome
//	POST   /v1/search/batch      run up to search.max_batch searches concurrently
//	GET    /v1/search/stream     websocket: one request in, one frame per result out
//	GET    /v1/creatures/{name}  creature plus producing and consuming recipes
//	GET    /v1/skills/{name}     skill plus the creatures that learn it innately
//	GET    /v1/builds            recently recorded searches (?limit=N&target=NAME)
//	GET    /v1/builds/{id}       one recorded search
//	DELETE /v1/builds/{id}       forget one recorded search
//
// Errors are JSON objects of the form {"error": "..."}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pickled-dev/smt-tools/internal/buildstore"
	"github.com/pickled-dev/smt-tools/internal/observe"
	"github.com/pickled-dev/smt-tools/internal/service"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the /v1 routes.
type Handler struct {
	svc *service.Service
}

// New returns a Handler backed by svc.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register adds the /v1 routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/search", h.search)
	mux.HandleFunc("POST /v1/search/batch", h.batch)
	mux.HandleFunc("GET /v1/search/stream", h.stream)
	mux.HandleFunc("GET /v1/creatures/{name}", h.creature)
	mux.HandleFunc("GET /v1/skills/{name}", h.skill)
	mux.HandleFunc("GET /v1/builds", h.listBuilds)
	mux.HandleFunc("GET /v1/builds/{id}", h.getBuild)
	mux.HandleFunc("DELETE /v1/builds/{id}", h.deleteBuild)
}

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type batchRequest struct {
	Requests []fusion.Request `json:"requests"`
}

type batchResponse struct {
	Results []fusion.Outcome `json:"results"`
}

type listResponse struct {
	Builds []buildstore.Build `json:"builds"`
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var req fusion.Request
	if !decode(w, r, &req) {
		return
	}
	out, err := h.svc.Search(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if !decode(w, r, &body) {
		return
	}
	if len(body.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "requests must not be empty")
		return
	}
	outs, err := h.svc.Batch(r.Context(), body.Requests)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: outs})
}

func (h *Handler) creature(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Creature(r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) skill(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Skill(r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) listBuilds(w http.ResponseWriter, r *http.Request) {
	opts := buildstore.ListOptions{Target: r.URL.Query().Get("target")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		opts.Limit = n
	}
	builds, err := h.svc.ListBuilds(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if builds == nil {
		builds = []buildstore.Build{}
	}
	writeJSON(w, http.StatusOK, listResponse{Builds: builds})
}

func (h *Handler) getBuild(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBuild(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) deleteBuild(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBuild(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps err to a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var nf *service.NotFoundError
	switch {
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: nf.Error(), Suggestions: nf.Suggestions})
	case errors.Is(err, buildstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrNoBuildStore):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, buildstore.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "search timed out")
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the response.
		w.WriteHeader(499)
	default:
		observe.Logger(r.Context()).Error("request failed", "route", r.Pattern, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
