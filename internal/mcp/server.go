// Package mcp exposes the fusion search service as Model Context Protocol
// tools, so assistants can plan fusions on a player's behalf.
//
// Tools:
//   - search_fusion_chains: find fusion chains that give a creature a skill set
//   - lookup_creature: a creature's race, level and innate skills
//   - lookup_skill: a skill's element, level and innate owners
//   - recipes_for: the recipes producing or consuming a creature
//
// The server is reachable over streamable HTTP ([Server.Handler]) or any
// other MCP transport ([Server.Run]).
package mcp

import (
	"context"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pickled-dev/smt-tools/internal/observe"
	"github.com/pickled-dev/smt-tools/internal/service"
)

const (
	serverName    = "smt-tools"
	serverVersion = "1.0.0"
)

// Server is an MCP server backed by a [service.Service].
type Server struct {
	svc     *service.Service
	metrics *observe.Metrics
	server  *mcpsdk.Server
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics records tool call metrics to m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server with every tool registered.
func New(svc *service.Service, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.server = mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: serverVersion}, &mcpsdk.ServerOptions{
		Instructions: "Plans monster fusions. Use search_fusion_chains to find how to give a creature a set of skills; " +
			"use the lookup tools to check names first when unsure of spelling.",
	})
	addTool(s, searchTool(), s.searchHandler())
	addTool(s, lookupCreatureTool(), s.lookupCreatureHandler())
	addTool(s, lookupSkillTool(), s.lookupSkillHandler())
	addTool(s, recipesForTool(), s.recipesForHandler())
	return s
}

// Handler returns a streamable HTTP handler serving s.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.server }, nil)
}

// Run serves s over t until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	return s.server.Run(ctx, t)
}

// addTool registers h under tool, wrapped with a span and call metrics.
func addTool[In, Out any](s *Server, tool *mcpsdk.Tool, h mcpsdk.ToolHandlerFor[In, Out]) {
	mcpsdk.AddTool(s.server, tool, func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, Out, error) {
		ctx, span := observe.StartSpan(ctx, "mcp.tool."+tool.Name)
		start := time.Now()
		res, out, err := h(ctx, req, in)
		observe.EndSpan(span, err)

		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordToolCall(ctx, tool.Name, status)
		observe.Logger(ctx).Debug("mcp tool call",
			"tool", tool.Name,
			"status", status,
			"duration", time.Since(start),
		)
		return res, out, err
	})
}
