package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/claude/runweek/internal/storage"
	"github.com/claude/runweek/internal/swap"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return storage.LocalUserID
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered. Swaps
// requested through it obey policy.
func New(ds DataSource, policy swap.Policy, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("runweek", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("runweek training week server. Read the scheduled runs and strengthening sessions for a week and swap the days of two sessions. Completed sessions cannot be moved."),
	)

	h := &handlers{ds: ds, resolver: swap.Resolver{Policy: policy}, log: log, now: time.Now}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetWeekSchedule, Handler: h.getWeekSchedule},
		server.ServerTool{Tool: toolSwapSessions, Handler: h.swapSessions},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resThisWeek, Handler: h.thisWeek},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds       DataSource
	resolver swap.Resolver
	log      *slog.Logger
	now      func() time.Time
}

// --- Resource definitions ---

var resThisWeek = mcp.NewResource(
	"runweek://this_week",
	"This Week",
	mcp.WithResourceDescription("Runs and strengthening sessions scheduled this week (Monday to Sunday), in display order"),
	mcp.WithMIMEType("application/json"),
)
