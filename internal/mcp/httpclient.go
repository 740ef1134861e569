package mcp

import (
	"context"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/remote"
)

// HTTPClient implements DataSource by calling the runweek REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The server
// decides the user, so userID arguments are ignored.
type HTTPClient struct {
	client *remote.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{client: remote.NewClient(baseURL, apiKey)}
}

func (c *HTTPClient) QueryWeek(ctx context.Context, start, end time.Time, _ int) (models.WeekPayload, error) {
	return c.client.FetchWeek(ctx, start, end)
}

func (c *HTTPClient) SwapSessions(ctx context.Context, kind models.Kind, first, second models.Session, _ int) error {
	return c.client.SwapSessions(ctx, kind, first, second)
}
