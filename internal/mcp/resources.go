package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) thisWeek(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	start, _ := weekOf("", h.now())

	snap, err := h.loadWeek(ctx, start)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(scheduleOf(start, snap))
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
