package mcp

import (
	"context"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QueryWeek(ctx context.Context, start, end time.Time, userID int) (models.WeekPayload, error)
	SwapSessions(ctx context.Context, kind models.Kind, first, second models.Session, userID int) error
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
