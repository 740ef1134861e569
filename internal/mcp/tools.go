package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/swap"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// weekOf returns the Monday of the week containing the given date, or of the
// current week when s is empty.
func weekOf(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return models.WeekStart(now), nil
	}
	t, err := parseFlexTime(s)
	if err != nil {
		return time.Time{}, err
	}
	return models.WeekStart(t), nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// scheduleEntry is one session as shown to an assistant.
type scheduleEntry struct {
	ID              string      `json:"id"`
	Kind            models.Kind `json:"kind"`
	Date            string      `json:"date"`
	Weekday         string      `json:"weekday"`
	Title           string      `json:"title"`
	Type            string      `json:"type"`
	Completed       bool        `json:"completed"`
	DistanceKm      *float64    `json:"distance_km,omitempty"`
	DurationMinutes *int        `json:"duration_minutes,omitempty"`
}

type weekSchedule struct {
	WeekStart string          `json:"week_start"`
	WeekEnd   string          `json:"week_end"`
	Sessions  []scheduleEntry `json:"sessions"`
}

func entryOf(s models.Session) scheduleEntry {
	e := scheduleEntry{
		ID:        models.RawID(s).String(),
		Kind:      s.Kind(),
		Date:      s.ScheduledOn().Format(time.DateOnly),
		Weekday:   s.Weekday().String(),
		Completed: s.IsLocked(),
	}
	models.Match(s,
		func(w models.WorkoutSession) struct{} {
			e.Title, e.Type = w.Title, string(w.WorkoutType)
			e.DistanceKm, e.DurationMinutes = w.DistanceKm, w.DurationMinutes
			return struct{}{}
		},
		func(st models.StrengtheningSession) struct{} {
			minutes := st.DurationMinutes
			e.Title, e.Type = st.Title, st.SessionType
			e.DurationMinutes = &minutes
			return struct{}{}
		},
	)
	return e
}

func scheduleOf(start time.Time, snap models.WeekSnapshot) weekSchedule {
	ws := weekSchedule{
		WeekStart: start.Format(time.DateOnly),
		WeekEnd:   start.AddDate(0, 0, 6).Format(time.DateOnly),
		Sessions:  make([]scheduleEntry, 0, snap.Len()),
	}
	for _, s := range snap.Sessions() {
		ws.Sessions = append(ws.Sessions, entryOf(s))
	}
	return ws
}

// loadWeek fetches the week starting at start as a sorted snapshot.
func (h *handlers) loadWeek(ctx context.Context, start time.Time) (models.WeekSnapshot, error) {
	payload, err := h.ds.QueryWeek(ctx, start, start.AddDate(0, 0, 7), UserIDFromContext(ctx))
	if err != nil {
		return models.WeekSnapshot{}, err
	}
	return models.NewWeekSnapshot(payload.Sessions()...), nil
}

// dndIDOf finds the session with the given raw id in snap.
func dndIDOf(snap models.WeekSnapshot, id uuid.UUID) (string, bool) {
	for _, s := range snap.Sessions() {
		if models.RawID(s) == id {
			return s.DndID(), true
		}
	}
	return "", false
}

// --- Tool definitions ---

var toolGetWeekSchedule = mcp.NewTool("get_week_schedule",
	mcp.WithDescription("List the runs and strengthening sessions planned for one week (Monday to Sunday), ordered by date. Each session has an id usable with swap_sessions and a completed flag; completed sessions cannot be moved."),
	mcp.WithString("week_of", mcp.Description("Any date in the wanted week (YYYY-MM-DD). Defaults to the current week.")),
)

var toolSwapSessions = mcp.NewTool("swap_sessions",
	mcp.WithDescription("Swap the days of two sessions in the same week. Each session keeps its content and takes the other's date. Runs swap with runs and strengthening with strengthening unless the server allows mixed swaps."),
	mcp.WithString("session_1_id", mcp.Required(), mcp.Description("Id of the first session, from get_week_schedule")),
	mcp.WithString("session_2_id", mcp.Required(), mcp.Description("Id of the second session, from get_week_schedule")),
	mcp.WithString("week_of", mcp.Description("Any date in the week holding both sessions (YYYY-MM-DD). Defaults to the current week.")),
)

// --- Tool handlers ---

func (h *handlers) getWeekSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, err := weekOf(req.GetString("week_of", ""), h.now())
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	snap, err := h.loadWeek(ctx, start)
	if err != nil {
		h.log.Error("mcp get_week_schedule", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(scheduleOf(start, snap))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) swapSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var ids [2]uuid.UUID
	for i, name := range []string{"session_1_id", "session_2_id"} {
		raw, err := req.RequireString(name)
		if err != nil {
			return mcp.NewToolResultError(name + " parameter is required"), nil
		}
		if ids[i], err = uuid.Parse(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s is not a valid id", name)), nil
		}
	}
	start, err := weekOf(req.GetString("week_of", ""), h.now())
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	snap, err := h.loadWeek(ctx, start)
	if err != nil {
		h.log.Error("mcp swap_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	var dnd [2]string
	for i, id := range ids {
		var ok bool
		if dnd[i], ok = dndIDOf(snap, id); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("session %s is not in the week of %s", id, start.Format(time.DateOnly))), nil
		}
	}

	op, err := h.resolver.Resolve(snap, dnd[0], dnd[1])
	if err != nil {
		var rej *swap.Rejection
		if errors.As(err, &rej) && rej.UserMessage() != "" {
			return mcp.NewToolResultError(rej.UserMessage()), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := h.ds.SwapSessions(ctx, op.Kind, op.Source, op.Target, UserIDFromContext(ctx)); err != nil {
		h.log.Warn("mcp swap_sessions failed", "op", op.ID, "error", err)
		var um interface{ UserMessage() string }
		if errors.As(err, &um) && um.UserMessage() != "" {
			return mcp.NewToolResultError(um.UserMessage()), nil
		}
		return mcp.NewToolResultError("swap failed: " + err.Error()), nil
	}
	h.log.Info("mcp swapped sessions", "op", op.ID, "kind", op.Kind, "source", op.SourceID, "target", op.TargetID)

	result, err := mcp.NewToolResultJSON(scheduleOf(start, op.Proposed))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
