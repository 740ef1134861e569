package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/remote"
	"github.com/claude/runweek/internal/swap"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

var (
	runA  = uuid.MustParse("0a000000-0000-4000-8000-000000000001")
	runB  = uuid.MustParse("0a000000-0000-4000-8000-000000000002")
	runC  = uuid.MustParse("0a000000-0000-4000-8000-000000000003")
	coreS = uuid.MustParse("0a000000-0000-4000-8000-0000000000a1")
)

type swapCall struct {
	kind          models.Kind
	first, second uuid.UUID
	userID        int
}

// fakeSource serves a fixed week and records swaps.
type fakeSource struct {
	week    models.WeekPayload
	swapErr error
	start   time.Time
	swaps   []swapCall
}

func (f *fakeSource) QueryWeek(_ context.Context, start, _ time.Time, _ int) (models.WeekPayload, error) {
	f.start = start
	return f.week, nil
}

func (f *fakeSource) SwapSessions(_ context.Context, kind models.Kind, first, second models.Session, userID int) error {
	f.swaps = append(f.swaps, swapCall{kind, models.RawID(first), models.RawID(second), userID})
	return f.swapErr
}

func testWeek() models.WeekPayload {
	run := func(id uuid.UUID, day int, status models.WorkoutStatus) models.WorkoutSession {
		d := models.Date(2024, 1, day)
		return models.WorkoutSession{ID: id, ScheduledDate: d, DayOfWeek: d.Weekday(), Title: "Run", WorkoutType: models.WorkoutEasy, Status: status}
	}
	core := models.Date(2024, 1, 2)
	return models.WeekPayload{
		Workouts: []models.WorkoutSession{
			run(runC, 5, models.StatusCompleted),
			run(runB, 3, models.StatusPlanned),
			run(runA, 1, models.StatusPlanned),
		},
		Strengthening: []models.StrengtheningSession{
			{ID: coreS, ScheduledDate: core, DayOfWeek: core.Weekday(), SessionType: "core", Title: "Core", DurationMinutes: 20},
		},
	}
}

func newHandlers(ds DataSource, policy swap.Policy) *handlers {
	return &handlers{
		ds:       ds,
		resolver: swap.Resolver{Policy: policy},
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      func() time.Time { return time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC) },
	}
}

func callTool(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := fn(WithUserID(context.Background(), 9), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func decodeSchedule(t *testing.T, res *mcp.CallToolResult) weekSchedule {
	t.Helper()
	var ws weekSchedule
	if err := json.Unmarshal([]byte(resultText(t, res)), &ws); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	return ws
}

// TestUserIDFromContextDefault verifies the default user ID (1) when no value
// is set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	ctx := context.Background()
	if id := UserIDFromContext(ctx); id != 1 {
		t.Errorf("UserIDFromContext(empty) = %d, want 1", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestWeekOf verifies week selection defaults and parsing.
func TestWeekOf(t *testing.T) {
	now := time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", models.Date(2024, 1, 1), false},
		{"2024-02-08", models.Date(2024, 2, 5), false},
		{"2024-02-05T10:30:00Z", models.Date(2024, 2, 5), false},
		{"not-a-date", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := weekOf(tt.in, now)
		if (err != nil) != tt.wantErr {
			t.Errorf("weekOf(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("weekOf(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestGetWeekSchedule verifies the schedule is sorted across kinds and
// marks completed sessions.
func TestGetWeekSchedule(t *testing.T) {
	ds := &fakeSource{week: testWeek()}
	h := newHandlers(ds, swap.SameKindOnly)

	res := callTool(t, h.getWeekSchedule, map[string]any{})
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	ws := decodeSchedule(t, res)

	if ws.WeekStart != "2024-01-01" || ws.WeekEnd != "2024-01-07" {
		t.Errorf("week = %s..%s, want 2024-01-01..2024-01-07", ws.WeekStart, ws.WeekEnd)
	}
	var order []string
	for _, e := range ws.Sessions {
		order = append(order, e.ID)
	}
	want := []string{runA.String(), coreS.String(), runB.String(), runC.String()}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
	if !ws.Sessions[3].Completed {
		t.Error("completed run not marked")
	}
	if ws.Sessions[1].DurationMinutes == nil || *ws.Sessions[1].DurationMinutes != 20 {
		t.Errorf("strengthening duration = %v, want 20", ws.Sessions[1].DurationMinutes)
	}
}

// TestSwapSessionsTool verifies the tool applies resolver rules before
// touching the data source.
func TestSwapSessionsTool(t *testing.T) {
	tests := []struct {
		name      string
		policy    swap.Policy
		id1, id2  uuid.UUID
		wantError string
		wantKind  models.Kind
	}{
		{"runs", swap.SameKindOnly, runA, runB, "", models.KindWorkout},
		{"completed run", swap.SameKindOnly, runA, runC, "Completed sessions can't be moved.", ""},
		{"run with core", swap.SameKindOnly, runA, coreS, "Runs can only be swapped with runs", ""},
		{"run with core allowed", swap.AnyKind, runA, coreS, "", models.KindMixed},
		{"unknown session", swap.SameKindOnly, runA, uuid.New(), "is not in the week", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &fakeSource{week: testWeek()}
			h := newHandlers(ds, tt.policy)

			res := callTool(t, h.swapSessions, map[string]any{
				"session_1_id": tt.id1.String(),
				"session_2_id": tt.id2.String(),
			})

			if tt.wantError != "" {
				if !res.IsError || !strings.Contains(resultText(t, res), tt.wantError) {
					t.Errorf("result = %q (error %v), want error containing %q", resultText(t, res), res.IsError, tt.wantError)
				}
				if len(ds.swaps) != 0 {
					t.Errorf("data source called %d times, want 0", len(ds.swaps))
				}
				return
			}
			if res.IsError {
				t.Fatalf("tool error: %s", resultText(t, res))
			}
			if len(ds.swaps) != 1 {
				t.Fatalf("data source called %d times, want 1", len(ds.swaps))
			}
			got := ds.swaps[0]
			if got.kind != tt.wantKind || got.first != tt.id1 || got.second != tt.id2 || got.userID != 9 {
				t.Errorf("swap call = %+v", got)
			}
			ws := decodeSchedule(t, res)
			for _, e := range ws.Sessions {
				if e.ID == tt.id1.String() && e.Date == "2024-01-01" {
					t.Error("result still shows the old date for session 1")
				}
			}
		})
	}
}

// TestSwapSessionsToolServerError verifies a remote refusal is reported with
// the server's message.
func TestSwapSessionsToolServerError(t *testing.T) {
	ds := &fakeSource{week: testWeek(), swapErr: &remote.APIError{Status: http.StatusConflict, Message: "Completed sessions can't be moved."}}
	h := newHandlers(ds, swap.SameKindOnly)

	res := callTool(t, h.swapSessions, map[string]any{"session_1_id": runA.String(), "session_2_id": runB.String()})
	if !res.IsError || resultText(t, res) != "Completed sessions can't be moved." {
		t.Errorf("result = %q, want server message", resultText(t, res))
	}

	ds.swapErr = errors.New("connection reset")
	res = callTool(t, h.swapSessions, map[string]any{"session_1_id": runA.String(), "session_2_id": runB.String()})
	if !res.IsError || !strings.Contains(resultText(t, res), "connection reset") {
		t.Errorf("result = %q, want wrapped error", resultText(t, res))
	}
}

// TestSwapSessionsToolBadArgs verifies missing and malformed ids are refused.
func TestSwapSessionsToolBadArgs(t *testing.T) {
	h := newHandlers(&fakeSource{week: testWeek()}, swap.SameKindOnly)
	for _, args := range []map[string]any{
		{"session_1_id": runA.String()},
		{"session_1_id": "abc", "session_2_id": runB.String()},
		{"session_1_id": runA.String(), "session_2_id": runB.String(), "week_of": "someday"},
	} {
		if res := callTool(t, h.swapSessions, args); !res.IsError {
			t.Errorf("args %v: expected tool error", args)
		}
	}
}

// TestThisWeekResource verifies the resource serves the current week.
func TestThisWeekResource(t *testing.T) {
	ds := &fakeSource{week: testWeek()}
	h := newHandlers(ds, swap.SameKindOnly)

	var req mcp.ReadResourceRequest
	req.Params.URI = "runweek://this_week"
	contents, err := h.thisWeek(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	var ws weekSchedule
	if err := json.Unmarshal([]byte(text.Text), &ws); err != nil {
		t.Fatal(err)
	}
	if len(ws.Sessions) != 4 || !ds.start.Equal(models.Date(2024, 1, 1)) {
		t.Errorf("sessions = %d, start = %v", len(ws.Sessions), ds.start)
	}
}

// TestHTTPClientDataSource verifies remote mode forwards to the REST API.
func TestHTTPClientDataSource(t *testing.T) {
	var swapped bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/week":
			if err := json.NewEncoder(w).Encode(testWeek()); err != nil {
				t.Error(err)
			}
		case "/api/v1/workouts/swap":
			swapped = true
			w.Write([]byte(`{"message":"Sessions swapped."}`))
		default:
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	h := newHandlers(NewHTTPClient(ts.URL, "key"), swap.SameKindOnly)
	res := callTool(t, h.swapSessions, map[string]any{"session_1_id": runA.String(), "session_2_id": runB.String()})
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if !swapped {
		t.Error("swap endpoint not called")
	}
}
