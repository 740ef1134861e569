// Package weekview composes the reorder engine: it owns the visible week,
// feeds gestures to the resolver and hands results to the optimistic
// controller.
package weekview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/runweek/internal/gesture"
	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/notify"
	"github.com/claude/runweek/internal/optimistic"
	"github.com/claude/runweek/internal/swap"
	"github.com/google/uuid"
)

// refreshTimeout bounds a reload triggered by divergence.
const refreshTimeout = 30 * time.Second

// Source fetches the sessions scheduled in [start, end).
type Source interface {
	FetchWeek(ctx context.Context, start, end time.Time) (models.WeekPayload, error)
}

// Journal records settled operations.
type Journal interface {
	Record(ctx context.Context, op models.SwapOperation) error
}

// Deps holds dependencies for a View. Source and Journal are optional.
type Deps struct {
	Persister   optimistic.Persister
	Notifier    notify.Notifier
	Log         *slog.Logger
	Gesture     gesture.Config
	Policy      swap.Policy
	SyncTimeout time.Duration
	Source      Source
	Journal     Journal
	// WeekStart is the first day of the displayed week, used by Refresh.
	WeekStart time.Time
}

// Outcome is the immediate result of a drop.
type Outcome string

const (
	Applied   Outcome = "applied"
	Rejected  Outcome = "rejected"
	Cancelled Outcome = "cancelled"
)

// DropResult reports what a drop did. Persistence finishes later; watch
// notices or the journal for the final state.
type DropResult struct {
	Outcome   Outcome
	Reason    swap.Reason
	Operation models.SwapOperation
}

// View is the ordered week shown to the user.
type View struct {
	ctrl      *optimistic.Controller
	resolver  swap.Resolver
	expanded  *Expansion
	source    Source
	journal   Journal
	log       *slog.Logger
	weekStart time.Time

	// inputMu serializes gesture input; the coordinator is single-threaded.
	inputMu sync.Mutex
	drag    *gesture.Coordinator
	in      *intents

	activeMu sync.Mutex
	active   string
}

// New builds a View from a freshly fetched payload.
func New(payload models.WeekPayload, deps Deps) *View {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	v := &View{
		resolver:  swap.Resolver{Policy: deps.Policy},
		expanded:  NewExpansion(),
		source:    deps.Source,
		journal:   deps.Journal,
		log:       log,
		weekStart: deps.WeekStart,
	}
	v.in = &intents{v: v}
	v.drag = gesture.NewCoordinator(deps.Gesture, v.in)
	v.ctrl = optimistic.New(ingest(payload, log), deps.Persister, notifier, log,
		optimistic.WithTimeout(deps.SyncTimeout),
		optimistic.WithOnSettle(v.record),
		optimistic.WithOnDiverged(v.resync),
	)
	return v
}

// Snapshot returns the week as currently shown.
func (v *View) Snapshot() models.WeekSnapshot {
	return v.ctrl.Snapshot()
}

// Pending returns the operation awaiting the server, if any.
func (v *View) Pending() (models.SwapOperation, bool) {
	return v.ctrl.Pending()
}

// Active returns the dndId being dragged, or "".
func (v *View) Active() string {
	v.activeMu.Lock()
	defer v.activeMu.Unlock()
	return v.active
}

func (v *View) setActive(id string) {
	v.activeMu.Lock()
	v.active = id
	v.activeMu.Unlock()
}

// Handle feeds one pointer event through the drag coordinator. When the
// event completes a drop, its result is returned.
func (v *View) Handle(ctx context.Context, ev gesture.Event) (DropResult, bool) {
	v.inputMu.Lock()
	defer v.inputMu.Unlock()

	v.in.ctx = ctx
	v.in.result, v.in.dropped = DropResult{}, false
	v.drag.Handle(ev)
	v.in.ctx = nil
	return v.in.result, v.in.dropped
}

// Drop swaps the dates of sourceID and targetID.
func (v *View) Drop(ctx context.Context, sourceID, targetID string) DropResult {
	v.setActive("")
	if sourceID == targetID {
		return DropResult{Outcome: Cancelled}
	}

	op, err := v.ctrl.Apply(ctx, func(cur models.WeekSnapshot) (*models.SwapOperation, error) {
		return v.resolver.Resolve(cur, sourceID, targetID)
	})
	if err != nil {
		var rej *swap.Rejection
		if !errors.As(err, &rej) {
			v.log.Error("unexpected resolve error", "error", err)
			return DropResult{Outcome: Rejected}
		}
		if rej.Reason == swap.ReasonNotFound {
			v.log.Warn("drop references a session not in the week", "source", sourceID, "target", targetID)
		}
		return DropResult{Outcome: Rejected, Reason: rej.Reason}
	}
	return DropResult{Outcome: Applied, Operation: op}
}

// Toggle flips the expansion of a card.
func (v *View) Toggle(id string) bool {
	return v.expanded.Toggle(id)
}

// Expanded reports whether a card is expanded.
func (v *View) Expanded(id string) bool {
	return v.expanded.IsExpanded(id)
}

// Reload discards in-flight bookkeeping and rebuilds the week from payload.
// Use it after the server changed outside this view (completion, manual
// reschedule).
func (v *View) Reload(payload models.WeekPayload) {
	snap := ingest(payload, v.log)
	v.ctrl.Reset(snap)
	v.expanded.Retain(snap.DndIDs())
	v.log.Debug("week reloaded", "sessions", snap.Len())
}

// Refresh fetches the week from the configured Source and reloads it.
func (v *View) Refresh(ctx context.Context) error {
	if v.source == nil {
		return errors.New("no week source configured")
	}
	payload, err := v.source.FetchWeek(ctx, v.weekStart, v.weekStart.AddDate(0, 0, 7))
	if err != nil {
		return fmt.Errorf("fetching week: %w", err)
	}
	v.Reload(payload)
	return nil
}

// Wait blocks until every outstanding remote call has settled.
func (v *View) Wait() {
	v.ctrl.Wait()
}

func (v *View) record(op models.SwapOperation) {
	if v.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
	defer cancel()
	if err := v.journal.Record(ctx, op); err != nil {
		v.log.Error("failed to journal swap", "op", op.ID, "error", err)
	}
}

func (v *View) resync() {
	if v.source == nil {
		v.log.Warn("week diverged from server and no source is configured to reload it")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := v.Refresh(ctx); err != nil {
		v.log.Error("reload after divergence failed", "error", err)
	}
}

// ingest drops malformed sessions and builds a sorted snapshot.
func ingest(payload models.WeekPayload, log *slog.Logger) models.WeekSnapshot {
	seen := make(map[string]struct{})
	keep := make([]models.Session, 0, len(payload.Workouts)+len(payload.Strengthening))
	for _, s := range payload.Sessions() {
		if models.RawID(s) == uuid.Nil {
			log.Warn("dropping session without id", "kind", s.Kind(), "date", s.ScheduledOn().Format(time.DateOnly))
			continue
		}
		if _, dup := seen[s.DndID()]; dup {
			log.Warn("dropping duplicate session", "id", s.DndID())
			continue
		}
		seen[s.DndID()] = struct{}{}
		keep = append(keep, s)
	}
	return models.NewWeekSnapshot(keep...)
}

// intents adapts coordinator callbacks to the view. ctx is only set for the
// duration of View.Handle.
type intents struct {
	v       *View
	ctx     context.Context
	result  DropResult
	dropped bool
}

func (in *intents) DragStart(id string) {
	in.v.setActive(id)
}

func (in *intents) DragEnd(sourceID, targetID string) {
	in.result = in.v.Drop(in.ctx, sourceID, targetID)
	in.dropped = true
}

func (in *intents) DragCancel() {
	in.v.setActive("")
	in.result = DropResult{Outcome: Cancelled}
	in.dropped = true
}

func (in *intents) Tap(id string) {
	in.v.Toggle(id)
}
