// Package optimistic applies resolved swaps to the visible week immediately,
// persists them in the background and restores the prior week when
// persistence fails.
package optimistic

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/notify"
)

const (
	// DefaultTimeout bounds a single remote swap call.
	DefaultTimeout = 10 * time.Second

	msgGenericFailure = "Couldn't move the session. Your schedule has been restored."
	msgTimeout        = "The server took too long to respond. Your schedule has been restored."
	msgCommitted      = "Session moved."
	msgDiverged       = "Your schedule changed on the server. Reloading the week."
)

// Persister performs the remote date exchange. Errors may implement
// UserMessage() string to carry a message for the user.
type Persister interface {
	SwapSessions(ctx context.Context, kind models.Kind, first, second models.Session) error
}

// ResolveFunc computes an operation against the current snapshot.
type ResolveFunc func(current models.WeekSnapshot) (*models.SwapOperation, error)

type userMessager interface {
	UserMessage() string
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout bounds each remote call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithOnChange registers a hook run after the current snapshot is replaced.
// The hook should read Snapshot for the latest state.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithOnSettle registers a hook run when an operation is committed or rolled back.
func WithOnSettle(fn func(models.SwapOperation)) Option {
	return func(c *Controller) { c.onSettle = fn }
}

// WithOnDiverged registers a hook run when a rollback discarded a swap the
// server has applied, so local state is behind the server.
func WithOnDiverged(fn func()) Option {
	return func(c *Controller) { c.onDiverged = fn }
}

// WithClock overrides time.Now for settle timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the current week snapshot. Every mutation replaces the
// snapshot wholesale under mu.
type Controller struct {
	persister Persister
	notifier  notify.Notifier
	log       *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	onChange   func()
	onSettle   func(models.SwapOperation)
	onDiverged func()

	mu      sync.Mutex
	current models.WeekSnapshot
	// chain holds operations applied on top of each other, oldest first.
	// The head is never committed; committed heads are dropped.
	chain []*models.SwapOperation
	gen   uint64

	wg sync.WaitGroup
}

// New returns a Controller showing initial.
func New(initial models.WeekSnapshot, persister Persister, notifier notify.Notifier, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		persister: persister,
		notifier:  notifier,
		log:       log,
		timeout:   DefaultTimeout,
		now:       time.Now,
		current:   initial,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the week currently shown.
func (c *Controller) Snapshot() models.WeekSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Pending returns the newest unreconciled operation, which is the one the
// controller owns.
func (c *Controller) Pending() (models.SwapOperation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chain) == 0 {
		return models.SwapOperation{}, false
	}
	return *c.chain[len(c.chain)-1], true
}

// Apply resolves a swap against the current snapshot and, when eligible,
// shows the proposed snapshot at once and persists it in the background.
// A rejection leaves state untouched and is returned as the error.
// PRE: resolve is pure
// POST: on success the current snapshot is the operation's Proposed snapshot
func (c *Controller) Apply(ctx context.Context, resolve ResolveFunc) (models.SwapOperation, error) {
	c.mu.Lock()
	op, err := resolve(c.current)
	if err != nil {
		c.mu.Unlock()
		c.reject(ctx, err)
		return models.SwapOperation{}, err
	}
	gen := c.gen
	c.current = op.Proposed
	c.chain = append(c.chain, op)
	applied := *op
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Debug("swap applied", "op", op.ID, "source", op.SourceID, "target", op.TargetID, "kind", op.Kind)
	c.changed()

	go c.persist(context.WithoutCancel(ctx), op, gen)
	return applied, nil
}

// Reset installs a freshly loaded snapshot and forgets every in-flight
// operation. Completions of those operations are ignored.
func (c *Controller) Reset(snapshot models.WeekSnapshot) {
	c.mu.Lock()
	c.gen++
	dropped := len(c.chain)
	c.chain = nil
	c.current = snapshot
	c.mu.Unlock()

	if dropped > 0 {
		c.log.Info("reset discarded in-flight swaps", "count", dropped)
	}
	c.changed()
}

// Wait blocks until every started remote call has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) reject(ctx context.Context, err error) {
	c.log.Debug("swap rejected", "error", err)
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			c.notifier.Notify(ctx, notify.Notice{Level: notify.LevelInfo, Message: msg})
		}
	}
}

func (c *Controller) persist(ctx context.Context, op *models.SwapOperation, gen uint64) {
	defer c.wg.Done()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.persister.SwapSessions(callCtx, op.Kind, op.Source, op.Target)
	cancel()

	if err != nil {
		c.fail(ctx, op, gen, err)
		return
	}
	c.commit(ctx, op, gen)
}

func (c *Controller) commit(ctx context.Context, op *models.SwapOperation, gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Info("ignoring swap completion from before reset", "op", op.ID)
		return
	}
	if !slices.Contains(c.chain, op) {
		// Already discarded by an earlier rollback, yet the server applied it.
		// Settle it again so the record matches the server.
		op.State = models.OpCommitted
		op.Error = ""
		op.SettledAt = c.now()
		settled := *op
		c.mu.Unlock()
		c.log.Warn("discarded swap was committed by the server", "op", op.ID)
		c.settled(settled)
		c.diverged(ctx)
		return
	}
	op.State = models.OpCommitted
	op.SettledAt = c.now()
	for len(c.chain) > 0 && c.chain[0].State == models.OpCommitted {
		c.chain = c.chain[1:]
	}
	settled := *op
	c.mu.Unlock()

	c.log.Info("swap committed", "op", op.ID, "source", op.SourceID, "target", op.TargetID)
	c.notifier.Notify(ctx, notify.Notice{Level: notify.LevelSuccess, Message: msgCommitted})
	c.settled(settled)
}

func (c *Controller) fail(ctx context.Context, op *models.SwapOperation, gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Info("ignoring swap failure from before reset", "op", op.ID, "error", cause)
		return
	}
	idx := slices.Index(c.chain, op)
	if idx < 0 {
		c.mu.Unlock()
		c.log.Debug("discarded swap failed remotely", "op", op.ID, "error", cause)
		return
	}

	now := c.now()
	op.State = models.OpRolledBack
	op.Error = cause.Error()
	op.SettledAt = now

	// Everything applied after op was built on op's Proposed snapshot and
	// goes with it.
	later := c.chain[idx+1:]
	c.chain = c.chain[:idx]
	c.current = op.Previous

	settled := []models.SwapOperation{*op}
	lost := false
	for _, l := range later {
		if l.State == models.OpCommitted {
			// The server keeps it; only the local view loses it.
			lost = true
			continue
		}
		l.State = models.OpRolledBack
		l.Error = "discarded by rollback of " + op.ID.String()
		l.SettledAt = now
		settled = append(settled, *l)
	}
	c.mu.Unlock()

	c.log.Warn("swap failed, rolled back", "op", op.ID, "discarded", len(later), "error", cause)
	c.changed()
	c.notifier.Notify(ctx, notify.Notice{Level: notify.LevelFailure, Message: failureMessage(cause)})
	for _, s := range settled {
		c.settled(s)
	}
	if lost {
		c.diverged(ctx)
	}
}

func failureMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}
	return msgGenericFailure
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Controller) settled(op models.SwapOperation) {
	if c.onSettle != nil {
		c.onSettle(op)
	}
}

func (c *Controller) diverged(ctx context.Context) {
	c.notifier.Notify(ctx, notify.Notice{Level: notify.LevelInfo, Message: msgDiverged})
	if c.onDiverged != nil {
		c.onDiverged()
	}
}
