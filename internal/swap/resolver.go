// Package swap decides whether two sessions of a week may exchange dates and
// computes the resulting week. It holds no state.
package swap

import (
	"fmt"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/google/uuid"
)

// Reason explains why a swap was rejected.
type Reason string

const (
	ReasonSameSession  Reason = "same-session"
	ReasonNotFound     Reason = "not-found"
	ReasonLocked       Reason = "locked"
	ReasonTypeMismatch Reason = "type-mismatch"
)

// Rejection is returned when a swap is not eligible. It is an expected
// outcome, not a failure.
type Rejection struct {
	Reason    Reason
	SessionID string
}

func (r *Rejection) Error() string {
	if r.SessionID == "" {
		return fmt.Sprintf("swap rejected: %s", r.Reason)
	}
	return fmt.Sprintf("swap rejected: %s (%s)", r.Reason, r.SessionID)
}

// UserMessage is the low-priority text shown to the user. Dropping a session
// on itself is silent.
func (r *Rejection) UserMessage() string {
	switch r.Reason {
	case ReasonLocked:
		return "Completed sessions can't be moved."
	case ReasonTypeMismatch:
		return "Runs can only be swapped with runs, and strengthening with strengthening."
	case ReasonNotFound:
		return "That session is no longer in this week."
	default:
		return ""
	}
}

// Is matches any Rejection with the same Reason.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

var (
	ErrSameSession  = &Rejection{Reason: ReasonSameSession}
	ErrNotFound     = &Rejection{Reason: ReasonNotFound}
	ErrLocked       = &Rejection{Reason: ReasonLocked}
	ErrTypeMismatch = &Rejection{Reason: ReasonTypeMismatch}
)

// Policy selects which pairs of sessions may be swapped. Locked sessions are
// never swappable under any policy.
type Policy string

const (
	// SameKindOnly allows workout<->workout and strengthening<->strengthening.
	SameKindOnly Policy = "same-kind"
	// AnyKind allows any two unlocked sessions.
	AnyKind Policy = "any-kind"
)

// ParsePolicy maps a config value to a Policy. Empty selects SameKindOnly.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", SameKindOnly:
		return SameKindOnly, nil
	case AnyKind:
		return AnyKind, nil
	default:
		return "", fmt.Errorf("unknown swap policy %q", s)
	}
}

// Resolver applies an eligibility policy.
type Resolver struct {
	Policy Policy
	Now    func() time.Time // injectable for testing
}

// Resolve uses the default SameKindOnly policy.
func Resolve(list models.WeekSnapshot, sourceID, targetID string) (*models.SwapOperation, error) {
	return Resolver{Policy: SameKindOnly}.Resolve(list, sourceID, targetID)
}

// Resolve decides eligibility of swapping sourceID with targetID in list and,
// when eligible, returns a Pending operation whose Proposed snapshot has the
// two sessions' dates exchanged and the whole week re-sorted.
// PRE: list is a snapshot produced by models.NewWeekSnapshot
// POST: on error the list is untouched and the error is a *Rejection
// INVARIANT: a locked session is never part of a returned operation
func (r Resolver) Resolve(list models.WeekSnapshot, sourceID, targetID string) (*models.SwapOperation, error) {
	if sourceID == targetID {
		return nil, &Rejection{Reason: ReasonSameSession, SessionID: sourceID}
	}
	source, ok := list.Find(sourceID)
	if !ok {
		return nil, &Rejection{Reason: ReasonNotFound, SessionID: sourceID}
	}
	target, ok := list.Find(targetID)
	if !ok {
		return nil, &Rejection{Reason: ReasonNotFound, SessionID: targetID}
	}

	if source.IsLocked() {
		return nil, &Rejection{Reason: ReasonLocked, SessionID: sourceID}
	}
	if target.IsLocked() {
		return nil, &Rejection{Reason: ReasonLocked, SessionID: targetID}
	}

	kind := source.Kind()
	if source.Kind() != target.Kind() {
		if r.Policy != AnyKind {
			return nil, &Rejection{Reason: ReasonTypeMismatch, SessionID: targetID}
		}
		kind = models.KindMixed
	}

	newSource, newTarget := models.ExchangeSchedule(source, target)

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return &models.SwapOperation{
		ID:        uuid.New(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Kind:      kind,
		Source:    source,
		Target:    target,
		Previous:  list,
		Proposed:  list.Replace(newSource, newTarget),
		State:     models.OpPending,
		CreatedAt: now(),
	}, nil
}
