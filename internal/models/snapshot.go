package models

import (
	"cmp"
	"slices"
)

// WeekSnapshot is an immutable, date-sorted list of sessions.
// The zero value is an empty week.
type WeekSnapshot struct {
	sessions []Session
}

// NewWeekSnapshot copies sessions and sorts them ascending by scheduled date.
// Sessions on the same date are ordered workouts first, then by dndId, so
// the result does not depend on input order.
func NewWeekSnapshot(sessions ...Session) WeekSnapshot {
	sorted := slices.Clone(sessions)
	slices.SortStableFunc(sorted, compareSessions)
	return WeekSnapshot{sessions: sorted}
}

func compareSessions(a, b Session) int {
	if c := a.ScheduledOn().Compare(b.ScheduledOn()); c != 0 {
		return c
	}
	if a.Kind() != b.Kind() {
		if a.Kind() == KindWorkout {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.DndID(), b.DndID())
}

// Len returns the number of sessions.
func (w WeekSnapshot) Len() int { return len(w.sessions) }

// At returns the i-th session in date order.
func (w WeekSnapshot) At(i int) Session { return w.sessions[i] }

// Sessions returns a copy of the sessions in date order.
func (w WeekSnapshot) Sessions() []Session { return slices.Clone(w.sessions) }

// Find returns the session with the given dndId.
func (w WeekSnapshot) Find(dndID string) (Session, bool) {
	i := w.index(dndID)
	if i < 0 {
		return nil, false
	}
	return w.sessions[i], true
}

// DndIDs returns the dndIds in date order.
func (w WeekSnapshot) DndIDs() []string {
	ids := make([]string, len(w.sessions))
	for i, s := range w.sessions {
		ids[i] = s.DndID()
	}
	return ids
}

// IsSorted reports whether the snapshot respects the date ordering.
func (w WeekSnapshot) IsSorted() bool {
	return slices.IsSortedFunc(w.sessions, compareSessions)
}

// Replace returns a new snapshot with the given sessions substituted for the
// entries sharing their dndId, re-sorted by date. Sessions whose dndId is not
// present are ignored.
func (w WeekSnapshot) Replace(updated ...Session) WeekSnapshot {
	next := slices.Clone(w.sessions)
	for _, u := range updated {
		if i := w.index(u.DndID()); i >= 0 {
			next[i] = u
		}
	}
	slices.SortStableFunc(next, compareSessions)
	return WeekSnapshot{sessions: next}
}

func (w WeekSnapshot) index(dndID string) int {
	return slices.IndexFunc(w.sessions, func(s Session) bool { return s.DndID() == dndID })
}
