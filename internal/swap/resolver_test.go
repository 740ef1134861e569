package swap

import (
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/google/uuid"
)

var (
	idA = uuid.MustParse("5f0c1d2e-0000-4000-8000-00000000000a")
	idB = uuid.MustParse("5f0c1d2e-0000-4000-8000-00000000000b")
	idC = uuid.MustParse("5f0c1d2e-0000-4000-8000-00000000000c")
	idS = uuid.MustParse("5f0c1d2e-0000-4000-8000-0000000000ff")
)

func workout(id uuid.UUID, date time.Time, status models.WorkoutStatus) models.WorkoutSession {
	return models.WorkoutSession{
		ID:            id,
		ScheduledDate: date,
		DayOfWeek:     date.Weekday(),
		WorkoutType:   models.WorkoutEasy,
		Title:         "run " + id.String()[35:],
		Status:        status,
	}
}

// abcWeek is A(2024-01-01), B(2024-01-03), C(2024-01-05, completed).
func abcWeek() models.WeekSnapshot {
	return models.NewWeekSnapshot(
		workout(idA, models.Date(2024, 1, 1), models.StatusPlanned),
		workout(idB, models.Date(2024, 1, 3), models.StatusPlanned),
		workout(idC, models.Date(2024, 1, 5), models.StatusCompleted),
	)
}

func dateOf(t *testing.T, snap models.WeekSnapshot, id string) time.Time {
	t.Helper()
	s, ok := snap.Find(id)
	if !ok {
		t.Fatalf("session %s missing from snapshot", id)
	}
	return s.ScheduledOn()
}

// TestResolveResortsAfterSwap verifies the week is re-sorted by the new dates
// rather than by swapping list positions.
func TestResolveResortsAfterSwap(t *testing.T) {
	list := models.NewWeekSnapshot(
		workout(idA, models.Date(2024, 1, 1), models.StatusPlanned),
		workout(idB, models.Date(2024, 1, 3), models.StatusPlanned),
		workout(idC, models.Date(2024, 1, 5), models.StatusPlanned),
	)

	op, err := Resolve(list, idA.String(), idB.String())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	want := []string{idB.String(), idA.String(), idC.String()}
	if got := op.Proposed.DndIDs(); !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if got := dateOf(t, op.Proposed, idB.String()); !got.Equal(models.Date(2024, 1, 1)) {
		t.Errorf("B date = %v, want 2024-01-01", got)
	}
	if got := dateOf(t, op.Proposed, idA.String()); !got.Equal(models.Date(2024, 1, 3)) {
		t.Errorf("A date = %v, want 2024-01-03", got)
	}
	if got := dateOf(t, op.Proposed, idC.String()); !got.Equal(models.Date(2024, 1, 5)) {
		t.Errorf("C date = %v, want 2024-01-05", got)
	}
	if !op.Proposed.IsSorted() {
		t.Error("proposed snapshot not sorted")
	}
	if op.State != models.OpPending {
		t.Errorf("state = %q, want pending", op.State)
	}
	if op.Kind != models.KindWorkout {
		t.Errorf("kind = %q, want workout", op.Kind)
	}
	if !reflect.DeepEqual(op.Previous, list) {
		t.Error("Previous is not the input snapshot")
	}
}

// TestResolveWeekdayFollowsDate verifies day_of_week moves with the date.
func TestResolveWeekdayFollowsDate(t *testing.T) {
	op, err := Resolve(abcWeek(), idA.String(), idB.String())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	a, _ := op.Proposed.Find(idA.String())
	if a.Weekday() != time.Wednesday {
		t.Errorf("A weekday = %v, want Wednesday", a.Weekday())
	}
	if got := a.(models.WorkoutSession).Title; got != "run a" {
		t.Errorf("A title = %q, want it to stay with A", got)
	}
}

// TestResolveLockedTarget verifies a completed session cannot be a target and
// the list is left unchanged.
func TestResolveLockedTarget(t *testing.T) {
	list := abcWeek()
	before := list.Sessions()

	op, err := Resolve(list, idA.String(), idC.String())
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v, want locked", err)
	}
	if op != nil {
		t.Errorf("op = %+v, want nil", op)
	}
	if !reflect.DeepEqual(list.Sessions(), before) {
		t.Error("list changed after rejection")
	}
}

// TestResolveNeverMovesLocked checks every pairing with a locked session.
func TestResolveNeverMovesLocked(t *testing.T) {
	list := models.NewWeekSnapshot(
		workout(idA, models.Date(2024, 1, 1), models.StatusCompleted),
		workout(idB, models.Date(2024, 1, 3), models.StatusPlanned),
		models.StrengtheningSession{ID: idS, ScheduledDate: models.Date(2024, 1, 4), Completed: true},
		workout(idC, models.Date(2024, 1, 5), models.StatusPlanned),
	)
	for _, policy := range []Policy{SameKindOnly, AnyKind} {
		r := Resolver{Policy: policy}
		for _, src := range list.Sessions() {
			for _, dst := range list.Sessions() {
				if src.DndID() == dst.DndID() || (!src.IsLocked() && !dst.IsLocked()) {
					continue
				}
				if _, err := r.Resolve(list, src.DndID(), dst.DndID()); !errors.Is(err, ErrLocked) {
					t.Errorf("%s: %s<->%s err = %v, want locked", policy, src.DndID(), dst.DndID(), err)
				}
			}
		}
	}
}

// TestResolveTypeMismatch verifies the same-kind policy rejects a workout
// paired with a strengthening session.
func TestResolveTypeMismatch(t *testing.T) {
	w := workout(idA, models.Date(2024, 2, 1), models.StatusPlanned)
	s := models.StrengtheningSession{ID: idS, ScheduledDate: models.Date(2024, 2, 2), DayOfWeek: time.Friday}
	list := models.NewWeekSnapshot(w, s)

	_, err := Resolve(list, w.DndID(), s.DndID())
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("err = %v, want type-mismatch", err)
	}
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonTypeMismatch {
		t.Errorf("rejection = %+v", rej)
	}
	if got := dateOf(t, list, w.DndID()); !got.Equal(models.Date(2024, 2, 1)) {
		t.Errorf("W date = %v, want unchanged", got)
	}
}

// TestResolveAnyKindPolicy verifies the permissive policy accepts cross-kind
// swaps and marks them mixed.
func TestResolveAnyKindPolicy(t *testing.T) {
	w := workout(idA, models.Date(2024, 2, 1), models.StatusPlanned)
	s := models.StrengtheningSession{ID: idS, ScheduledDate: models.Date(2024, 2, 2), DayOfWeek: time.Friday}
	list := models.NewWeekSnapshot(w, s)

	op, err := Resolver{Policy: AnyKind}.Resolve(list, w.DndID(), s.DndID())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if op.Kind != models.KindMixed {
		t.Errorf("kind = %q, want mixed", op.Kind)
	}
	if got := op.Proposed.DndIDs(); !slices.Equal(got, []string{s.DndID(), w.DndID()}) {
		t.Errorf("order = %v", got)
	}
}

// TestResolveSameKindStrengthening verifies two strengthening sessions swap
// under the default policy.
func TestResolveSameKindStrengthening(t *testing.T) {
	s1 := models.StrengtheningSession{ID: idA, ScheduledDate: models.Date(2024, 3, 4)}
	s2 := models.StrengtheningSession{ID: idB, ScheduledDate: models.Date(2024, 3, 7)}
	op, err := Resolve(models.NewWeekSnapshot(s1, s2), s1.DndID(), s2.DndID())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if op.Kind != models.KindStrengthening {
		t.Errorf("kind = %q, want strengthening", op.Kind)
	}
}

// TestResolveSelfInverse verifies applying the same swap twice restores both dates.
func TestResolveSelfInverse(t *testing.T) {
	list := abcWeek()
	first, err := Resolve(list, idA.String(), idB.String())
	if err != nil {
		t.Fatalf("first swap: %v", err)
	}
	second, err := Resolve(first.Proposed, idA.String(), idB.String())
	if err != nil {
		t.Fatalf("second swap: %v", err)
	}
	if !reflect.DeepEqual(second.Proposed, list) {
		t.Errorf("double swap = %v, want %v", second.Proposed.DndIDs(), list.DndIDs())
	}
}

// TestResolvePreconditions covers same id and unknown ids.
func TestResolvePreconditions(t *testing.T) {
	list := abcWeek()
	tests := []struct {
		name     string
		src, dst string
		want     error
	}{
		{"same id", idA.String(), idA.String(), ErrSameSession},
		{"unknown source", "nope", idB.String(), ErrNotFound},
		{"unknown target", idA.String(), "strengthening-" + idA.String(), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resolve(list, tt.src, tt.dst); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestParsePolicy verifies config values map to policies.
func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": SameKindOnly, "same-kind": SameKindOnly, "any-kind": AnyKind} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("loose"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
