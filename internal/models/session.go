package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two schedulable session variants.
type Kind string

const (
	KindWorkout       Kind = "workout"
	KindStrengthening Kind = "strengthening"
	// KindMixed is only used for persistence of a cross-kind swap.
	KindMixed Kind = "mixed"
)

// strengtheningPrefix namespaces strengthening ids so they never collide
// with workout ids in one ordered collection.
const strengtheningPrefix = "strengthening-"

// WorkoutType is the training stimulus of a run.
type WorkoutType string

const (
	WorkoutEasy      WorkoutType = "easy"
	WorkoutThreshold WorkoutType = "threshold"
	WorkoutInterval  WorkoutType = "interval"
	WorkoutLong      WorkoutType = "long"
	WorkoutRecovery  WorkoutType = "recovery"
)

// WorkoutStatus is the completion state of a run.
type WorkoutStatus string

const (
	StatusPlanned   WorkoutStatus = "planned"
	StatusCompleted WorkoutStatus = "completed"
)

// Session is a schedulable calendar item. It is implemented only by
// WorkoutSession and StrengtheningSession; use Match to branch on the kind.
type Session interface {
	DndID() string
	Kind() Kind
	// IsLocked reports whether the session is completed history that must
	// not be rescheduled.
	IsLocked() bool
	ScheduledOn() time.Time
	Weekday() time.Weekday

	rescheduled(date time.Time, day time.Weekday) Session
}

// WorkoutSession is a planned run.
type WorkoutSession struct {
	ID              uuid.UUID     `json:"id"`
	ScheduledDate   time.Time     `json:"scheduled_date"`
	DayOfWeek       time.Weekday  `json:"day_of_week"`
	WorkoutType     WorkoutType   `json:"workout_type"`
	DistanceKm      *float64      `json:"distance_km,omitempty"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	TargetPaceMin   *string       `json:"target_pace_min,omitempty"`
	TargetPaceMax   *string       `json:"target_pace_max,omitempty"`
	Status          WorkoutStatus `json:"status"`
	LinkedRecordID  *uuid.UUID    `json:"linked_record_id,omitempty"`
}

func (w WorkoutSession) DndID() string          { return w.ID.String() }
func (w WorkoutSession) Kind() Kind             { return KindWorkout }
func (w WorkoutSession) IsLocked() bool         { return w.Status == StatusCompleted }
func (w WorkoutSession) ScheduledOn() time.Time { return w.ScheduledDate }
func (w WorkoutSession) Weekday() time.Weekday  { return w.DayOfWeek }

func (w WorkoutSession) rescheduled(date time.Time, day time.Weekday) Session {
	w.ScheduledDate = date
	w.DayOfWeek = day
	return w
}

// StrengtheningSession is a strength/mobility reminder attached to the plan.
type StrengtheningSession struct {
	ID              uuid.UUID    `json:"id"`
	ScheduledDate   time.Time    `json:"scheduled_date"`
	DayOfWeek       time.Weekday `json:"day_of_week"`
	SessionType     string       `json:"session_type"`
	Title           string       `json:"title"`
	DurationMinutes int          `json:"duration_minutes"`
	Completed       bool         `json:"completed"`
}

func (s StrengtheningSession) DndID() string          { return strengtheningPrefix + s.ID.String() }
func (s StrengtheningSession) Kind() Kind             { return KindStrengthening }
func (s StrengtheningSession) IsLocked() bool         { return s.Completed }
func (s StrengtheningSession) ScheduledOn() time.Time { return s.ScheduledDate }
func (s StrengtheningSession) Weekday() time.Weekday  { return s.DayOfWeek }

func (s StrengtheningSession) rescheduled(date time.Time, day time.Weekday) Session {
	s.ScheduledDate = date
	s.DayOfWeek = day
	return s
}

// Match calls onWorkout or onStrengthening depending on the variant of s.
// Both handlers are required, so every caller handles every kind.
func Match[T any](s Session, onWorkout func(WorkoutSession) T, onStrengthening func(StrengtheningSession) T) T {
	switch v := s.(type) {
	case WorkoutSession:
		return onWorkout(v)
	case StrengtheningSession:
		return onStrengthening(v)
	default:
		// Session is sealed; only the two variants above can exist.
		panic(fmt.Sprintf("models: unknown session variant %T", s))
	}
}

// RawID returns the un-namespaced identifier of s.
func RawID(s Session) uuid.UUID {
	return Match(s,
		func(w WorkoutSession) uuid.UUID { return w.ID },
		func(st StrengtheningSession) uuid.UUID { return st.ID },
	)
}

// ExchangeSchedule returns copies of a and b with their scheduled date and
// weekday swapped. Every other field stays with its original record.
func ExchangeSchedule(a, b Session) (Session, Session) {
	return a.rescheduled(b.ScheduledOn(), b.Weekday()), b.rescheduled(a.ScheduledOn(), a.Weekday())
}

// Date returns the civil date y-m-d as midnight UTC.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// WeekStart returns the Monday of t's ISO week as midnight UTC.
func WeekStart(t time.Time) time.Time {
	day := Date(t.Year(), t.Month(), t.Day())
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}
