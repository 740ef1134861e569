package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Swap errors. Handlers map them to status codes.
var (
	ErrNotFound     = errors.New("session not found")
	ErrLocked       = errors.New("session is completed")
	ErrSameSession  = errors.New("cannot swap a session with itself")
	ErrKindMismatch = errors.New("session kinds do not fit this swap")
)

// SessionRef names one session row.
type SessionRef struct {
	Kind models.Kind
	ID   uuid.UUID
}

// table returns the table holding ref and the SQL expression that is true
// when the row may no longer move.
func (r SessionRef) table() (name, lockedExpr string, err error) {
	switch r.Kind {
	case models.KindWorkout:
		return "workout_sessions", "status = 'completed'", nil
	case models.KindStrengthening:
		return "strengthening_sessions", "completed", nil
	default:
		return "", "", fmt.Errorf("%w: unknown kind %q", ErrKindMismatch, r.Kind)
	}
}

// QueryWeek returns every session of the user scheduled in [start, end).
// Rows come back in database order; callers sort.
func (db *DB) QueryWeek(ctx context.Context, start, end time.Time, userID int) (models.WeekPayload, error) {
	payload := models.WeekPayload{
		Workouts:      []models.WorkoutSession{},
		Strengthening: []models.StrengtheningSession{},
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, scheduled_date, day_of_week, workout_type, distance_km, duration_minutes,
		 title, description, target_pace_min, target_pace_max, status, linked_record_id
		 FROM workout_sessions
		 WHERE scheduled_date >= $1 AND scheduled_date < $2 AND user_id = $3`,
		start, end, userID)
	if err != nil {
		return payload, fmt.Errorf("querying workout sessions: %w", err)
	}
	for rows.Next() {
		var (
			w                  models.WorkoutSession
			day                int16
			workoutType, state string
		)
		if err := rows.Scan(&w.ID, &w.ScheduledDate, &day, &workoutType, &w.DistanceKm, &w.DurationMinutes,
			&w.Title, &w.Description, &w.TargetPaceMin, &w.TargetPaceMax, &state, &w.LinkedRecordID); err != nil {
			rows.Close()
			return payload, fmt.Errorf("scanning workout session: %w", err)
		}
		w.DayOfWeek = time.Weekday(day)
		w.WorkoutType = models.WorkoutType(workoutType)
		w.Status = models.WorkoutStatus(state)
		payload.Workouts = append(payload.Workouts, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return payload, fmt.Errorf("reading workout sessions: %w", err)
	}

	rows, err = db.Pool.Query(ctx,
		`SELECT id, scheduled_date, day_of_week, session_type, title, duration_minutes, completed
		 FROM strengthening_sessions
		 WHERE scheduled_date >= $1 AND scheduled_date < $2 AND user_id = $3`,
		start, end, userID)
	if err != nil {
		return payload, fmt.Errorf("querying strengthening sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s   models.StrengtheningSession
			day int16
		)
		if err := rows.Scan(&s.ID, &s.ScheduledDate, &day, &s.SessionType, &s.Title, &s.DurationMinutes, &s.Completed); err != nil {
			return payload, fmt.Errorf("scanning strengthening session: %w", err)
		}
		s.DayOfWeek = time.Weekday(day)
		payload.Strengthening = append(payload.Strengthening, s)
	}
	return payload, rows.Err()
}

// SwapWorkoutDates exchanges the scheduled date and weekday of two runs.
func (db *DB) SwapWorkoutDates(ctx context.Context, id1, id2 uuid.UUID, userID int) error {
	return db.swapDates(ctx,
		SessionRef{Kind: models.KindWorkout, ID: id1},
		SessionRef{Kind: models.KindWorkout, ID: id2}, userID)
}

// SwapStrengtheningDates exchanges the scheduled date and weekday of two
// strengthening sessions.
func (db *DB) SwapStrengtheningDates(ctx context.Context, id1, id2 uuid.UUID, userID int) error {
	return db.swapDates(ctx,
		SessionRef{Kind: models.KindStrengthening, ID: id1},
		SessionRef{Kind: models.KindStrengthening, ID: id2}, userID)
}

// SwapMixedDates exchanges the dates of a run and a strengthening session.
// Pairs of the same kind belong to the per-kind swaps and get
// ErrKindMismatch.
func (db *DB) SwapMixedDates(ctx context.Context, a, b SessionRef, userID int) error {
	if a.Kind == b.Kind {
		return fmt.Errorf("%w: both sessions are %s", ErrKindMismatch, a.Kind)
	}
	return db.swapDates(ctx, a, b, userID)
}

// SwapSessions dispatches on kind. It lets *DB stand in wherever the engine
// persists swaps directly against the database.
func (db *DB) SwapSessions(ctx context.Context, kind models.Kind, first, second models.Session, userID int) error {
	a := SessionRef{Kind: first.Kind(), ID: models.RawID(first)}
	b := SessionRef{Kind: second.Kind(), ID: models.RawID(second)}
	switch kind {
	case models.KindWorkout:
		if a.Kind != kind || b.Kind != kind {
			return fmt.Errorf("%w: workout swap with %s and %s", ErrKindMismatch, a.Kind, b.Kind)
		}
		return db.SwapWorkoutDates(ctx, a.ID, b.ID, userID)
	case models.KindStrengthening:
		if a.Kind != kind || b.Kind != kind {
			return fmt.Errorf("%w: strengthening swap with %s and %s", ErrKindMismatch, a.Kind, b.Kind)
		}
		return db.SwapStrengtheningDates(ctx, a.ID, b.ID, userID)
	case models.KindMixed:
		return db.SwapMixedDates(ctx, a, b, userID)
	default:
		return fmt.Errorf("%w: unknown swap kind %q", ErrKindMismatch, kind)
	}
}

type lockedRow struct {
	ref    SessionRef
	table  string
	date   time.Time
	day    int16
	locked bool
}

// swapDates locks both rows, refuses completed ones and exchanges their
// dates in one transaction.
func (db *DB) swapDates(ctx context.Context, a, b SessionRef, userID int) error {
	if a == b {
		return ErrSameSession
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning swap: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock in a fixed order so two opposite swaps cannot deadlock.
	first, second := lockOrder(a, b)
	rowFirst, err := lockRow(ctx, tx, first, userID)
	if err != nil {
		return err
	}
	rowSecond, err := lockRow(ctx, tx, second, userID)
	if err != nil {
		return err
	}

	for _, r := range []lockedRow{rowFirst, rowSecond} {
		if r.locked {
			return fmt.Errorf("%w: %s", ErrLocked, r.ref.ID)
		}
	}

	for _, u := range []struct{ dst, src lockedRow }{{rowFirst, rowSecond}, {rowSecond, rowFirst}} {
		_, err := tx.Exec(ctx,
			`UPDATE `+u.dst.table+` SET scheduled_date = $1, day_of_week = $2, updated_at = NOW()
			 WHERE id = $3 AND user_id = $4`,
			u.src.date, u.src.day, u.dst.ref.ID, userID)
		if err != nil {
			return fmt.Errorf("updating %s %s: %w", u.dst.table, u.dst.ref.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing swap: %w", err)
	}
	return nil
}

func lockRow(ctx context.Context, tx pgx.Tx, ref SessionRef, userID int) (lockedRow, error) {
	table, lockedExpr, err := ref.table()
	if err != nil {
		return lockedRow{}, err
	}
	row := lockedRow{ref: ref, table: table}
	err = tx.QueryRow(ctx,
		`SELECT scheduled_date, day_of_week, `+lockedExpr+`
		 FROM `+table+`
		 WHERE id = $1 AND user_id = $2
		 FOR UPDATE`,
		ref.ID, userID).Scan(&row.date, &row.day, &row.locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return lockedRow{}, fmt.Errorf("%w: %s %s", ErrNotFound, ref.Kind, ref.ID)
	}
	if err != nil {
		return lockedRow{}, fmt.Errorf("locking %s %s: %w", table, ref.ID, err)
	}
	return row, nil
}

// lockOrder sorts two refs by kind, then id.
func lockOrder(a, b SessionRef) (SessionRef, SessionRef) {
	if a.Kind > b.Kind || (a.Kind == b.Kind && a.ID.String() > b.ID.String()) {
		return b, a
	}
	return a, b
}
