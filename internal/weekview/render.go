package weekview

import (
	"fmt"
	"io"
	"strings"

	"github.com/claude/runweek/internal/models"
)

// Render writes the sorted week as text, one card per line, with detail
// lines under expanded cards.
func (v *View) Render(w io.Writer) error {
	snap := v.Snapshot()
	active := v.Active()

	if snap.Len() == 0 {
		_, err := fmt.Fprintln(w, "No sessions scheduled.")
		return err
	}

	var b strings.Builder
	for _, s := range snap.Sessions() {
		marker := " "
		if s.DndID() == active {
			marker = ">"
		}
		lock := ""
		if s.IsLocked() {
			lock = "  [done]"
		}
		fmt.Fprintf(&b, "%s %s  %s%s\n", marker, s.ScheduledOn().Format("Mon 02 Jan"), cardTitle(s), lock)
		if v.expanded.IsExpanded(s.DndID()) {
			for _, line := range cardDetail(s) {
				fmt.Fprintf(&b, "      %s\n", line)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func cardTitle(s models.Session) string {
	return models.Match(s,
		func(w models.WorkoutSession) string {
			title := fmt.Sprintf("[run] %s (%s)", w.Title, w.WorkoutType)
			if w.DistanceKm != nil {
				title += fmt.Sprintf(" %.1f km", *w.DistanceKm)
			}
			return title
		},
		func(st models.StrengtheningSession) string {
			return fmt.Sprintf("[strength] %s (%s) %d min", st.Title, st.SessionType, st.DurationMinutes)
		},
	)
}

func cardDetail(s models.Session) []string {
	return models.Match(s,
		func(w models.WorkoutSession) []string {
			var lines []string
			if w.Description != "" {
				lines = append(lines, w.Description)
			}
			if w.DurationMinutes != nil {
				lines = append(lines, fmt.Sprintf("duration: %d min", *w.DurationMinutes))
			}
			if w.TargetPaceMin != nil && w.TargetPaceMax != nil {
				lines = append(lines, fmt.Sprintf("pace: %s-%s /km", *w.TargetPaceMin, *w.TargetPaceMax))
			}
			return lines
		},
		func(st models.StrengtheningSession) []string {
			return []string{fmt.Sprintf("type: %s", st.SessionType)}
		},
	)
}
