package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/storage"
	"github.com/claude/runweek/internal/swap"
	"github.com/google/uuid"
)

const (
	msgSwapped    = "Sessions swapped."
	msgSelfSwap   = "A session can't be swapped with itself."
	msgSaveFailed = "Couldn't save the swap. Please try again."
)

// maxRangeDays bounds a week query.
const maxRangeDays = 31

type swapRequest struct {
	Session1ID   string      `json:"session_1_id"`
	Session2ID   string      `json:"session_2_id"`
	Session1Kind models.Kind `json:"session_1_kind"`
	Session2Kind models.Kind `json:"session_2_kind"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWeekRange(r, s.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	payload, err := s.store.QueryWeek(r.Context(), start, end, userIDFromContext(r))
	if err != nil {
		s.log.Error("week query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load the week"})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSwapWorkouts(w http.ResponseWriter, r *http.Request) {
	id1, id2, ok := decodeSwapIDs(w, r, nil)
	if !ok {
		return
	}
	err := s.store.SwapWorkoutDates(r.Context(), id1, id2, userIDFromContext(r))
	s.writeSwapResult(w, err, "workout", id1, id2)
}

func (s *Server) handleSwapStrengthening(w http.ResponseWriter, r *http.Request) {
	id1, id2, ok := decodeSwapIDs(w, r, nil)
	if !ok {
		return
	}
	err := s.store.SwapStrengtheningDates(r.Context(), id1, id2, userIDFromContext(r))
	s.writeSwapResult(w, err, "strengthening", id1, id2)
}

func (s *Server) handleSwapMixed(w http.ResponseWriter, r *http.Request) {
	if s.policy != swap.AnyKind {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": rejectionMessage(swap.ReasonTypeMismatch)})
		return
	}
	var req swapRequest
	id1, id2, ok := decodeSwapIDs(w, r, &req)
	if !ok {
		return
	}
	err := s.store.SwapMixedDates(r.Context(),
		storage.SessionRef{Kind: req.Session1Kind, ID: id1},
		storage.SessionRef{Kind: req.Session2Kind, ID: id2},
		userIDFromContext(r))
	s.writeSwapResult(w, err, "mixed", id1, id2)
}

// decodeSwapIDs reads the swap body into req (or a scratch value when nil)
// and parses both ids. On failure it writes a 400 and returns ok=false.
func decodeSwapIDs(w http.ResponseWriter, r *http.Request, req *swapRequest) (id1, id2 uuid.UUID, ok bool) {
	if req == nil {
		req = &swapRequest{}
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return uuid.Nil, uuid.Nil, false
	}
	id1, err := uuid.Parse(req.Session1ID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session_1_id"})
		return uuid.Nil, uuid.Nil, false
	}
	id2, err = uuid.Parse(req.Session2ID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session_2_id"})
		return uuid.Nil, uuid.Nil, false
	}
	return id1, id2, true
}

// writeSwapResult maps storage errors to status codes and user-facing text.
func (s *Server) writeSwapResult(w http.ResponseWriter, err error, kind string, id1, id2 uuid.UUID) {
	switch {
	case err == nil:
		s.log.Info("sessions swapped", "kind", kind, "session_1", id1, "session_2", id2)
		writeJSON(w, http.StatusOK, map[string]string{"message": msgSwapped})
	case errors.Is(err, storage.ErrSameSession):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgSelfSwap})
	case errors.Is(err, storage.ErrKindMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": rejectionMessage(swap.ReasonTypeMismatch)})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": rejectionMessage(swap.ReasonNotFound)})
	case errors.Is(err, storage.ErrLocked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": rejectionMessage(swap.ReasonLocked)})
	default:
		s.log.Error("swap failed", "kind", kind, "session_1", id1, "session_2", id2, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgSaveFailed})
	}
}

func rejectionMessage(reason swap.Reason) string {
	return (&swap.Rejection{Reason: reason}).UserMessage()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseWeekRange reads start and end as dates. A date-only end is inclusive.
// Without start, the range is the ISO week (Monday to Sunday) containing now.
func parseWeekRange(r *http.Request, now time.Time) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		start = models.WeekStart(now)
		return start, start.AddDate(0, 0, 7), nil
	}

	start, err = models.ParseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	if endStr == "" {
		return start, start.AddDate(0, 0, 7), nil
	}
	last, err := models.ParseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	end = last.AddDate(0, 0, 1)
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("end must not be before start")
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("range longer than %d days", maxRangeDays)
	}
	return start, end, nil
}
