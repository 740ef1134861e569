package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/storage"
	"github.com/claude/runweek/internal/swap"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the persistence the handlers need. *storage.DB satisfies it.
type Store interface {
	QueryWeek(ctx context.Context, start, end time.Time, userID int) (models.WeekPayload, error)
	SwapWorkoutDates(ctx context.Context, id1, id2 uuid.UUID, userID int) error
	SwapStrengtheningDates(ctx context.Context, id1, id2 uuid.UUID, userID int) error
	SwapMixedDates(ctx context.Context, a, b storage.SessionRef, userID int) error
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

// Compile-time check: *storage.DB satisfies Store.
var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store  Store
	log    *slog.Logger
	apiKey string
	policy swap.Policy
	whois  WhoIser
	now    func() time.Time
	router chi.Router
}

// New creates a new Server with all routes configured. policy decides
// whether the mixed swap endpoint accepts requests.
func New(store Store, apiKey string, policy swap.Policy, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		log:    log,
		apiKey: apiKey,
		policy: policy,
		now:    time.Now,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale makes requests act as the tailnet user that sent them.
// Without it every request is the local dev user.
func (s *Server) SetTailscale(w WhoIser) {
	s.whois = w
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identify)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/v1/me", s.handleMe)
	s.router.Get("/api/v1/week", s.handleWeek)

	// Swap endpoints (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/workouts/swap", s.handleSwapWorkouts)
		r.Post("/api/v1/strengthening/swap", s.handleSwapStrengthening)
		r.Post("/api/v1/sessions/swap", s.handleSwapMixed)
	})
}

// identify picks the identity middleware per request so SetTailscale can be
// called after routes are built.
func (s *Server) identify(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.store, s.log)(next).ServeHTTP(w, r)
	})
}
