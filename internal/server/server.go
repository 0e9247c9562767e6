package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/scibot/internal/ai"
	"github.com/example/scibot/internal/database"
	"github.com/example/scibot/internal/quiz"
	"github.com/example/scibot/internal/review"
	"github.com/example/scibot/internal/spaced_repetition"
)

// Grader turns a free-text answer into a review quality.
type Grader interface {
	Grade(ctx context.Context, question, expected, answer string) (float64, error)
}

// Server is the scibot HTTP API server.
type Server struct {
	db      *database.DB
	reviews *review.Service
	grader  Grader
	quizzes *quiz.Module
	router  chi.Router
	logger  *log.Logger
	version string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithGrader enables the answers endpoint.
func WithGrader(g Grader) Option {
	return func(s *Server) {
		s.grader = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithQuizSeed makes quiz shuffling reproducible.
func WithQuizSeed(seed int64) Option {
	return func(s *Server) {
		s.quizzes = quiz.New(s.reviews, seed)
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a new Server over the review service.
func New(db *database.DB, reviews *review.Service, opts ...Option) *Server {
	s := &Server{
		db:      db,
		reviews: reviews,
		logger:  log.Default(),
		version: "dev",
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.quizzes == nil {
		s.quizzes = quiz.New(reviews, time.Now().UnixNano())
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/learners", s.handleEnsureLearner)
		r.Route("/learners/{learnerID}", func(r chi.Router) {
			r.Get("/", s.handleGetLearner)
			r.Put("/notifications", s.handleUpdateNotifications)
			r.Post("/concepts", s.handleEnroll)
			r.Post("/reviews", s.handleReview)
			r.Post("/answers", s.handleAnswer)
			r.Get("/quiz", s.handleQuiz)
			r.Post("/quiz/answers", s.handleQuizAnswer)
			r.Get("/due", s.handleDue)
			r.Get("/stats", s.handleStats)
			r.Get("/logs", s.handleLogs)
			r.Get("/report.xlsx", s.handleReport)
		})
	})

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.PingContext(r.Context()) == nil

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"grader":  s.grader != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, spaced_repetition.ErrInvalidInput),
		errors.Is(err, review.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, review.ErrUnknownConcept):
		return http.StatusNotFound
	case errors.Is(err, ai.ErrNoVerdict):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}
