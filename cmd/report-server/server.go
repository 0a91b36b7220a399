package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/unklstewy/flightpath/internal/db"
	"github.com/unklstewy/flightpath/internal/metrics"
	"github.com/unklstewy/flightpath/internal/report"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

// Server holds the HTTP router and its dependencies.
type Server struct {
	router  *chi.Mux
	db      *db.DB
	runs    *db.RunRepository
	metrics *metrics.Collector
	limiter *rate.Limiter
}

// NewServer wires the routes. rps <= 0 disables rate limiting.
func NewServer(database *db.DB, collector *metrics.Collector, rps float64, burst int) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		db:      database,
		runs:    db.NewRunRepository(database),
		metrics: collector,
	}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// LoadLatestRun publishes the deviation gauges and run duration of the
// most recent stored run. It is a no-op on an empty database.
func (s *Server) LoadLatestRun(ctx context.Context) error {
	runs, err := s.runs.ListRuns(ctx, 1)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}
	comparisons, err := s.runs.GetComparisons(ctx, runs[0].ID)
	if err != nil {
		return err
	}

	for _, c := range comparisons {
		if c.Error != "" {
			s.metrics.ClearDeviation(c.Source)
			continue
		}
		s.metrics.SetDeviation(c.Source, c.Summary)
	}
	if s.metrics != nil {
		s.metrics.LastRunDuration.Set(runs[0].Duration.Seconds())
	}
	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))
	r.Use(s.countRequests)
	r.Use(s.rateLimit)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleDeleteRun)
		r.Get("/comparisons/{id}", s.handleGetComparison)
		r.Get("/comparisons/{id}/deviations", s.handleGetDeviations)
	})

	r.Get("/runs/{id}/chart", s.handleRunChart)
}

// rateLimit rejects requests above the configured token bucket rate.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// countRequests records every response by route pattern and status code.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if s.metrics == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := db.HealthCheck(s.db)
	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":   state,
		"database": healthy,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		respondRepoError(w, err)
		return
	}
	sources, err := s.runs.GetSources(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	comparisons, err := s.runs.GetComparisons(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run":         run,
		"sources":     sources,
		"comparisons": comparisons,
	})
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.runs.GetRun(r.Context(), id); err != nil {
		respondRepoError(w, err)
		return
	}
	if err := s.runs.DeleteRun(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	c, err := s.runs.GetComparison(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondRepoError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetDeviations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.runs.GetComparison(r.Context(), id)
	if err != nil {
		respondRepoError(w, err)
		return
	}
	devs, err := s.runs.GetDeviations(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if devs == nil {
		devs = []db.DeviationRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"comparison": c,
		"deviations": devs,
	})
}

// handleRunChart renders the deviation charts of a stored run as HTML.
func (s *Server) handleRunChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		respondRepoError(w, err)
		return
	}
	comparisons, err := s.runs.GetComparisons(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var series []report.Series
	for _, c := range comparisons {
		if c.Error != "" {
			continue
		}
		devs, err := s.runs.GetDeviations(r.Context(), c.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sr := report.Series{Name: c.Label, Mean: c.Summary.Mean, StdDev: c.Summary.StdDev}
		for _, d := range devs {
			sr.Points = append(sr.Points, report.Point{Time: d.Probe.Time, Deviation: d.Deviation})
		}
		series = append(series, sr)
	}

	unit := ""
	if m, err := trajectory.ParseMetric(run.Metric); err == nil {
		unit = m.Unit()
	}
	title := fmt.Sprintf("Deviation from %s", run.GroundTruth)
	subtitle := fmt.Sprintf("run %s, %s", run.ID, run.CreatedAt.Format(time.RFC3339))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, title, subtitle, unit, series); err != nil {
		log.Printf("⚠ chart for run %s: %v", id, err)
	}
}

func respondRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
