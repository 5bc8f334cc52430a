// Package dashboard serves the metrics engine over HTTP as JSON, the
// read-only API behind the operations dashboard. Every endpoint accepts
// start/end/machine query parameters defaulting to the snapshot's full
// range; quality additionally accepts severity.
package dashboard

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"

	"factoryops/internal/metrics"
	"factoryops/internal/store"
)

type Server struct {
	snap    *store.Snapshot
	engine  *metrics.Engine
	factory string
}

func NewServer(snap *store.Snapshot, factory string) *Server {
	return &Server{
		snap:    snap,
		engine:  metrics.NewEngine(snap),
		factory: factory,
	}
}

func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/api/summary", s.handleSummary)
	router.Get("/api/oee", s.handleOEE)
	router.Get("/api/oee/daily", s.handleDailyOEE)
	router.Get("/api/scrap", s.handleScrap)
	router.Get("/api/quality", s.handleQuality)
	router.Get("/api/downtime", s.handleDowntime)

	return router
}

// ListenAndServe runs the dashboard until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	log.Printf("dashboard listening addr=%s factory=%s days=%d", addr, s.factory, len(s.snap.Production))
	return http.ListenAndServe(addr, s.Router())
}

type rangeQuery struct {
	start   string
	end     string
	machine string
}

func (s *Server) rangeOf(r *http.Request) rangeQuery {
	q := rangeQuery{
		start:   r.URL.Query().Get("start"),
		end:     r.URL.Query().Get("end"),
		machine: r.URL.Query().Get("machine"),
	}
	if q.start == "" {
		q.start = s.snap.StartDay()
	}
	if q.end == "" {
		q.end = s.snap.EndDay()
	}
	return q
}

type summaryResponse struct {
	Factory   string          `json:"factory"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Days      int             `json:"days"`
	Machines  []store.Machine `json:"machines"`
	Shifts    []store.Shift   `json:"shifts"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, summaryResponse{
		Factory:   s.factory,
		StartDate: s.snap.StartDay(),
		EndDate:   s.snap.EndDay(),
		Days:      len(s.snap.Production),
		Machines:  s.snap.Machines,
		Shifts:    s.snap.Shifts,
	})
}

func (s *Server) handleOEE(w http.ResponseWriter, r *http.Request) {
	q := s.rangeOf(r)
	report, err := s.engine.CalculateOEE(q.start, q.end, q.machine)
	if err != nil {
		renderQueryError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

type dailyOEEPoint struct {
	Date string  `json:"date"`
	OEE  float64 `json:"oee"`
}

// handleDailyOEE returns the per-day OEE series used by the trend chart.
// Days without matching data are omitted rather than zero-filled.
func (s *Server) handleDailyOEE(w http.ResponseWriter, r *http.Request) {
	q := s.rangeOf(r)
	dates, err := metrics.DateRange(q.start, q.end)
	if err != nil {
		renderQueryError(w, r, err)
		return
	}
	points := []dailyOEEPoint{}
	for _, date := range dates {
		report, err := s.engine.CalculateOEE(date, date, q.machine)
		if err != nil {
			continue
		}
		points = append(points, dailyOEEPoint{Date: date, OEE: report.OEE})
	}
	render.JSON(w, r, points)
}

func (s *Server) handleScrap(w http.ResponseWriter, r *http.Request) {
	q := s.rangeOf(r)
	report, err := s.engine.ScrapMetrics(q.start, q.end, q.machine)
	if err != nil {
		renderQueryError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	q := s.rangeOf(r)
	severity := store.Severity(r.URL.Query().Get("severity"))
	report, err := s.engine.QualityIssues(q.start, q.end, severity, q.machine)
	if err != nil {
		renderQueryError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (s *Server) handleDowntime(w http.ResponseWriter, r *http.Request) {
	q := s.rangeOf(r)
	report, err := s.engine.DowntimeAnalysis(q.start, q.end, q.machine)
	if err != nil {
		renderQueryError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func renderQueryError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var qerr *metrics.Error
	if errors.As(err, &qerr) {
		switch qerr.Code {
		case metrics.CodeBadArgument:
			status = http.StatusBadRequest
		case metrics.CodeDataUnavailable, metrics.CodeEmptyDateRange:
			status = http.StatusNotFound
		}
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}
