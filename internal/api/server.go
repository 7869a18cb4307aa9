// Package api exposes the scan pipeline over HTTP: scan creation and
// triggering, report reads, live progress over websocket, health and
// Prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// Scans is the part of the scan service the API needs.
type Scans interface {
	CreateScan(assetID, guidelineID string) (*model.Scan, error)
	GetReport(scanID string) (*shield.ScanReport, error)
	ListScans(limit int) ([]*model.Scan, error)
}

// Enqueuer schedules a scan for background processing.
type Enqueuer interface {
	Enqueue(scanID string) error
}

// Server holds the HTTP handlers.
type Server struct {
	scans    Scans
	queue    Enqueuer
	progress http.HandlerFunc
	logger   shield.Logger
}

// NewServer creates a Server. progress serves the websocket stream and may
// be nil.
func NewServer(scans Scans, queue Enqueuer, progress http.HandlerFunc, logger shield.Logger) *Server {
	if logger == nil {
		logger = shield.NewNopLogger()
	}
	return &Server{scans: scans, queue: queue, progress: progress, logger: logger}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scans", s.createScan)
		r.Get("/scans", s.listScans)
		r.Get("/scans/{id}", s.getScan)
		r.Post("/scans/{id}/process", s.processScan)
		if s.progress != nil {
			r.Get("/ws", s.progress)
		}
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("api listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type createScanRequest struct {
	AssetID     string `json:"asset_id"`
	GuidelineID string `json:"guideline_id,omitempty"`
}

type scanSummary struct {
	ID             string           `json:"id"`
	AssetID        string           `json:"asset_id"`
	Status         model.ScanStatus `json:"status"`
	RiskLevel      model.RiskLevel  `json:"risk_level,omitempty"`
	CompositeScore *int             `json:"composite_score"`
	CreatedAt      time.Time        `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func summarize(scan *model.Scan) scanSummary {
	return scanSummary{
		ID:             scan.ID,
		AssetID:        scan.AssetID,
		Status:         scan.Status,
		RiskLevel:      scan.RiskLevel,
		CompositeScore: scan.CompositeScore,
		CreatedAt:      scan.CreatedAt,
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createScan(w http.ResponseWriter, r *http.Request) {
	var req createScanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.AssetID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "asset_id is required"})
		return
	}

	scan, err := s.scans.CreateScan(req.AssetID, req.GuidelineID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.queue.Enqueue(scan.ID); err != nil {
		// the scan stays pending and can be triggered again
		s.logger.Warn("scan created but not enqueued", "scan_id", scan.ID, "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusAccepted, summarize(scan))
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	scans, err := s.scans.ListScans(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]scanSummary, 0, len(scans))
	for _, scan := range scans {
		out = append(out, summarize(scan))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	report, err := s.scans.GetReport(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// processScan triggers a scan. A finished scan is returned as is.
func (s *Server) processScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.scans.GetReport(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if report.Status.Terminal() {
		s.writeJSON(w, http.StatusOK, report)
		return
	}

	if err := s.queue.Enqueue(id); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, shield.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	s.logger.Error("api request failed", "error", err)
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encoding response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
