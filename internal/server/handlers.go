package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics"
	"github.com/kubilitics/kubilitics-thermal/internal/db"
	"github.com/kubilitics/kubilitics-thermal/internal/metrics"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
	"github.com/kubilitics/kubilitics-thermal/internal/version"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Error codes returned in APIError.Code.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeUnavailable    = "UNAVAILABLE"
)

// APIError represents a structured API error response
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Error: message, Code: code, Message: message})
}

// decodeSnapshot reads the request body. Failures are reported as 400
// (or 413 when the body limit is hit) and counted.
func (s *Server) decodeSnapshot(w http.ResponseWriter, r *http.Request) (*models.AnalysisRequest, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.MalformedInputs.WithLabelValues(pipeline.SourceHTTP).Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeInvalidRequest, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "failed to read request body")
		return nil, false
	}

	req, err := models.ParseAnalysisRequest(body)
	if err == nil {
		return req, true
	}
	metrics.MalformedInputs.WithLabelValues(pipeline.SourceHTTP).Inc()
	s.logger.Debug("Rejected malformed snapshot", zap.Error(err))
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	return nil, false
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*analytics.Result, bool) {
	req, ok := s.decodeSnapshot(w, r)
	if !ok {
		return nil, false
	}
	res, err := s.pipeline.Process(r.Context(), pipeline.SourceHTTP, req)
	if err != nil {
		if errors.Is(err, models.ErrMalformedInput) {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return nil, false
		}
		s.logger.Error("Analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "analysis failed")
		return nil, false
	}
	return res, true
}

// handleAnalyze handles POST /analyze → {"analysis": "<report line>"}
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	res, ok := s.analyze(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": res.Report})
}

// handleAnalyzeResult handles POST /api/v1/thermal/analyze → full result
func (s *Server) handleAnalyzeResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.analyze(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleThermalImage handles POST /thermal-image → {"imageBase64": "..."}
func (s *Server) handleThermalImage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSnapshot(w, r)
	if !ok {
		return
	}
	img, err := s.renderer.Base64(req.Sensors)
	if err != nil {
		metrics.HeatmapRenders.WithLabelValues("error").Inc()
		s.logger.Error("Heatmap render failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "heatmap render failed")
		return
	}
	status := "ok"
	if img == "" {
		status = "empty"
	}
	metrics.HeatmapRenders.WithLabelValues(status).Inc()
	writeJSON(w, http.StatusOK, map[string]string{"imageBase64": img})
}

// handleHistory handles GET /api/v1/thermal/history
//
//	Query params:
//	  limit  max results (default 50, max 1000)
//	  offset skip results
//	  tag    filter by report tag
//	  focus  filter by focus
//	  source filter by ingress
//	  since  RFC3339 lower bound
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultHistoryLimit
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	store := s.pipeline.Store()
	if store == nil {
		recent := s.pipeline.Recent(limit)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"reports": recent,
			"total":   len(recent),
			"source":  "memory",
		})
		return
	}

	query := db.ReportQuery{
		Tag:    q.Get("tag"),
		Focus:  q.Get("focus"),
		Source: q.Get("source"),
		Limit:  limit,
	}
	if o := q.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "offset must be a non-negative integer")
			return
		}
		query.Offset = n
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "since must be RFC3339")
			return
		}
		query.From = t
	}

	reports, err := store.QueryReports(r.Context(), query)
	if err != nil {
		s.logger.Error("History query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "history query failed")
		return
	}
	if reports == nil {
		reports = []*db.ReportRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"total":   len(reports),
		"source":  "database",
	})
}

// handleHistoryItem handles GET /api/v1/thermal/history/{id}
func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	store := s.pipeline.Store()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "report history is disabled")
		return
	}
	rec, err := store.GetReport(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("History lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "history lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSummary handles GET /api/v1/thermal/summary: report counts per tag and
// the sensors most often flagged.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	store := s.pipeline.Store()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "report history is disabled")
		return
	}
	tags, err := store.TagSummary(r.Context(), time.Time{}, time.Time{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	sensors, err := store.SensorAnomalyCounts(r.Context(), 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tags":       tags,
		"topSensors": sensors,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady checks the history store when one is configured.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if store := s.pipeline.Store(); store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"reason": "database_unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":      "kubilitics-thermal",
		"version":   version.Version,
		"seed":      s.pipeline.Engine().Seed(),
		"focuses":   []models.Focus{models.FocusHSE, models.FocusEnergy, models.FocusMaintenance, models.FocusDiagnostic},
		"history":   s.pipeline.Store() != nil,
		"grpc":      s.grpc != nil,
		"wsClients": s.hub.ClientCount(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}
