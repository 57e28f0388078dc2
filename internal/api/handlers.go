// Package api exposes the daemon's control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/stride/internal/source"
	"github.com/sadopc/stride/internal/steps"
)

// Controller is the part of the lifecycle driver the API drives.
type Controller interface {
	StartTracking(ctx context.Context) error
	StopTracking() error
	Tracking() bool
	CurrentSteps() (int64, error)
	Goal() (int64, error)
}

// StepsView is the response of GET /v1/steps.
type StepsView struct {
	Date     string `json:"date"`
	Steps    int64  `json:"steps"`
	Goal     int64  `json:"goal"`
	Tracking bool   `json:"tracking"`
}

// TrackingView is the response of the start and stop endpoints.
type TrackingView struct {
	Tracking bool `json:"tracking"`
}

type errorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler coordinates HTTP requests with the lifecycle driver.
type Handler struct {
	ctl Controller
	log logrus.FieldLogger
	now func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(ctl Controller, log logrus.FieldLogger) *Handler {
	return &Handler{ctl: ctl, log: log.WithField("component", "api"), now: time.Now}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/steps", h.steps)
	mux.HandleFunc("/v1/tracking/start", h.start)
	mux.HandleFunc("/v1/tracking/stop", h.stop)
	mux.HandleFunc("/healthz", healthz)
}

// Logging logs each request at debug level.
func (h *Handler) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) steps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	n, err := h.ctl.CurrentSteps()
	if err != nil {
		h.log.WithError(err).Error("read current steps")
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	goal, err := h.ctl.Goal()
	if err != nil {
		h.log.WithError(err).Warn("read goal")
	}
	writeJSON(w, http.StatusOK, StepsView{
		Date:     steps.DayOf(h.now()),
		Steps:    n,
		Goal:     goal,
		Tracking: h.ctl.Tracking(),
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if err := h.ctl.StartTracking(r.Context()); err != nil {
		if errors.Is(err, source.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "source_unavailable", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TrackingView{Tracking: h.ctl.Tracking()})
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if err := h.ctl.StopTracking(); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TrackingView{Tracking: h.ctl.Tracking()})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
