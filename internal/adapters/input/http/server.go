package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"salus-bridge/internal/domain/model"
	"salus-bridge/internal/observability"
	"salus-bridge/internal/ports"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	CORSOrigins []string
	// Metrics and Tracer are optional. Without Metrics there is no
	// /metrics route.
	Metrics *observability.Metrics
	Tracer  trace.Tracer
}

type Server struct {
	bridge ports.BridgePort
	opts   Options
	logger *slog.Logger
}

func NewServer(bridge ports.BridgePort, opts Options, logger *slog.Logger) *Server {
	return &Server{bridge: bridge, opts: opts, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.opts.Metrics != nil && s.opts.Tracer != nil {
		r.Use(s.opts.Metrics.Middleware(s.opts.Tracer))
	}

	r.Get("/", s.handleStatus)
	r.Get("/devices", s.handleGetDevices)
	r.Get("/device/{id}", s.handleGetDevice)
	r.Post("/device/{id}/temperature", s.handleSetTemperature)
	r.Post("/device/{id}/mode", s.handleSetMode)
	r.Post("/device/{id}/preset", s.handleSetPreset)
	r.Group(func(r chi.Router) {
		r.Use(s.noWriteDeadline)
		r.Post("/zone/temperature", s.handleZoneTemperature)
		r.Post("/zone/preset", s.handleZonePreset)
	})
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handleGetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.bridge.GetDevices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if devices == nil {
		devices = []*model.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.bridge.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSetTemperature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req temperatureRequest
	if err := decode(w, r, temperatureSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.bridge.SetTemperature(r.Context(), id, req.Temperature)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"device_id":   id,
		"temperature": req.Temperature,
		"device":      d,
	})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req modeRequest
	if err := decode(w, r, modeSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.bridge.SetMode(r.Context(), id, req.Mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"device_id": id,
		"mode":      req.Mode,
		"device":    d,
	})
}

func (s *Server) handleSetPreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req presetRequest
	if err := decode(w, r, presetSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.bridge.SetPreset(r.Context(), id, req.Preset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"device_id": id,
		"preset":    req.Preset,
		"device":    d,
	})
}

func (s *Server) handleZoneTemperature(w http.ResponseWriter, r *http.Request) {
	var req zoneTemperatureRequest
	if err := decode(w, r, zoneTemperatureSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.bridge.ZoneTemperature(r.Context(), req.DeviceIDs, req.Temperature)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"temperature": req.Temperature,
		"results":     results,
	})
}

func (s *Server) handleZonePreset(w http.ResponseWriter, r *http.Request) {
	var req zonePresetRequest
	if err := decode(w, r, zonePresetSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.bridge.ZonePreset(r.Context(), req.DeviceIDs, req.Preset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"preset":  req.Preset,
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps the error taxonomy to a status code. Upstream details
// stay in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "device not found"})
	case errors.Is(err, model.ErrUpstreamUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": model.ErrUpstreamUnavailable.Error()})
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// noWriteDeadline lifts the server write timeout. A zone command takes
// one gateway budget per device, and its response must not be dropped
// after the commands were applied.
func (s *Server) noWriteDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			s.logger.Warn("cannot lift write deadline", "path", r.URL.Path, "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
