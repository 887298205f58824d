// Package server exposes the shipment operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/wasil/courierbridge/internal/service"
	"github.com/wasil/courierbridge/internal/store"
	"github.com/wasil/courierbridge/internal/telemetry"
	"github.com/wasil/courierbridge/pkg/courier"
	"go.uber.org/zap"
)

// Server is the HTTP server for the courier service.
type Server struct {
	port      int
	shipments *service.ShipmentService
	logger    *otelzap.Logger
	metrics   *telemetry.Metrics
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, shipments *service.ShipmentService, logger *otelzap.Logger, metrics *telemetry.Metrics) *Server {
	return &Server{
		port:      cfg.Port,
		shipments: shipments,
		logger:    logger,
		metrics:   metrics,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/couriers", s.handleListCouriers)
		r.Route("/shipments", func(r chi.Router) {
			r.Post("/", s.handleCreateShipment)
			r.Get("/", s.handleListShipments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetShipment)
				r.Post("/track", s.handleTrackShipment)
				r.Post("/cancel", s.handleCancelShipment)
				r.Get("/label", s.handleGetLabel)
				r.Get("/history", s.handleHistory)
			})
		})
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req service.CreateShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	shipment, err := s.shipments.CreateShipment(r.Context(), &req)
	if err != nil {
		// A provider failure after the row was persisted still surfaces
		// the stored shipment so the caller can retry against it.
		if shipment != nil {
			s.writeProviderError(w, shipment, err)
			return
		}
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, shipment)
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	if ref := r.URL.Query().Get("reference"); ref != "" {
		shipment, err := s.shipments.GetShipmentByReference(r.Context(), ref)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, shipment)
		return
	}

	shipments, err := s.shipments.ListShipments(r.Context())
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, shipments)
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shipmentID(w, r)
	if !ok {
		return
	}
	shipment, err := s.shipments.GetShipment(r.Context(), id)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, shipment)
}

func (s *Server) handleTrackShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shipmentID(w, r)
	if !ok {
		return
	}
	info, err := s.shipments.UpdateTrackingStatus(r.Context(), id)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trackingResponse(info))
}

func (s *Server) handleCancelShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shipmentID(w, r)
	if !ok {
		return
	}
	result, err := s.shipments.CancelShipment(r.Context(), id)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shipmentID(w, r)
	if !ok {
		return
	}
	label, err := s.shipments.GetLabel(r.Context(), id)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if label.Hosted() {
		http.Redirect(w, r, label.URL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(label.Data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shipmentID(w, r)
	if !ok {
		return
	}
	events, err := s.shipments.History(r.Context(), id)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleListCouriers(w http.ResponseWriter, r *http.Request) {
	couriers, err := s.shipments.ListCouriers(r.Context(), true)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, couriers)
}

func (s *Server) shipmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_ID", "shipment id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type providerErrorResponse struct {
	errorResponse
	Shipment *store.Shipment `json:"shipment"`
}

// writeMappedError translates service errors to HTTP status codes.
func (s *Server) writeMappedError(w http.ResponseWriter, err error) {
	var vErr *service.ValidationError
	var apiErr *courier.APIError

	switch {
	case errors.As(err, &vErr):
		s.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", vErr.Error())
	case errors.Is(err, courier.ErrCourierNotFound),
		errors.Is(err, courier.ErrUnsupportedCourier):
		s.writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_COURIER", err.Error())
	case errors.Is(err, courier.ErrShipmentNotFound):
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, courier.ErrCancellationNotSupported):
		s.writeError(w, http.StatusConflict, "CANCELLATION_NOT_SUPPORTED", err.Error())
	case errors.Is(err, courier.ErrWaybillMissing):
		s.writeError(w, http.StatusConflict, "WAYBILL_MISSING", err.Error())
	case errors.Is(err, store.ErrDuplicateReference):
		s.writeError(w, http.StatusConflict, "DUPLICATE_REFERENCE", err.Error())
	case errors.As(err, &apiErr):
		s.writeError(w, http.StatusBadGateway, apiErr.Code, apiErr.Message)
	default:
		s.logger.Error("Unhandled request error", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (s *Server) writeProviderError(w http.ResponseWriter, shipment *store.Shipment, err error) {
	code, message := "PROVIDER_ERROR", err.Error()
	var apiErr *courier.APIError
	if errors.As(err, &apiErr) {
		code, message = apiErr.Code, apiErr.Message
	}
	s.writeJSON(w, http.StatusBadGateway, providerErrorResponse{
		errorResponse: errorResponse{Error: "provider request failed", Code: code, Message: message},
		Shipment:      shipment,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: http.StatusText(status), Code: code, Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Encoding response failed", zap.Error(err))
	}
}

type trackingEventResponse struct {
	CourierStatus string    `json:"courier_status"`
	Status        string    `json:"status"`
	Location      string    `json:"location,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Description   string    `json:"description,omitempty"`
}

type trackingInfoResponse struct {
	WaybillID       string                  `json:"waybill_id"`
	CurrentStatus   string                  `json:"current_status"`
	CurrentLocation string                  `json:"current_location,omitempty"`
	Timestamp       time.Time               `json:"timestamp"`
	History         []trackingEventResponse `json:"history"`
}

func trackingResponse(info *courier.TrackingInfo) trackingInfoResponse {
	history := make([]trackingEventResponse, len(info.History))
	for i, ev := range info.History {
		history[i] = trackingEventResponse{
			CourierStatus: ev.CourierStatus,
			Status:        string(ev.Status),
			Location:      ev.Location,
			Timestamp:     ev.Timestamp,
			Description:   ev.Description,
		}
	}
	return trackingInfoResponse{
		WaybillID:       info.WaybillID,
		CurrentStatus:   string(info.CurrentStatus),
		CurrentLocation: info.CurrentLocation,
		Timestamp:       info.Timestamp,
		History:         history,
	}
}
