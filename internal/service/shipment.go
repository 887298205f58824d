// Package service orchestrates shipment operations across the store and
// the courier adapters.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/wasil/courierbridge/internal/store"
	"github.com/wasil/courierbridge/internal/telemetry"
	"github.com/wasil/courierbridge/pkg/courier"
	"go.uber.org/zap"
)

// dateLayout is the normalized textual form for shipping dates.
const dateLayout = "2006-01-02"

// CreateShipmentRequest is the canonical shipment creation payload.
type CreateShipmentRequest struct {
	CourierCode        string  `json:"courier_code"`
	ReferenceNumber    string  `json:"reference_number"`
	CustomerName       string  `json:"customer_name"`
	CustomerID         string  `json:"customer_id,omitempty"`
	ShippingDate       string  `json:"shipping_date,omitempty"`
	DestinationCountry string  `json:"destination_country"`
	DestinationCity    string  `json:"destination_city"`
	PostalCode         string  `json:"postal_code,omitempty"`
	POBox              string  `json:"po_box,omitempty"`
	AddressLine1       string  `json:"address_line1"`
	AddressLine2       string  `json:"address_line2,omitempty"`
	PhoneNumber        string  `json:"phone_number"`
	AlternativePhone   string  `json:"alternative_phone,omitempty"`
	Email              string  `json:"email,omitempty"`
	PackageCount       int     `json:"package_count,omitempty"`
	Weight             float64 `json:"weight,omitempty"`
	Description        string  `json:"description,omitempty"`
	CODAmount          float64 `json:"cod_amount,omitempty"`
	Currency           string  `json:"currency,omitempty"`
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ShipmentService binds the store, the adapter registry, and telemetry
// into the shipment operations.
type ShipmentService struct {
	store    store.Store
	registry *courier.Registry
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics
}

// New creates a new ShipmentService.
func New(st store.Store, registry *courier.Registry, logger *otelzap.Logger, metrics *telemetry.Metrics) *ShipmentService {
	return &ShipmentService{
		store:    st,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// CreateShipment creates a shipment and requests a waybill from the
// provider. The pending row is persisted before the provider call so a
// provider failure still leaves an auditable record; in that case the
// persisted shipment is returned alongside the error.
func (s *ShipmentService) CreateShipment(ctx context.Context, req *CreateShipmentRequest) (*store.Shipment, error) {
	start := time.Now()

	if err := s.validate(req); err != nil {
		return nil, err
	}
	shippingDate, err := normalizeDate(req.ShippingDate)
	if err != nil {
		return nil, &ValidationError{Field: "shipping_date", Reason: err.Error()}
	}
	req.ShippingDate = shippingDate.Format(dateLayout)

	// An inactive or absent courier fails before anything is persisted.
	if _, err := s.store.GetCourierByCode(ctx, req.CourierCode, true); err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(req.CourierCode)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(req)
	shipment := &store.Shipment{
		ReferenceNumber: req.ReferenceNumber,
		CourierCode:     req.CourierCode,
		Status:          courier.StatusPending,
		Data:            data,
	}
	if err := s.store.CreateShipment(ctx, shipment); err != nil {
		return nil, err
	}

	s.logger.Info("Creating shipment",
		zap.String("shipment_id", shipment.ID.String()),
		zap.String("courier", req.CourierCode),
		zap.String("reference_number", req.ReferenceNumber),
	)

	waybill, err := adapter.CreateWaybill(ctx, waybillRequest(req, shippingDate))
	if err != nil {
		s.recordOutcome("create_shipment", req.CourierCode, err, start)
		s.logger.Error("Waybill creation failed",
			zap.String("shipment_id", shipment.ID.String()),
			zap.Error(err),
		)
		return shipment, err
	}

	merged, err := json.Marshal(struct {
		Request  *CreateShipmentRequest `json:"request"`
		Provider json.RawMessage        `json:"provider_response,omitempty"`
	}{req, providerRaw(waybill.Raw)})
	if err != nil {
		s.logger.Warn("Encoding audit data failed, keeping request payload only",
			zap.String("shipment_id", shipment.ID.String()),
			zap.Error(err),
		)
		merged = data
	}
	if err := s.store.SetShipmentWaybill(ctx, shipment.ID, waybill.WaybillID, merged); err != nil {
		return shipment, err
	}
	s.recordOutcome("create_shipment", req.CourierCode, nil, start)

	return s.store.GetShipment(ctx, shipment.ID)
}

// UpdateTrackingStatus fetches current tracking from the provider and
// applies it in one atomic store update: status, refresh timestamp, and
// one history row per returned event. Events are never deduplicated, so
// repeated calls against an unchanged provider history append duplicate
// rows.
func (s *ShipmentService) UpdateTrackingStatus(ctx context.Context, id uuid.UUID) (*courier.TrackingInfo, error) {
	start := time.Now()

	shipment, err := s.store.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if shipment.WaybillID == "" {
		return nil, courier.ErrWaybillMissing
	}
	adapter, err := s.registry.Get(shipment.CourierCode)
	if err != nil {
		return nil, err
	}

	// The provider call happens outside the transaction.
	info, err := adapter.TrackShipment(ctx, shipment.WaybillID)
	if err != nil {
		s.recordOutcome("track_shipment", shipment.CourierCode, err, start)
		return nil, err
	}

	events := make([]store.ShipmentTracking, len(info.History))
	for i, ev := range info.History {
		events[i] = store.ShipmentTracking{
			CourierStatus: ev.CourierStatus,
			Status:        ev.Status,
			Location:      ev.Location,
			Timestamp:     ev.Timestamp,
			Description:   ev.Description,
			RawData:       ev.Raw,
		}
	}
	if err := s.store.ApplyTrackingUpdate(ctx, id, info.CurrentStatus, time.Now().UTC(), events); err != nil {
		return nil, err
	}
	s.recordOutcome("track_shipment", shipment.CourierCode, nil, start)

	return info, nil
}

// CancelShipment requests cancellation from the provider. The stored
// status moves to cancelled only when the provider reports success; any
// other result leaves it untouched.
func (s *ShipmentService) CancelShipment(ctx context.Context, id uuid.UUID) (*courier.CancelResult, error) {
	start := time.Now()

	shipment, err := s.store.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	courierRow, err := s.store.GetCourierByCode(ctx, shipment.CourierCode, false)
	if err != nil {
		return nil, err
	}
	if !courierRow.SupportsCancellation {
		return nil, fmt.Errorf("courier %s: %w", shipment.CourierCode, courier.ErrCancellationNotSupported)
	}
	if shipment.WaybillID == "" {
		return nil, courier.ErrWaybillMissing
	}
	adapter, err := s.registry.Get(shipment.CourierCode)
	if err != nil {
		return nil, err
	}

	result, err := adapter.CancelShipment(ctx, shipment.WaybillID)
	if err != nil {
		s.recordOutcome("cancel_shipment", shipment.CourierCode, err, start)
		return nil, err
	}

	if result.Status == courier.CancelSucceeded {
		if err := s.store.SetShipmentStatus(ctx, id, courier.StatusCancelled); err != nil {
			return nil, err
		}
	}
	s.recordOutcome("cancel_shipment", shipment.CourierCode, nil, start)

	return result, nil
}

// GetLabel retrieves the shipment label in whichever shape the provider
// uses, inline bytes or a hosted URL.
func (s *ShipmentService) GetLabel(ctx context.Context, id uuid.UUID) (*courier.Label, error) {
	start := time.Now()

	shipment, err := s.store.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if shipment.WaybillID == "" {
		return nil, courier.ErrWaybillMissing
	}
	adapter, err := s.registry.Get(shipment.CourierCode)
	if err != nil {
		return nil, err
	}

	label, err := adapter.PrintWaybillLabel(ctx, shipment.WaybillID)
	s.recordOutcome("get_label", shipment.CourierCode, err, start)
	return label, err
}

// History returns the shipment's tracking events, most recent first.
func (s *ShipmentService) History(ctx context.Context, id uuid.UUID) ([]store.ShipmentTracking, error) {
	if _, err := s.store.GetShipment(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTracking(ctx, id)
}

// GetShipment returns one shipment by id.
func (s *ShipmentService) GetShipment(ctx context.Context, id uuid.UUID) (*store.Shipment, error) {
	return s.store.GetShipment(ctx, id)
}

// GetShipmentByReference returns one shipment by its reference number.
func (s *ShipmentService) GetShipmentByReference(ctx context.Context, reference string) (*store.Shipment, error) {
	return s.store.GetShipmentByReference(ctx, reference)
}

// ListShipments returns all shipments, newest first.
func (s *ShipmentService) ListShipments(ctx context.Context) ([]store.Shipment, error) {
	return s.store.ListShipments(ctx)
}

// ListCouriers returns the registered couriers.
func (s *ShipmentService) ListCouriers(ctx context.Context, activeOnly bool) ([]store.Courier, error) {
	return s.store.ListCouriers(ctx, activeOnly)
}

func (s *ShipmentService) validate(req *CreateShipmentRequest) error {
	switch {
	case req.CourierCode == "":
		return &ValidationError{Field: "courier_code", Reason: "required"}
	case req.ReferenceNumber == "":
		return &ValidationError{Field: "reference_number", Reason: "required"}
	case req.CustomerName == "":
		return &ValidationError{Field: "customer_name", Reason: "required"}
	case req.DestinationCity == "":
		return &ValidationError{Field: "destination_city", Reason: "required"}
	}
	return nil
}

func (s *ShipmentService) recordOutcome(operation, courierCode string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		var apiErr *courier.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordError(courierCode, apiErr.Code)
		}
	}
	s.metrics.RecordRequest(operation, courierCode, status, time.Since(start).Seconds())
}

// providerRaw returns the provider response as a JSON value. JSON
// payloads pass through untouched; anything else (the SOAP providers
// return XML) is quoted as a JSON string so the audit document stays
// valid.
func providerRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return raw
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return nil
	}
	return quoted
}

var dateLayouts = []string{dateLayout, time.RFC3339, "2006-01-02 15:04:05"}

func normalizeDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func waybillRequest(req *CreateShipmentRequest, shippingDate time.Time) *courier.WaybillRequest {
	return &courier.WaybillRequest{
		ReferenceNumber:    req.ReferenceNumber,
		CustomerName:       req.CustomerName,
		CustomerID:         req.CustomerID,
		ShippingDate:       shippingDate,
		DestinationCountry: req.DestinationCountry,
		DestinationCity:    req.DestinationCity,
		PostalCode:         req.PostalCode,
		POBox:              req.POBox,
		AddressLine1:       req.AddressLine1,
		AddressLine2:       req.AddressLine2,
		PhoneNumber:        req.PhoneNumber,
		AlternativePhone:   req.AlternativePhone,
		Email:              req.Email,
		PackageCount:       req.PackageCount,
		Weight:             req.Weight,
		Description:        req.Description,
		CODAmount:          req.CODAmount,
		Currency:           req.Currency,
	}
}
