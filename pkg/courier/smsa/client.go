// Package smsa provides integration with the SMSA Express shipping API.
package smsa

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/wasil/courierbridge/pkg/courier"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const courierCode = "smsa"

// Config holds SMSA configuration.
type Config struct {
	APIURL      string
	PassKey     string
	TrackingURL string
	Timeout     time.Duration
	UseMock     bool
}

// Client is the SMSA courier adapter.
type Client struct {
	config    Config
	apiClient APIClient
	statuses  courier.StatusTable
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new SMSA client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.APIURL,
			PassKey: cfg.PassKey,
			Timeout: cfg.Timeout,
		})
	}
	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new SMSA client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		statuses:  courier.BaseStatusTable().Merge(statusOverrides()),
		logger:    logger,
		tracer:    tracer,
	}
}

// Code returns the courier code.
func (c *Client) Code() string {
	return courierCode
}

// CreateWaybill creates an SMSA shipment.
func (c *Client) CreateWaybill(ctx context.Context, req *courier.WaybillRequest) (*courier.Waybill, error) {
	c.logger.Info("Creating SMSA waybill",
		zap.String("reference_number", req.ReferenceNumber),
		zap.String("destination_city", req.DestinationCity),
	)

	apiResp, err := c.apiClient.CreateShipment(ctx, waybillRequestToAPI(req))
	if err != nil {
		c.logger.Error("SMSA API error", zap.Error(err))
		return nil, err
	}

	if apiResp.Sawb == "" {
		return nil, courier.NewAPIError(courierCode, "EMPTY_WAYBILL", "createShipment returned no sawb").
			WithStatusCode(200)
	}

	return &courier.Waybill{
		WaybillID:        apiResp.Sawb,
		TrackingURL:      trackingURL(c.config.TrackingURL, apiResp.Sawb),
		Status:           "created",
		CourierReference: apiResp.Sawb,
		Raw:              apiResp.Raw,
	}, nil
}

// PrintWaybillLabel retrieves the label PDF. SMSA returns inline bytes.
func (c *Client) PrintWaybillLabel(ctx context.Context, waybillID string) (*courier.Label, error) {
	c.logger.Info("Fetching SMSA label", zap.String("waybill_id", waybillID))

	data, err := c.apiClient.GetLabel(ctx, waybillID)
	if err != nil {
		c.logger.Error("SMSA API error", zap.Error(err))
		return nil, err
	}
	return &courier.Label{Data: data}, nil
}

// TrackShipment retrieves and normalizes tracking information.
func (c *Client) TrackShipment(ctx context.Context, waybillID string) (*courier.TrackingInfo, error) {
	c.logger.Info("Tracking SMSA shipment", zap.String("waybill_id", waybillID))

	apiResp, err := c.apiClient.GetTracking(ctx, waybillID)
	if err != nil {
		c.logger.Error("SMSA API error", zap.Error(err))
		return nil, err
	}

	history := make([]courier.TrackingEvent, len(apiResp.History))
	for i, ev := range apiResp.History {
		raw, _ := json.Marshal(ev)
		history[i] = courier.TrackingEvent{
			CourierStatus: ev.Activity,
			Status:        c.MapStatus(ev.Activity),
			Location:      ev.Location,
			Timestamp:     parseTime(ev.Date),
			Description:   ev.Activity,
			Raw:           raw,
		}
	}

	return &courier.TrackingInfo{
		WaybillID:       waybillID,
		CurrentStatus:   c.MapStatus(apiResp.Status),
		CurrentLocation: apiResp.Location,
		Timestamp:       parseTime(apiResp.Date),
		History:         history,
		Raw:             apiResp.Raw,
	}, nil
}

// CancelShipment requests cancellation of an SMSA shipment.
func (c *Client) CancelShipment(ctx context.Context, waybillID string) (*courier.CancelResult, error) {
	c.logger.Info("Cancelling SMSA shipment", zap.String("waybill_id", waybillID))

	apiResp, err := c.apiClient.CancelShipment(ctx, waybillID, "Customer request")
	if err != nil {
		c.logger.Error("SMSA API error", zap.Error(err))
		return nil, err
	}

	status := courier.CancelFailed
	if apiResp.Success {
		status = courier.CancelSucceeded
	}
	return &courier.CancelResult{
		WaybillID: waybillID,
		Status:    status,
		Message:   apiResp.Message,
		Raw:       apiResp.Raw,
	}, nil
}

// MapStatus resolves an SMSA status string to the canonical enum.
func (c *Client) MapStatus(courierStatus string) courier.ShipmentStatus {
	return c.statuses.Lookup(courierStatus)
}

// statusOverrides is the SMSA vocabulary layered over the common table.
func statusOverrides() courier.StatusTable {
	return courier.StatusTable{
		"shipment created":    courier.StatusPending,
		"out for delivery":    courier.StatusOutForDelivery,
		"shipment picked up":  courier.StatusPickedUp,
		"delivered":           courier.StatusDelivered,
		"delivery attempted":  courier.StatusAttemptedDelivery,
		"delivery failed":     courier.StatusFailed,
		"returned to shipper": courier.StatusReturned,
	}
}

// ============================================================================
// Conversion helpers
// ============================================================================

func waybillRequestToAPI(req *courier.WaybillRequest) *ShipmentRequest {
	pcs := req.PackageCount
	if pcs < 1 {
		pcs = 1
	}
	desc := req.Description
	if desc == "" {
		desc = "Package"
	}

	return &ShipmentRequest{
		RefNo:    req.ReferenceNumber,
		SentDate: req.ShippingDate.Format("2006-01-02"),
		IDNo:     req.CustomerID,
		CName:    req.CustomerName,
		Cntry:    req.DestinationCountry,
		CCity:    req.DestinationCity,
		CZip:     req.PostalCode,
		CPOBox:   req.POBox,
		CMobile:  req.PhoneNumber,
		CTel1:    req.AlternativePhone,
		CAddr1:   req.AddressLine1,
		CAddr2:   req.AddressLine2,
		ShipType: "DLV",
		PCs:      pcs,
		CEmail:   req.Email,
		Weight:   req.Weight,
		ItemDesc: desc,
	}
}

func trackingURL(template, waybillID string) string {
	if template == "" {
		return ""
	}
	return strings.TrimRight(template, "/") + "/" + waybillID
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
