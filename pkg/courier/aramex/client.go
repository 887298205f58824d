// Package aramex provides integration with the ARAMEX shipping SOAP API.
package aramex

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

const courierCode = "aramex"

// Config holds ARAMEX configuration.
type Config struct {
	APIURL             string
	UserName           string
	Password           string
	AccountNumber      string
	AccountPin         string
	AccountEntity      string
	AccountCountryCode string
	TrackingURL        string
	Timeout            time.Duration
	UseMock            bool
}

// Client is the ARAMEX courier adapter.
type Client struct {
	config    Config
	apiClient APIClient
	statuses  courier.StatusTable
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new ARAMEX client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewSOAPAPIClient(SOAPAPIClientConfig{
			BaseURL: cfg.APIURL,
			ClientInfo: ClientInfo{
				UserName:           cfg.UserName,
				Password:           cfg.Password,
				AccountNumber:      cfg.AccountNumber,
				AccountPin:         cfg.AccountPin,
				AccountEntity:      cfg.AccountEntity,
				AccountCountryCode: cfg.AccountCountryCode,
			},
			Timeout: cfg.Timeout,
		})
	}
	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new ARAMEX client with a custom API client.
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

// CreateWaybill creates an ARAMEX shipment.
func (c *Client) CreateWaybill(ctx context.Context, req *courier.WaybillRequest) (*courier.Waybill, error) {
	c.logger.Info("Creating ARAMEX waybill",
		zap.String("reference_number", req.ReferenceNumber),
		zap.String("destination_city", req.DestinationCity),
	)

	apiResp, err := c.apiClient.CreateShipment(ctx, waybillRequestToAPI(req))
	if err != nil {
		c.logger.Error("ARAMEX API error", zap.Error(err))
		return nil, err
	}

	if apiResp.WaybillID == "" {
		return nil, courier.NewAPIError(courierCode, "EMPTY_WAYBILL", "CreateShipments returned no waybill id").
			WithStatusCode(200)
	}

	return &courier.Waybill{
		WaybillID:        apiResp.WaybillID,
		TrackingURL:      trackingURL(c.config.TrackingURL, apiResp.WaybillID),
		Status:           "created",
		CourierReference: apiResp.WaybillID,
		Raw:              apiResp.Raw,
	}, nil
}

// PrintWaybillLabel retrieves the label. ARAMEX hosts labels behind a URL
// rather than returning bytes inline.
func (c *Client) PrintWaybillLabel(ctx context.Context, waybillID string) (*courier.Label, error) {
	c.logger.Info("Fetching ARAMEX label", zap.String("waybill_id", waybillID))

	apiResp, err := c.apiClient.GetLabel(ctx, waybillID)
	if err != nil {
		c.logger.Error("ARAMEX API error", zap.Error(err))
		return nil, err
	}
	return &courier.Label{URL: apiResp.LabelURL}, nil
}

// TrackShipment retrieves and normalizes tracking updates.
func (c *Client) TrackShipment(ctx context.Context, waybillID string) (*courier.TrackingInfo, error) {
	c.logger.Info("Tracking ARAMEX shipment", zap.String("waybill_id", waybillID))

	apiResp, err := c.apiClient.GetTracking(ctx, waybillID)
	if err != nil {
		c.logger.Error("ARAMEX API error", zap.Error(err))
		return nil, err
	}

	history := make([]courier.TrackingEvent, len(apiResp.Updates))
	for i, u := range apiResp.Updates {
		raw, _ := json.Marshal(u)
		history[i] = courier.TrackingEvent{
			CourierStatus: u.UpdateCode,
			Status:        c.mapUpdate(u),
			Location:      u.UpdateLocation,
			Timestamp:     parseTime(u.UpdateDateTime),
			Description:   u.UpdateDescription,
			Raw:           raw,
		}
	}

	info := &courier.TrackingInfo{
		WaybillID: waybillID,
		History:   history,
		Raw:       apiResp.Raw,
	}
	// The provider orders updates most recent first.
	if len(history) > 0 {
		info.CurrentStatus = history[0].Status
		info.CurrentLocation = history[0].Location
		info.Timestamp = history[0].Timestamp
	} else {
		info.CurrentStatus = courier.StatusUnknown
	}
	return info, nil
}

// CancelShipment requests cancellation of an ARAMEX shipment.
func (c *Client) CancelShipment(ctx context.Context, waybillID string) (*courier.CancelResult, error) {
	c.logger.Info("Cancelling ARAMEX shipment", zap.String("waybill_id", waybillID))

	apiResp, err := c.apiClient.CancelShipment(ctx, waybillID, "Customer request")
	if err != nil {
		c.logger.Error("ARAMEX API error", zap.Error(err))
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

// MapStatus resolves an ARAMEX status string or update code to the
// canonical enum.
func (c *Client) MapStatus(courierStatus string) courier.ShipmentStatus {
	return c.statuses.Lookup(courierStatus)
}

// mapUpdate resolves a tracking update, preferring the update code and
// falling back to the textual description.
func (c *Client) mapUpdate(u TrackingUpdate) courier.ShipmentStatus {
	if s := c.MapStatus(u.UpdateCode); s != courier.StatusUnknown {
		return s
	}
	return c.MapStatus(u.UpdateDescription)
}

// statusOverrides is the ARAMEX vocabulary layered over the common
// table: textual terms plus the SHnnn update codes.
func statusOverrides() courier.StatusTable {
	return courier.StatusTable{
		"shipment created":    courier.StatusPending,
		"record created":      courier.StatusPending,
		"out for delivery":    courier.StatusOutForDelivery,
		"shipment picked up":  courier.StatusPickedUp,
		"delivered":           courier.StatusDelivered,
		"delivery attempted":  courier.StatusAttemptedDelivery,
		"delivery failed":     courier.StatusFailed,
		"returned to shipper": courier.StatusReturned,
		"sh001":               courier.StatusPending,
		"sh003":               courier.StatusInTransit,
		"sh005":               courier.StatusPickedUp,
		"sh006":               courier.StatusDelivered,
		"sh014":               courier.StatusOutForDelivery,
		"sh069":               courier.StatusReturned,
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
	currency := req.Currency
	if req.CODAmount > 0 && currency == "" {
		currency = "SAR"
	}

	return &ShipmentRequest{
		Reference: req.ReferenceNumber,
		Consignee: Party{
			Name:        req.CustomerName,
			Line1:       req.AddressLine1,
			Line2:       req.AddressLine2,
			City:        req.DestinationCity,
			PostCode:    req.PostalCode,
			POBox:       req.POBox,
			CountryCode: req.DestinationCountry,
			PhoneNumber: req.AlternativePhone,
			CellPhone:   req.PhoneNumber,
			Email:       req.Email,
		},
		Details: ShipmentDetails{
			NumberOfPieces:     pcs,
			ActualWeight:       req.Weight,
			WeightUnit:         "KG",
			DescriptionOfGoods: desc,
			ProductGroup:       "DOM",
			ProductType:        "OND",
			PaymentType:        "P",
			CODAmount:          req.CODAmount,
			CODCurrencyCode:    currency,
			ShippingDateTime:   req.ShippingDate.Format("2006-01-02"),
		},
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
