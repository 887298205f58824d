// Package mock provides a mock courier implementation for testing.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wasil/courierbridge/pkg/courier"
)

// Courier is a mock courier adapter. Default behavior returns plausible
// canned responses; individual operations are overridable through the On*
// hooks.
type Courier struct {
	code  string
	table courier.StatusTable

	OnCreateWaybill func(ctx context.Context, req *courier.WaybillRequest) (*courier.Waybill, error)
	OnPrintLabel    func(ctx context.Context, waybillID string) (*courier.Label, error)
	OnTrack         func(ctx context.Context, waybillID string) (*courier.TrackingInfo, error)
	OnCancel        func(ctx context.Context, waybillID string) (*courier.CancelResult, error)
}

// New creates a new mock courier with the given code.
func New(code string) *Courier {
	return &Courier{
		code:  code,
		table: courier.BaseStatusTable(),
	}
}

// Code returns the courier code.
func (c *Courier) Code() string {
	return c.code
}

// CreateWaybill returns a mock waybill.
func (c *Courier) CreateWaybill(ctx context.Context, req *courier.WaybillRequest) (*courier.Waybill, error) {
	if c.OnCreateWaybill != nil {
		return c.OnCreateWaybill(ctx, req)
	}

	waybillID := fmt.Sprintf("%s-%d", c.code, time.Now().UnixNano()%100000000)
	raw, _ := json.Marshal(map[string]string{"awb": waybillID})

	return &courier.Waybill{
		WaybillID:        waybillID,
		TrackingURL:      fmt.Sprintf("https://track.%s.mock/%s", c.code, waybillID),
		Status:           "created",
		CourierReference: waybillID,
		Raw:              raw,
	}, nil
}

// PrintWaybillLabel returns a mock inline PDF label.
func (c *Courier) PrintWaybillLabel(ctx context.Context, waybillID string) (*courier.Label, error) {
	if c.OnPrintLabel != nil {
		return c.OnPrintLabel(ctx, waybillID)
	}
	return &courier.Label{Data: []byte("%PDF-1.4 mock label data")}, nil
}

// TrackShipment returns a mock in-transit history with two events.
func (c *Courier) TrackShipment(ctx context.Context, waybillID string) (*courier.TrackingInfo, error) {
	if c.OnTrack != nil {
		return c.OnTrack(ctx, waybillID)
	}

	now := time.Now().UTC()
	raw, _ := json.Marshal(map[string]string{"awbNo": waybillID, "status": "in_transit"})

	return &courier.TrackingInfo{
		WaybillID:       waybillID,
		CurrentStatus:   courier.StatusInTransit,
		CurrentLocation: "Riyadh Hub",
		Timestamp:       now,
		History: []courier.TrackingEvent{
			{
				CourierStatus: "pending",
				Status:        courier.StatusPending,
				Location:      "Shipper Warehouse",
				Timestamp:     now.Add(-24 * time.Hour),
				Description:   "pending",
			},
			{
				CourierStatus: "in_transit",
				Status:        courier.StatusInTransit,
				Location:      "Riyadh Hub",
				Timestamp:     now,
				Description:   "in_transit",
			},
		},
		Raw: raw,
	}, nil
}

// CancelShipment reports a successful mock cancellation.
func (c *Courier) CancelShipment(ctx context.Context, waybillID string) (*courier.CancelResult, error) {
	if c.OnCancel != nil {
		return c.OnCancel(ctx, waybillID)
	}
	return &courier.CancelResult{
		WaybillID: waybillID,
		Status:    courier.CancelSucceeded,
		Message:   "Shipment cancelled",
	}, nil
}

// MapStatus resolves against the base status table.
func (c *Courier) MapStatus(courierStatus string) courier.ShipmentStatus {
	return c.table.Lookup(courierStatus)
}

var _ courier.Courier = (*Courier)(nil)
