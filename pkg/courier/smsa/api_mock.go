package smsa

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wasil/courierbridge/pkg/courier"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipment func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)
	OnGetLabel       func(ctx context.Context, awbNo string) ([]byte, error)
	OnGetTracking    func(ctx context.Context, awbNo string) (*TrackingResponse, error)
	OnCancelShipment func(ctx context.Context, awbNo, reason string) (*CancelResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return courier.NewAPIError(courierCode, "MOCK_ERROR", "Simulated API error")
	}
	return nil
}

// CreateShipment returns a mock waybill.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	sawb := fmt.Sprintf("SMSA%09d", time.Now().UnixNano()%1000000000)
	raw, _ := json.Marshal(map[string]any{"success": true, "sawb": sawb})

	return &ShipmentResponse{
		Sawb:    sawb,
		Success: true,
		Message: "Shipment created successfully",
		Raw:     raw,
	}, nil
}

// GetLabel returns mock PDF bytes.
func (m *MockAPIClient) GetLabel(ctx context.Context, awbNo string) ([]byte, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetLabel != nil {
		return m.OnGetLabel(ctx, awbNo)
	}
	return []byte("%PDF-1.4 mock label data"), nil
}

// GetTracking returns a mock tracking response with a two-event history.
func (m *MockAPIClient) GetTracking(ctx context.Context, awbNo string) (*TrackingResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, awbNo)
	}

	now := time.Now().UTC()
	resp := &TrackingResponse{
		AwbNo:    awbNo,
		Status:   "in_transit",
		Location: "Riyadh Hub",
		Date:     now.Format(time.RFC3339),
		History: []TrackingEvent{
			{
				Activity: "shipment created",
				Location: "Shipper Warehouse",
				Date:     now.Add(-48 * time.Hour).Format(time.RFC3339),
			},
			{
				Activity: "shipment picked up",
				Location: "Jeddah Station",
				Date:     now.Add(-24 * time.Hour).Format(time.RFC3339),
			},
		},
	}
	resp.Raw, _ = json.Marshal(resp)
	return resp, nil
}

// CancelShipment reports a successful mock cancellation.
func (m *MockAPIClient) CancelShipment(ctx context.Context, awbNo, reason string) (*CancelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancelShipment != nil {
		return m.OnCancelShipment(ctx, awbNo, reason)
	}

	raw, _ := json.Marshal(map[string]any{"success": true, "message": "Shipment cancelled successfully"})
	return &CancelResponse{
		Success: true,
		Message: "Shipment cancelled successfully",
		Raw:     raw,
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
