package smsa_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/wasil/courierbridge/pkg/courier"
	"github.com/wasil/courierbridge/pkg/courier/smsa"
	"go.uber.org/zap"
)

func newTestClient(mockAPI *smsa.MockAPIClient) *smsa.Client {
	logger := otelzap.New(zap.NewNop())
	return smsa.NewWithAPIClient(
		smsa.Config{TrackingURL: "https://track.smsaexpress.com/track"},
		mockAPI,
		logger,
		nil,
	)
}

func waybillRequest() *courier.WaybillRequest {
	return &courier.WaybillRequest{
		ReferenceNumber:    "REF1",
		CustomerName:       "Sara Khalid",
		CustomerID:         "1088822211",
		ShippingDate:       time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC),
		DestinationCountry: "SA",
		DestinationCity:    "Riyadh",
		PostalCode:         "12271",
		AddressLine1:       "2205 Olaya St",
		PhoneNumber:        "+966501234567",
		PackageCount:       1,
		Weight:             2.5,
		Description:        "Books",
	}
}

func TestClient_CreateWaybill_Success(t *testing.T) {
	mockAPI := smsa.NewMockAPIClient()
	mockAPI.OnCreateShipment = func(ctx context.Context, req *smsa.ShipmentRequest) (*smsa.ShipmentResponse, error) {
		assert.Equal(t, "REF1", req.RefNo)
		assert.Equal(t, "2025-04-05", req.SentDate)
		assert.Equal(t, "DLV", req.ShipType)
		assert.Equal(t, 1, req.PCs)
		return &smsa.ShipmentResponse{Sawb: "SMSA000123456", Success: true}, nil
	}
	client := newTestClient(mockAPI)

	wb, err := client.CreateWaybill(context.Background(), waybillRequest())

	require.NoError(t, err)
	assert.Equal(t, "SMSA000123456", wb.WaybillID)
	assert.Equal(t, "created", wb.Status)
	assert.Equal(t, "https://track.smsaexpress.com/track/SMSA000123456", wb.TrackingURL)
}

func TestClient_CreateWaybill_EmptyWaybill(t *testing.T) {
	mockAPI := smsa.NewMockAPIClient()
	mockAPI.OnCreateShipment = func(ctx context.Context, req *smsa.ShipmentRequest) (*smsa.ShipmentResponse, error) {
		return &smsa.ShipmentResponse{Sawb: "", Success: false}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.CreateWaybill(context.Background(), waybillRequest())

	require.Error(t, err)
	assert.True(t, courier.IsAPIError(err))
}

func TestClient_CreateWaybill_APIError(t *testing.T) {
	mockAPI := smsa.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.CreateWaybill(context.Background(), waybillRequest())
	assert.Error(t, err)
}

func TestClient_PrintWaybillLabel_InlineBytes(t *testing.T) {
	mockAPI := smsa.NewMockAPIClient()
	client := newTestClient(mockAPI)

	label, err := client.PrintWaybillLabel(context.Background(), "SMSA000123456")

	require.NoError(t, err)
	assert.True(t, label.Inline())
	assert.False(t, label.Hosted())
	assert.Contains(t, string(label.Data), "%PDF")
}

func TestClient_TrackShipment_NormalizesHistory(t *testing.T) {
	mockAPI := smsa.NewMockAPIClient()
	mockAPI.OnGetTracking = func(ctx context.Context, awbNo string) (*smsa.TrackingResponse, error) {
		resp := &smsa.TrackingResponse{
			AwbNo:    awbNo,
			Status:   "Out For Delivery",
			Location: "Riyadh Hub",
			Date:     "2025-04-06T10:30:00Z",
			History: []smsa.TrackingEvent{
				{Activity: "shipment created", Location: "Shipper Warehouse", Date: "2025-04-05T14:20:00Z"},
				{Activity: "SHIPMENT PICKED UP", Location: "Jeddah Station", Date: "2025-04-05T18:00:00Z"},
				{Activity: "weird scan code", Location: "", Date: "bad date"},
			},
		}
		resp.Raw, _ = json.Marshal(resp)
		return resp, nil
	}
	client := newTestClient(mockAPI)

	info, err := client.TrackShipment(context.Background(), "SMSA000123456")

	require.NoError(t, err)
	assert.Equal(t, courier.StatusOutForDelivery, info.CurrentStatus)
	assert.Equal(t, "Riyadh Hub", info.CurrentLocation)
	require.Len(t, info.History, 3)
	assert.Equal(t, courier.StatusPending, info.History[0].Status)
	assert.Equal(t, courier.StatusPickedUp, info.History[1].Status)
	assert.Equal(t, courier.StatusUnknown, info.History[2].Status)
	assert.Equal(t, "shipment created", info.History[0].CourierStatus)
	assert.True(t, info.History[2].Timestamp.IsZero())
	assert.NotEmpty(t, info.Raw)
}

func TestClient_CancelShipment_Success(t *testing.T) {
	mockAPI := smsa.NewMockAPIClient()
	client := newTestClient(mockAPI)

	result, err := client.CancelShipment(context.Background(), "SMSA000123456")

	require.NoError(t, err)
	assert.Equal(t, courier.CancelSucceeded, result.Status)
}

func TestClient_CancelShipment_ProviderRefusal(t *testing.T) {
	mockAPI := smsa.NewMockAPIClient()
	mockAPI.OnCancelShipment = func(ctx context.Context, awbNo, reason string) (*smsa.CancelResponse, error) {
		return &smsa.CancelResponse{Success: false, Message: "Already dispatched"}, nil
	}
	client := newTestClient(mockAPI)

	result, err := client.CancelShipment(context.Background(), "SMSA000123456")

	// A refusal is a result, not an error.
	require.NoError(t, err)
	assert.Equal(t, courier.CancelFailed, result.Status)
	assert.Equal(t, "Already dispatched", result.Message)
}

func TestClient_MapStatus(t *testing.T) {
	client := newTestClient(smsa.NewMockAPIClient())

	tests := []struct {
		input string
		want  courier.ShipmentStatus
	}{
		{"shipment created", courier.StatusPending},
		{"Shipment Picked Up", courier.StatusPickedUp},
		{"out for delivery", courier.StatusOutForDelivery},
		{"DELIVERED", courier.StatusDelivered},
		{"delivery failed", courier.StatusFailed},
		{"returned to shipper", courier.StatusReturned},
		{"in_transit", courier.StatusInTransit},
		{"no such status", courier.StatusUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, client.MapStatus(tt.input), tt.input)
	}
}

func TestClient_Code(t *testing.T) {
	client := newTestClient(smsa.NewMockAPIClient())
	assert.Equal(t, "smsa", client.Code())
}

func TestClient_New_WithMock(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	client := smsa.New(smsa.Config{UseMock: true}, logger, nil)

	wb, err := client.CreateWaybill(context.Background(), waybillRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, wb.WaybillID)
}
