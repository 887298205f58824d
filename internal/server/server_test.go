package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/wasil/courierbridge/internal/server"
	"github.com/wasil/courierbridge/internal/service"
	"github.com/wasil/courierbridge/internal/store"
	"github.com/wasil/courierbridge/pkg/courier"
	"github.com/wasil/courierbridge/pkg/courier/mock"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, couriers ...courier.Courier) (http.Handler, store.Store) {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	st := store.NewMemoryStore()
	registry := courier.NewRegistry()
	for _, c := range couriers {
		registry.Register(c)
		require.NoError(t, st.CreateCourier(context.Background(), &store.Courier{
			Code: c.Code(), Name: c.Code(), IsActive: true, SupportsCancellation: true,
		}))
	}
	svc := service.New(st, registry, logger, nil)
	srv := server.New(server.Config{Port: 8080}, svc, logger, nil)
	return srv.Router(), st
}

func createShipmentBody(courierCode string) *bytes.Buffer {
	body, _ := json.Marshal(map[string]any{
		"courier_code":     courierCode,
		"reference_number": "REF1",
		"customer_name":    "Sara Ahmed",
		"shipping_date":    "2025-04-05",
		"destination_city": "Riyadh",
		"address_line1":    "123 King Fahd Rd",
		"phone_number":     "+966500000001",
		"package_count":    1,
		"weight":           2.5,
	})
	return bytes.NewBuffer(body)
}

func createShipment(t *testing.T, router http.Handler, courierCode string) store.Shipment {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shipments/", createShipmentBody(courierCode)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var shipment store.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipment))
	return shipment
}

func TestServer_Health(t *testing.T) {
	router, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_CreateShipment(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))

	shipment := createShipment(t, router, "smsa")
	assert.NotEmpty(t, shipment.WaybillID)
	assert.Equal(t, courier.StatusPending, shipment.Status)
	assert.Equal(t, "REF1", shipment.ReferenceNumber)
}

func TestServer_CreateShipment_UnknownCourier(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shipments/", createShipmentBody("dhl")))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_CreateShipment_InvalidJSON(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shipments/", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateShipment_MissingField(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))

	body, _ := json.Marshal(map[string]any{"courier_code": "smsa"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shipments/", bytes.NewBuffer(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateShipment_ProviderFailure(t *testing.T) {
	failing := mock.New("smsa")
	failing.OnCreateWaybill = func(ctx context.Context, req *courier.WaybillRequest) (*courier.Waybill, error) {
		return nil, courier.NewAPIError("smsa", "API_ERROR", "upstream down").WithStatusCode(500)
	}
	router, st := newTestServer(t, failing)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shipments/", createShipmentBody("smsa")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Code     string          `json:"code"`
		Shipment *store.Shipment `json:"shipment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "API_ERROR", resp.Code)
	require.NotNil(t, resp.Shipment)

	// The persisted pending row survives the provider failure.
	stored, err := st.GetShipment(context.Background(), resp.Shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, courier.StatusPending, stored.Status)
	assert.Empty(t, stored.WaybillID)
}

func TestServer_GetShipment(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))
	shipment := createShipment(t, router, "smsa")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipments/"+shipment.ID.String(), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got store.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, shipment.ID, got.ID)
}

func TestServer_GetShipment_BadID(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipments/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_TrackShipment(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))
	shipment := createShipment(t, router, "smsa")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/shipments/%s/track", shipment.ID), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		CurrentStatus string `json:"current_status"`
		History       []any  `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "in_transit", resp.CurrentStatus)
	assert.Len(t, resp.History, 2)

	// History rows land in the store too.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/shipments/%s/history", shipment.ID), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var events []store.ShipmentTracking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 2)
}

func TestServer_CancelShipment(t *testing.T) {
	router, st := newTestServer(t, mock.New("smsa"))
	shipment := createShipment(t, router, "smsa")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/shipments/%s/cancel", shipment.ID), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	stored, err := st.GetShipment(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, courier.StatusCancelled, stored.Status)
}

func TestServer_CancelShipment_NotSupported(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	st := store.NewMemoryStore()
	registry := courier.NewRegistry()
	registry.Register(mock.New("smsa"))
	require.NoError(t, st.CreateCourier(context.Background(), &store.Courier{
		Code: "smsa", Name: "SMSA", IsActive: true, SupportsCancellation: false,
	}))
	svc := service.New(st, registry, logger, nil)
	router := server.New(server.Config{Port: 8080}, svc, logger, nil).Router()

	shipment := createShipment(t, router, "smsa")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/shipments/%s/cancel", shipment.ID), nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_GetLabel_Inline(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))
	shipment := createShipment(t, router, "smsa")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/shipments/%s/label", shipment.ID), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestServer_GetLabel_Hosted(t *testing.T) {
	hosted := mock.New("aramex")
	hosted.OnPrintLabel = func(ctx context.Context, waybillID string) (*courier.Label, error) {
		return &courier.Label{URL: "https://labels.example.com/" + waybillID + ".pdf"}, nil
	}
	router, _ := newTestServer(t, hosted)
	shipment := createShipment(t, router, "aramex")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/shipments/%s/label", shipment.ID), nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "https://labels.example.com/")
}

func TestServer_ListCouriers(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"), mock.New("aramex"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/couriers", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var couriers []store.Courier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &couriers))
	assert.Len(t, couriers, 2)
}

func TestServer_ListShipments(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))
	createShipment(t, router, "smsa")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipments/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var shipments []store.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipments))
	assert.Len(t, shipments, 1)
}

func TestServer_GetShipmentByReference(t *testing.T) {
	router, _ := newTestServer(t, mock.New("smsa"))
	shipment := createShipment(t, router, "smsa")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipments/?reference=REF1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got store.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, shipment.ID, got.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipments/?reference=NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
