package smsa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wasil/courierbridge/pkg/courier"
)

// HTTPAPIClient is the production implementation of APIClient using the
// SMSA REST/JSON API.
type HTTPAPIClient struct {
	baseURL   string
	passKey   string
	transport *courier.RetryingClient
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	PassKey string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	return &HTTPAPIClient{
		baseURL: cfg.BaseURL,
		passKey: cfg.PassKey,
		transport: courier.NewRetryingClient(courier.RetryingClientConfig{
			CourierCode: courierCode,
			Timeout:     cfg.Timeout,
		}),
	}
}

// CreateShipment submits a shipment via POST /createShipment.
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	req.PassKey = c.passKey

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling createShipment request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	resp, err := c.transport.Do(ctx, http.MethodPost, c.baseURL+"/createShipment", header, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading createShipment response: %w", err)
	}

	var result ShipmentResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding createShipment response: %w", err)
	}
	result.Raw = raw
	return &result, nil
}

// GetLabel retrieves the waybill label PDF via GET /getPDF.
func (c *HTTPAPIClient) GetLabel(ctx context.Context, awbNo string) ([]byte, error) {
	q := url.Values{}
	q.Set("awbNo", awbNo)
	q.Set("passKey", c.passKey)

	resp, err := c.transport.Do(ctx, http.MethodGet, c.baseURL+"/getPDF?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	return io.ReadAll(resp.Body)
}

// GetTracking retrieves tracking information via GET /getTracking.
func (c *HTTPAPIClient) GetTracking(ctx context.Context, awbNo string) (*TrackingResponse, error) {
	q := url.Values{}
	q.Set("awbNo", awbNo)
	q.Set("passkey", c.passKey)

	resp, err := c.transport.Do(ctx, http.MethodGet, c.baseURL+"/getTracking?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading getTracking response: %w", err)
	}

	var result TrackingResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding getTracking response: %w", err)
	}
	result.Raw = raw
	return &result, nil
}

// CancelShipment requests cancellation via POST /cancelShipment.
func (c *HTTPAPIClient) CancelShipment(ctx context.Context, awbNo, reason string) (*CancelResponse, error) {
	payload := map[string]any{
		"awbNo":   awbNo,
		"passKey": c.passKey,
		"reason":  reason,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling cancelShipment request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	resp, err := c.transport.Do(ctx, http.MethodPost, c.baseURL+"/cancelShipment", header, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading cancelShipment response: %w", err)
	}

	var result CancelResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding cancelShipment response: %w", err)
	}
	result.Raw = raw
	return &result, nil
}

func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := string(excerpt)
	if err := json.Unmarshal(excerpt, &body); err == nil {
		if body.Error != "" {
			msg = body.Error
		} else if body.Message != "" {
			msg = body.Message
		}
	}

	return courier.NewAPIError(courierCode, fmt.Sprintf("HTTP_%d", resp.StatusCode), msg).
		WithStatusCode(resp.StatusCode)
}

var _ APIClient = (*HTTPAPIClient)(nil)
