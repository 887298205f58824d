package aramex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/wasil/courierbridge/pkg/courier"
)

// SOAPAPIClient is the production implementation of APIClient using the
// ARAMEX SOAP/XML document protocol.
type SOAPAPIClient struct {
	baseURL    string
	clientInfo ClientInfo
	transport  *courier.RetryingClient
}

// SOAPAPIClientConfig holds configuration for the SOAP client.
type SOAPAPIClientConfig struct {
	BaseURL    string
	ClientInfo ClientInfo
	Timeout    time.Duration
}

// NewSOAPAPIClient creates a new SOAP-based API client for production use.
func NewSOAPAPIClient(cfg SOAPAPIClientConfig) *SOAPAPIClient {
	info := cfg.ClientInfo
	if info.Version == "" {
		info.Version = "v1.0"
	}

	return &SOAPAPIClient{
		baseURL:    cfg.BaseURL,
		clientInfo: info,
		transport: courier.NewRetryingClient(courier.RetryingClientConfig{
			CourierCode: courierCode,
			Timeout:     cfg.Timeout,
		}),
	}
}

// CreateShipment creates a new shipment via the ARAMEX Shipping service.
func (c *SOAPAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	soapBody, err := c.buildShipmentRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	raw, err := c.doSOAPRequest(ctx, c.shippingEndpoint(), "CreateShipments", soapBody)
	if err != nil {
		return nil, err
	}

	return parseShipmentResponse(raw)
}

// GetLabel retrieves the hosted label URL via the ARAMEX Shipping service.
func (c *SOAPAPIClient) GetLabel(ctx context.Context, waybillID string) (*LabelResponse, error) {
	soapBody, err := c.buildLabelRequest(waybillID)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	raw, err := c.doSOAPRequest(ctx, c.shippingEndpoint(), "PrintLabel", soapBody)
	if err != nil {
		return nil, err
	}

	return parseLabelResponse(raw, waybillID)
}

// GetTracking retrieves tracking updates via the ARAMEX Tracking service.
func (c *SOAPAPIClient) GetTracking(ctx context.Context, waybillID string) (*TrackingResponse, error) {
	soapBody, err := c.buildTrackingRequest(waybillID)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	raw, err := c.doSOAPRequest(ctx, c.trackingEndpoint(), "TrackShipments", soapBody)
	if err != nil {
		return nil, err
	}

	return parseTrackingResponse(raw, waybillID)
}

// CancelShipment requests cancellation via the ARAMEX Shipping service.
func (c *SOAPAPIClient) CancelShipment(ctx context.Context, waybillID, comments string) (*CancelResponse, error) {
	soapBody, err := c.buildCancelRequest(waybillID, comments)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	raw, err := c.doSOAPRequest(ctx, c.shippingEndpoint(), "CancelShipment", soapBody)
	if err != nil {
		return nil, err
	}

	return parseCancelResponse(raw)
}

// ============================================================================
// SOAP Request Helpers
// ============================================================================

func (c *SOAPAPIClient) doSOAPRequest(ctx context.Context, endpoint, action string, body []byte) ([]byte, error) {
	header := http.Header{}
	header.Set("Content-Type", "text/xml; charset=utf-8")
	header.Set("SOAPAction", fmt.Sprintf("http://ws.aramex.net/ShippingAPI/v1/Service_1_0/%s", action))

	resp, err := c.transport.Do(ctx, http.MethodPost, endpoint, header, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", action, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseSOAPError(raw, resp.StatusCode)
	}

	return raw, nil
}

func (c *SOAPAPIClient) shippingEndpoint() string {
	return c.baseURL + "/ShippingAPI.V2/Shipping/Service_1_0.svc"
}

func (c *SOAPAPIClient) trackingEndpoint() string {
	return c.baseURL + "/ShippingAPI.V2/Tracking/Service_1_0.svc"
}

// ============================================================================
// SOAP Request Builders
// ============================================================================

const soapEnvelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:v1="http://ws.aramex.net/ShippingAPI/v1/">
  <soap:Body>
    {{.Body}}
  </soap:Body>
</soap:Envelope>`

const clientInfoTemplate = `<v1:ClientInfo>
        <v1:UserName>{{.ClientInfo.UserName}}</v1:UserName>
        <v1:Password>{{.ClientInfo.Password}}</v1:Password>
        <v1:Version>{{.ClientInfo.Version}}</v1:Version>
        <v1:AccountNumber>{{.ClientInfo.AccountNumber}}</v1:AccountNumber>
        <v1:AccountPin>{{.ClientInfo.AccountPin}}</v1:AccountPin>
        <v1:AccountEntity>{{.ClientInfo.AccountEntity}}</v1:AccountEntity>
        <v1:AccountCountryCode>{{.ClientInfo.AccountCountryCode}}</v1:AccountCountryCode>
      </v1:ClientInfo>
      <v1:Transaction>
        <v1:Reference1>{{.RequestRef}}</v1:Reference1>
      </v1:Transaction>`

func (c *SOAPAPIClient) buildShipmentRequest(req *ShipmentRequest) ([]byte, error) {
	bodyTmpl := `<v1:ShipmentCreationRequest>
      ` + clientInfoTemplate + `
      <v1:Shipments>
        <v1:Shipment>
          <v1:Reference1>{{.Request.Reference}}</v1:Reference1>
          <v1:Consignee>
            <v1:PartyAddress>
              <v1:Line1>{{.Request.Consignee.Line1}}</v1:Line1>
              <v1:Line2>{{.Request.Consignee.Line2}}</v1:Line2>
              <v1:City>{{.Request.Consignee.City}}</v1:City>
              <v1:PostCode>{{.Request.Consignee.PostCode}}</v1:PostCode>
              <v1:POBox>{{.Request.Consignee.POBox}}</v1:POBox>
              <v1:CountryCode>{{.Request.Consignee.CountryCode}}</v1:CountryCode>
            </v1:PartyAddress>
            <v1:Contact>
              <v1:PersonName>{{.Request.Consignee.Name}}</v1:PersonName>
              <v1:CompanyName>{{.Request.Consignee.CompanyName}}</v1:CompanyName>
              <v1:PhoneNumber1>{{.Request.Consignee.PhoneNumber}}</v1:PhoneNumber1>
              <v1:CellPhone>{{.Request.Consignee.CellPhone}}</v1:CellPhone>
              <v1:EmailAddress>{{.Request.Consignee.Email}}</v1:EmailAddress>
            </v1:Contact>
          </v1:Consignee>
          <v1:ShippingDateTime>{{.Request.Details.ShippingDateTime}}</v1:ShippingDateTime>
          <v1:Details>
            <v1:ActualWeight>
              <v1:Value>{{.Weight}}</v1:Value>
              <v1:Unit>{{.Request.Details.WeightUnit}}</v1:Unit>
            </v1:ActualWeight>
            <v1:NumberOfPieces>{{.Request.Details.NumberOfPieces}}</v1:NumberOfPieces>
            <v1:ProductGroup>{{.Request.Details.ProductGroup}}</v1:ProductGroup>
            <v1:ProductType>{{.Request.Details.ProductType}}</v1:ProductType>
            <v1:PaymentType>{{.Request.Details.PaymentType}}</v1:PaymentType>
            <v1:DescriptionOfGoods>{{.Request.Details.DescriptionOfGoods}}</v1:DescriptionOfGoods>{{if .COD}}
            <v1:CashOnDeliveryAmount>
              <v1:Value>{{.COD}}</v1:Value>
              <v1:CurrencyCode>{{.Request.Details.CODCurrencyCode}}</v1:CurrencyCode>
            </v1:CashOnDeliveryAmount>{{end}}
          </v1:Details>
        </v1:Shipment>
      </v1:Shipments>
      <v1:LabelInfo>
        <v1:ReportID>9201</v1:ReportID>
        <v1:ReportType>URL</v1:ReportType>
      </v1:LabelInfo>
    </v1:ShipmentCreationRequest>`

	data := struct {
		ClientInfo ClientInfo
		RequestRef string
		Request    *ShipmentRequest
		Weight     string
		COD        string
	}{
		ClientInfo: c.clientInfo,
		RequestRef: requestRef(),
		Request:    req,
		Weight:     strconv.FormatFloat(req.Details.ActualWeight, 'f', -1, 64),
	}
	if req.Details.CODAmount > 0 {
		data.COD = strconv.FormatFloat(req.Details.CODAmount, 'f', 2, 64)
	}

	return buildEnvelope(bodyTmpl, data)
}

func (c *SOAPAPIClient) buildLabelRequest(waybillID string) ([]byte, error) {
	bodyTmpl := `<v1:LabelPrintingRequest>
      ` + clientInfoTemplate + `
      <v1:ShipmentNumber>{{.WaybillID}}</v1:ShipmentNumber>
      <v1:LabelInfo>
        <v1:ReportID>9201</v1:ReportID>
        <v1:ReportType>URL</v1:ReportType>
      </v1:LabelInfo>
    </v1:LabelPrintingRequest>`

	data := struct {
		ClientInfo ClientInfo
		RequestRef string
		WaybillID  string
	}{ClientInfo: c.clientInfo, RequestRef: requestRef(), WaybillID: waybillID}

	return buildEnvelope(bodyTmpl, data)
}

func (c *SOAPAPIClient) buildTrackingRequest(waybillID string) ([]byte, error) {
	bodyTmpl := `<v1:ShipmentTrackingRequest>
      ` + clientInfoTemplate + `
      <v1:Shipments>
        <v1:string>{{.WaybillID}}</v1:string>
      </v1:Shipments>
      <v1:GetLastTrackingUpdateOnly>false</v1:GetLastTrackingUpdateOnly>
    </v1:ShipmentTrackingRequest>`

	data := struct {
		ClientInfo ClientInfo
		RequestRef string
		WaybillID  string
	}{ClientInfo: c.clientInfo, RequestRef: requestRef(), WaybillID: waybillID}

	return buildEnvelope(bodyTmpl, data)
}

func (c *SOAPAPIClient) buildCancelRequest(waybillID, comments string) ([]byte, error) {
	bodyTmpl := `<v1:ShipmentCancellationRequest>
      ` + clientInfoTemplate + `
      <v1:ShipmentNumber>{{.WaybillID}}</v1:ShipmentNumber>
      <v1:Comments>{{.Comments}}</v1:Comments>
    </v1:ShipmentCancellationRequest>`

	data := struct {
		ClientInfo ClientInfo
		RequestRef string
		WaybillID  string
		Comments   string
	}{ClientInfo: c.clientInfo, RequestRef: requestRef(), WaybillID: waybillID, Comments: comments}

	return buildEnvelope(bodyTmpl, data)
}

func buildEnvelope(bodyTemplate string, data interface{}) ([]byte, error) {
	bodyTmpl, err := template.New("body").Parse(bodyTemplate)
	if err != nil {
		return nil, err
	}

	var bodyBuf bytes.Buffer
	if err := bodyTmpl.Execute(&bodyBuf, data); err != nil {
		return nil, err
	}

	envTmpl, err := template.New("envelope").Parse(soapEnvelopeTemplate)
	if err != nil {
		return nil, err
	}

	envData := struct {
		Body string
	}{Body: bodyBuf.String()}

	var envBuf bytes.Buffer
	if err := envTmpl.Execute(&envBuf, envData); err != nil {
		return nil, err
	}

	return envBuf.Bytes(), nil
}

// requestRef generates the per-request Transaction reference the
// provider echoes back in its logs.
func requestRef() string {
	return "req-" + uuid.NewString()
}

// ============================================================================
// SOAP Response Parsing
// ============================================================================

func parseSOAPError(raw []byte, statusCode int) error {
	if env, err := parseXMLTree(raw); err == nil {
		if fault := env.lookup("Body", "Fault"); fault != nil {
			return courier.NewAPIError(courierCode,
				fault.childText("faultcode"),
				fault.childText("faultstring"),
			).WithStatusCode(statusCode)
		}
	}

	return courier.NewAPIError(courierCode,
		fmt.Sprintf("HTTP_%d", statusCode),
		excerpt(raw),
	).WithStatusCode(statusCode)
}

func parseShipmentResponse(raw []byte) (*ShipmentResponse, error) {
	env, err := parseXMLTree(raw)
	if err != nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", err.Error())
	}

	resp := env.lookup("Body", "ShipmentCreationResponse")
	if resp == nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", "no shipment data in response")
	}

	notifications := collectNotifications(resp)
	if hasErrors(resp) {
		return nil, notificationError(notifications, "shipment creation failed")
	}

	processed := resp.lookup("Shipments", "ProcessedShipment")
	if processed == nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", "no processed shipment in response")
	}

	return &ShipmentResponse{
		WaybillID:     processed.lookupText("ID"),
		LabelURL:      processed.lookupText("ShipmentLabel", "LabelURL"),
		Notifications: notifications,
		Raw:           raw,
	}, nil
}

func parseLabelResponse(raw []byte, waybillID string) (*LabelResponse, error) {
	env, err := parseXMLTree(raw)
	if err != nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", err.Error())
	}

	resp := env.lookup("Body", "LabelPrintingResponse")
	if resp == nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", "no label data in response")
	}

	if hasErrors(resp) {
		return nil, notificationError(collectNotifications(resp), "label printing failed")
	}

	labelURL := resp.lookupText("ShipmentLabel", "LabelURL")
	if labelURL == "" {
		return nil, courier.NewAPIError(courierCode, "LABEL_NOT_FOUND", "no label URL in response")
	}

	return &LabelResponse{
		WaybillID: waybillID,
		LabelURL:  labelURL,
		Raw:       raw,
	}, nil
}

func parseTrackingResponse(raw []byte, waybillID string) (*TrackingResponse, error) {
	env, err := parseXMLTree(raw)
	if err != nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", err.Error())
	}

	resp := env.lookup("Body", "ShipmentTrackingResponse")
	if resp == nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", "no tracking data in response")
	}

	if hasErrors(resp) {
		return nil, notificationError(collectNotifications(resp), "tracking lookup failed")
	}

	results := resp.collect("TrackingResult")
	updates := make([]TrackingUpdate, 0, len(results))
	for _, r := range results {
		if wb := r.childText("WaybillNumber"); wb != "" && wb != waybillID {
			continue
		}
		updates = append(updates, TrackingUpdate{
			UpdateCode:        r.childText("UpdateCode"),
			UpdateDescription: r.childText("UpdateDescription"),
			UpdateLocation:    r.childText("UpdateLocation"),
			UpdateDateTime:    r.childText("UpdateDateTime"),
			Comments:          r.childText("Comments"),
		})
	}

	return &TrackingResponse{
		WaybillID: waybillID,
		Updates:   updates,
		Raw:       raw,
	}, nil
}

func parseCancelResponse(raw []byte) (*CancelResponse, error) {
	env, err := parseXMLTree(raw)
	if err != nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", err.Error())
	}

	resp := env.lookup("Body", "ShipmentCancellationResponse")
	if resp == nil {
		return nil, courier.NewAPIError(courierCode, "PARSE_ERROR", "no cancellation data in response")
	}

	// A HasErrors flag on cancellation is a provider refusal, reported
	// on the result rather than raised.
	if hasErrors(resp) {
		return &CancelResponse{
			Success: false,
			Message: notificationMessage(collectNotifications(resp), "cancellation refused"),
			Raw:     raw,
		}, nil
	}

	msg := resp.lookupText("Message")
	if msg == "" {
		msg = "Shipment cancelled successfully"
	}
	return &CancelResponse{Success: true, Message: msg, Raw: raw}, nil
}

// hasErrors reports the provider failure flag. Success is signaled by
// the absence of HasErrors=true anywhere in the response.
func hasErrors(resp *xmlNode) bool {
	for _, flag := range resp.collect("HasErrors") {
		if flag.Text() == "true" {
			return true
		}
	}
	return false
}

func collectNotifications(resp *xmlNode) []Notification {
	var out []Notification
	for _, n := range resp.collect("Notification") {
		code := n.childText("Code")
		msg := n.childText("Message")
		if code == "" && msg == "" {
			continue
		}
		out = append(out, Notification{Code: code, Message: msg})
	}
	return out
}

func notificationError(notifications []Notification, fallback string) error {
	if len(notifications) == 0 {
		return courier.NewAPIError(courierCode, "PROVIDER_ERROR", fallback)
	}
	return courier.NewAPIError(courierCode, notifications[0].Code, notificationMessage(notifications, fallback))
}

func notificationMessage(notifications []Notification, fallback string) string {
	if len(notifications) == 0 {
		return fallback
	}
	parts := make([]string, len(notifications))
	for i, n := range notifications {
		parts[i] = n.Message
	}
	return joinNonEmpty(parts, "; ", fallback)
}

func joinNonEmpty(parts []string, sep, fallback string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	if out == "" {
		return fallback
	}
	return out
}

func excerpt(raw []byte) string {
	const limit = 512
	if len(raw) > limit {
		return string(raw[:limit])
	}
	return string(raw)
}

var _ APIClient = (*SOAPAPIClient)(nil)
