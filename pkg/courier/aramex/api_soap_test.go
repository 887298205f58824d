package aramex

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasil/courierbridge/pkg/courier"
)

const creationResponseDoc = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <ShipmentCreationResponse xmlns="http://ws.aramex.net/ShippingAPI/v1/">
      <HasErrors>false</HasErrors>
      <Shipments>
        <ProcessedShipment>
          <ID>ARAMEX12345678</ID>
          <HasErrors>false</HasErrors>
          <ShipmentLabel>
            <LabelURL>https://labels.example.com/ARAMEX12345678.pdf</LabelURL>
          </ShipmentLabel>
        </ProcessedShipment>
      </Shipments>
    </ShipmentCreationResponse>
  </s:Body>
</s:Envelope>`

const creationErrorDoc = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <ShipmentCreationResponse xmlns="http://ws.aramex.net/ShippingAPI/v1/">
      <HasErrors>true</HasErrors>
      <Notifications>
        <Notification>
          <Code>ERR52</Code>
          <Message>Account details are invalid</Message>
        </Notification>
      </Notifications>
    </ShipmentCreationResponse>
  </s:Body>
</s:Envelope>`

const trackingResponseDoc = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <ShipmentTrackingResponse xmlns="http://ws.aramex.net/ShippingAPI/v1/">
      <HasErrors>false</HasErrors>
      <TrackingResults>
        <TrackingResult>
          <WaybillNumber>ARAMEX12345678</WaybillNumber>
          <UpdateCode>SH014</UpdateCode>
          <UpdateDescription>Out for delivery</UpdateDescription>
          <UpdateLocation>Riyadh</UpdateLocation>
          <UpdateDateTime>2025-04-06T08:00:00Z</UpdateDateTime>
        </TrackingResult>
        <TrackingResult>
          <WaybillNumber>ARAMEX12345678</WaybillNumber>
          <UpdateCode>SH005</UpdateCode>
          <UpdateDescription>Shipment picked up</UpdateDescription>
          <UpdateLocation>Jeddah</UpdateLocation>
          <UpdateDateTime>2025-04-05T15:00:00Z</UpdateDateTime>
        </TrackingResult>
      </TrackingResults>
    </ShipmentTrackingResponse>
  </s:Body>
</s:Envelope>`

const cancellationRefusalDoc = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <ShipmentCancellationResponse xmlns="http://ws.aramex.net/ShippingAPI/v1/">
      <HasErrors>true</HasErrors>
      <Notifications>
        <Notification>
          <Code>ERR88</Code>
          <Message>Shipment already dispatched</Message>
        </Notification>
      </Notifications>
    </ShipmentCancellationResponse>
  </s:Body>
</s:Envelope>`

func asAPIError(t *testing.T, err error) *courier.APIError {
	t.Helper()
	var apiErr *courier.APIError
	require.True(t, errors.As(err, &apiErr))
	return apiErr
}

func TestParseShipmentResponse_Success(t *testing.T) {
	resp, err := parseShipmentResponse([]byte(creationResponseDoc))

	require.NoError(t, err)
	assert.Equal(t, "ARAMEX12345678", resp.WaybillID)
	assert.Equal(t, "https://labels.example.com/ARAMEX12345678.pdf", resp.LabelURL)
}

func TestParseShipmentResponse_HasErrors(t *testing.T) {
	_, err := parseShipmentResponse([]byte(creationErrorDoc))

	require.Error(t, err)
	apiErr := asAPIError(t, err)
	assert.Equal(t, "ERR52", apiErr.Code)
	assert.Contains(t, apiErr.Message, "Account details are invalid")
}

func TestParseTrackingResponse(t *testing.T) {
	resp, err := parseTrackingResponse([]byte(trackingResponseDoc), "ARAMEX12345678")

	require.NoError(t, err)
	require.Len(t, resp.Updates, 2)
	assert.Equal(t, "SH014", resp.Updates[0].UpdateCode)
	assert.Equal(t, "Out for delivery", resp.Updates[0].UpdateDescription)
	assert.Equal(t, "Riyadh", resp.Updates[0].UpdateLocation)
	assert.Equal(t, "SH005", resp.Updates[1].UpdateCode)
}

func TestParseCancelResponse_Refusal(t *testing.T) {
	resp, err := parseCancelResponse([]byte(cancellationRefusalDoc))

	// A provider refusal is a result, not an error.
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Shipment already dispatched")
}

func TestParseSOAPError_Fault(t *testing.T) {
	doc := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
	  <s:Body>
	    <s:Fault>
	      <faultcode>s:Client</faultcode>
	      <faultstring>Invalid request</faultstring>
	    </s:Fault>
	  </s:Body>
	</s:Envelope>`

	err := parseSOAPError([]byte(doc), http.StatusBadRequest)

	apiErr := asAPIError(t, err)
	assert.Equal(t, "s:Client", apiErr.Code)
	assert.Equal(t, "Invalid request", apiErr.Message)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestSOAPAPIClient_CreateShipment_SendsClientInfo(t *testing.T) {
	var gotBody, gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotAction = r.Header.Get("SOAPAction")
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(creationResponseDoc))
	}))
	defer srv.Close()

	client := NewSOAPAPIClient(SOAPAPIClientConfig{
		BaseURL: srv.URL,
		ClientInfo: ClientInfo{
			UserName:           "ops@example.com",
			Password:           "secret",
			AccountNumber:      "20016",
			AccountPin:         "331421",
			AccountEntity:      "RUH",
			AccountCountryCode: "SA",
		},
	})

	resp, err := client.CreateShipment(context.Background(), &ShipmentRequest{
		Reference: "REF1",
		Consignee: Party{Name: "Sara Khalid", City: "Riyadh", CountryCode: "SA"},
		Details:   ShipmentDetails{NumberOfPieces: 1, ActualWeight: 2.5, WeightUnit: "KG"},
	})

	require.NoError(t, err)
	assert.Equal(t, "ARAMEX12345678", resp.WaybillID)
	assert.Contains(t, gotAction, "CreateShipments")
	assert.Contains(t, gotBody, "<v1:UserName>ops@example.com</v1:UserName>")
	assert.Contains(t, gotBody, "<v1:AccountPin>331421</v1:AccountPin>")
	assert.Contains(t, gotBody, "<v1:AccountEntity>RUH</v1:AccountEntity>")
	assert.Contains(t, gotBody, "<v1:Reference1>REF1</v1:Reference1>")

	// The Transaction reference is a fresh UUID per request.
	m := regexp.MustCompile(`<v1:Reference1>req-([0-9a-f-]+)</v1:Reference1>`).FindStringSubmatch(gotBody)
	require.Len(t, m, 2)
	_, err = uuid.Parse(m[1])
	assert.NoError(t, err)
}

func TestSOAPAPIClient_SurfacesFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault><faultcode>s:Client</faultcode><faultstring>bad envelope</faultstring></s:Fault></s:Body></s:Envelope>`))
	}))
	defer srv.Close()

	client := NewSOAPAPIClient(SOAPAPIClientConfig{BaseURL: srv.URL})

	_, err := client.GetTracking(context.Background(), "ARAMEX12345678")

	apiErr := asAPIError(t, err)
	assert.Equal(t, "s:Client", apiErr.Code)
}
