package finix

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(serverURL string) *Client {
	return &Client{
		APIBaseURL: serverURL,
		Username:   "US_test",
		Password:   "sk_test",
		Processor:  "DUMMY_V1",
		HTTPClient: http.DefaultClient,
	}
}

func TestProvisionMerchant_SendsProcessorWithBasicAuth(t *testing.T) {
	var gotPath, gotContentType, gotBody string
	var gotUser, gotPass string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotUser, gotPass, _ = r.BasicAuth()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"MU_new","identity":"ID_1","onboarding_state":"PROVISIONING"}`))
	}))
	defer server.Close()

	merchant, err := testClient(server.URL).ProvisionMerchant(context.Background(), "ID_1")

	require.NoError(t, err)
	assert.Equal(t, "/identities/ID_1/merchants", gotPath)
	assert.Equal(t, "application/vnd.json+api", gotContentType)
	assert.Equal(t, "US_test", gotUser)
	assert.Equal(t, "sk_test", gotPass)
	assert.JSONEq(t, `{"processor":"DUMMY_V1"}`, gotBody)
	assert.Equal(t, "MU_new", merchant.ID)
	assert.Equal(t, "PROVISIONING", merchant.OnboardingState)
}

func TestProvisionMerchant_GatewayErrorSurfacesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"identity not underwritten"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).ProvisionMerchant(context.Background(), "ID_1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=422")
	assert.Contains(t, err.Error(), "identity not underwritten")
}

func TestProvisionMerchant_ResponseWithoutMerchantIDIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"identity":"ID_1"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).ProvisionMerchant(context.Background(), "ID_1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing merchant id")
}

func TestProvisionMerchant_RequiresIdentityID(t *testing.T) {
	_, err := testClient("http://unused").ProvisionMerchant(context.Background(), "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity id is required")
}

func TestProvisionMerchant_RequiresCredentials(t *testing.T) {
	c := testClient("http://unused")
	c.Username = ""

	_, err := c.ProvisionMerchant(context.Background(), "ID_1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
