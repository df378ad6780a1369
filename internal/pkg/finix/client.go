package finix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LucaWinkler/FlohMarkt/internal/pkg/env"
)

const defaultAPIBaseURL = "https://finix.sandbox-payments-api.com"

// Client talks to the gateway REST API with basic auth credentials.
type Client struct {
	APIBaseURL string
	Username   string
	Password   string
	Processor  string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a gateway client from environment settings.
func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL: strings.TrimRight(env.GetEnv("FINIX_API_BASE_URL", defaultAPIBaseURL), "/"),
		Username:   strings.TrimSpace(env.GetEnv("FINIX_API_USERNAME", "")),
		Password:   strings.TrimSpace(env.GetEnv("FINIX_API_PASSWORD", "")),
		Processor:  strings.TrimSpace(env.GetEnv("FINIX_PROCESSOR", "DUMMY_V1")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ProvisionMerchant creates a merchant under the given identity so the
// seller can accept payments. The gateway answers the request with the
// merchant record it created.
func (c *Client) ProvisionMerchant(ctx context.Context, identityID string) (*Merchant, error) {
	id := strings.TrimSpace(identityID)
	if id == "" {
		return nil, errors.New("identity id is required")
	}
	if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == "" {
		return nil, errors.New("FINIX_API_USERNAME/FINIX_API_PASSWORD are not configured")
	}

	reqBody, err := json.Marshal(map[string]string{"processor": c.Processor})
	if err != nil {
		return nil, err
	}

	url := c.APIBaseURL + "/identities/" + id + "/merchants"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Content-Type", "application/vnd.json+api")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("merchant provisioning failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out Merchant
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("merchant provisioning response missing merchant id")
	}
	return &out, nil
}
