// Package identity talks to the external identity provider that issues
// the marketplace session tokens. Merchant status is mirrored into the
// user's token claims so clients see it without an extra lookup.
package identity

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

// Client calls the identity provider management API.
type Client struct {
	APIBaseURL string
	APIKey     string

	HTTPClient *http.Client
}

// NewClientFromEnv builds an identity provider client from environment
// settings.
func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL: strings.TrimRight(env.GetEnv("IDENTITY_API_BASE_URL", ""), "/"),
		APIKey:     strings.TrimSpace(env.GetEnv("IDENTITY_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SyncMerchantStatus writes the merchant id and onboarding state into the
// user's app metadata. Freshly issued session tokens then carry both.
func (c *Client) SyncMerchantStatus(ctx context.Context, userID uint, merchantID, onboardingState string) error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("IDENTITY_API_BASE_URL is not configured")
	}
	if userID == 0 {
		return errors.New("user id is required")
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"app_metadata": map[string]string{
			"merchant_id":     merchantID,
			"merchant_status": onboardingState,
		},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/users/%d/metadata", c.APIBaseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("identity metadata sync failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
