package bundledir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal"
)

var _ avrasignal.Directory = (*Client)(nil)

// Client talks to a key directory server over HTTP. It implements
// avrasignal.Directory, so it can be handed straight to avrasignal.NewClient.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Publish(ctx context.Context, upload *avrasignal.PreKeyUpload) error {
	body, err := json.Marshal(upload)
	if err != nil {
		return fmt.Errorf("failed to marshal key upload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+"/v1/keys", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to prepare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send key upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}
	return nil
}

func (c *Client) Fetch(ctx context.Context, serviceID uuid.UUID, deviceID int) (*avrasignal.PreKeyBundle, error) {
	url := fmt.Sprintf("%s/v1/keys/%s/%d", c.BaseURL, serviceID, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key bundle: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, avrasignal.ErrBundleNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp)
	}
	var bundle avrasignal.PreKeyBundle
	err = json.NewDecoder(resp.Body).Decode(&bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key bundle: %w", err)
	}
	return &bundle, nil
}

// responseError digs the server's error message out of the body, if there is
// one.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if message := gjson.GetBytes(body, "error"); message.Exists() {
		return fmt.Errorf("directory returned HTTP %d: %s", resp.StatusCode, message.Str)
	}
	return fmt.Errorf("directory returned HTTP %d", resp.StatusCode)
}
