package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fryyyyy/zeekr-hass/internal/config"
	"github.com/fryyyyy/zeekr-hass/internal/netutil"
	"github.com/sirupsen/logrus"
)

// Client talks to the Zeekr cloud API. Every request after login carries a
// bearer token plus an HMAC-SHA256 signature over method, path, timestamp
// and body, keyed by the account's HMAC secret.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger

	username  string
	password  string
	accessKey string
	secretKey string
	token     string
}

// NewClient creates a Zeekr cloud API client.
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    cfg.APIBaseURL,
		httpClient: netutil.NewHTTPClient(config.APITimeout, logger),
		logger:     logger,
		username:   cfg.Username,
		password:   cfg.Password,
		accessKey:  cfg.HmacAccessKey,
		secretKey:  cfg.HmacSecretKey,
	}
}

// Login authenticates and stores the session token for subsequent calls.
func (c *Client) Login(ctx context.Context) error {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/account/session", loginRequest{
		Identity: c.username,
		Password: c.password,
	}, &resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.AccessToken == "" {
		return fmt.Errorf("login: no access token in response (code=%s message=%s)", resp.Code, resp.Message)
	}
	c.token = resp.AccessToken
	c.logger.Debug("Zeekr API login succeeded")
	return nil
}

// VehicleList fetches the vehicles bound to the account.
func (c *Client) VehicleList(ctx context.Context) ([]*Vehicle, error) {
	var resp vehicleListResponse
	if err := c.do(ctx, http.MethodGet, "/vehicle/list", nil, &resp); err != nil {
		return nil, fmt.Errorf("vehicle list: %w", err)
	}

	vehicles := make([]*Vehicle, 0, len(resp.List))
	for _, entry := range resp.List {
		vehicles = append(vehicles, &Vehicle{
			vin:    entry.VIN,
			model:  entry.ModelName,
			client: c,
		})
	}
	c.logger.WithField("count", len(vehicles)).Debug("Fetched vehicle list")
	return vehicles, nil
}

// do issues one signed request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.accessKey)
	req.Header.Set("X-Api-Timestamp", ts)
	req.Header.Set("X-Api-Signature", c.sign(method, path, ts, payload))
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// sign computes the HMAC-SHA256 request signature over the canonical string
// "<method>\n<path>\n<timestamp>\n<sha256(body)>".
func (c *Client) sign(method, path, ts string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	canonical := method + "\n" + path + "\n" + ts + "\n" + base64.StdEncoding.EncodeToString(bodyHash[:])

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func truncate(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
