package serverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

// Client talks to the session service. It implements the machine's
// RemoteStateStore, AgeVerifier and DispenseGateway collaborators.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type saveStateResponse struct {
	Success bool `json:"success"`
}

type loadStateResponse struct {
	Success bool                          `json:"success"`
	State   *interfaces.SessionProjection `json:"state,omitempty"`
}

type startPourRequest struct {
	Token string                   `json:"token"`
	Items []interfaces.CartItemDTO `json:"items"`
}

type startPourResponse struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"order_number"`
}

type pourStatusResponse struct {
	Status          domain.PourStatus `json:"status"`
	ProgressPercent int               `json:"progress_percent"`
	Message         *string           `json:"message,omitempty"`
}

type verifyAgeRequest struct {
	Token        string `json:"token"`
	Method       string `json:"method"`
	Payload      []byte `json:"payload"`
	BeverageKind string `json:"beverage_kind,omitempty"`
}

type verifyAgeResponse struct {
	Verified     bool   `json:"verified"`
	EstimatedAge int    `json:"estimated_age,omitempty"`
	Message      string `json:"message,omitempty"`
}

type clientLogRequest struct {
	Level   string `json:"level"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Push stores the session projection on the server.
func (c *Client) Push(ctx context.Context, proj interfaces.SessionProjection) error {
	var resp saveStateResponse
	if err := c.postJSON(ctx, "/session/state", proj, &resp, http.StatusOK); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("server rejected session state")
	}
	return nil
}

// Pull fetches the stored projection for token, reporting found=false when
// the server has none.
func (c *Client) Pull(ctx context.Context, token string) (*interfaces.SessionProjection, bool, error) {
	endpoint := "/session/state?token=" + url.QueryEscape(token)
	var resp loadStateResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, false, err
	}
	if !resp.Success || resp.State == nil {
		return nil, false, nil
	}
	return resp.State, true, nil
}

// Verify submits a verification attempt.
func (c *Client) Verify(ctx context.Context, cmd interfaces.VerifyAgeCommand) (*interfaces.VerifyAgeResult, error) {
	req := verifyAgeRequest{
		Token:        cmd.Token,
		Method:       string(cmd.Method),
		Payload:      cmd.Payload,
		BeverageKind: string(cmd.Kind),
	}

	var resp verifyAgeResponse
	if err := c.postJSON(ctx, "/verify/age", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}

	return &interfaces.VerifyAgeResult{
		Verified:     resp.Verified,
		EstimatedAge: resp.EstimatedAge,
		Message:      resp.Message,
	}, nil
}

// StartPour asks the server to begin dispensing the cart. An HTTP 403 maps
// to domain.ErrVerificationRequired.
func (c *Client) StartPour(ctx context.Context, token string, items []interfaces.CartItemDTO) (string, error) {
	body, err := json.Marshal(startPourRequest{Token: token, Items: items})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/dispense/start", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusForbidden {
		return "", domain.ErrVerificationRequired
	}
	if httpResp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: unexpected status %d", domain.ErrTransportFailure, httpResp.StatusCode)
	}

	var resp startPourResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	if !resp.Success || resp.OrderNumber == "" {
		return "", fmt.Errorf("%w: server did not assign an order number", domain.ErrTransportFailure)
	}
	return resp.OrderNumber, nil
}

// PourStatus fetches the current progress of a pour.
func (c *Client) PourStatus(ctx context.Context, orderNumber string) (*interfaces.DispenseUpdate, error) {
	endpoint := "/dispense/status?order=" + url.QueryEscape(orderNumber)
	var resp pourStatusResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	update := &interfaces.DispenseUpdate{
		Status:          resp.Status,
		ProgressPercent: resp.ProgressPercent,
	}
	if resp.Message != nil {
		update.Message = *resp.Message
	}
	return update, nil
}

// Log forwards a diagnostic entry to the server sink. Best effort.
func (c *Client) Log(ctx context.Context, level, source, message string) {
	body, err := json.Marshal(clientLogRequest{Level: level, Source: source, Message: message})
	if err != nil {
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/log", bytes.NewReader(body))
	if err != nil {
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if httpResp, err := c.http.Do(httpReq); err == nil {
		httpResp.Body.Close()
	}
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out interface{}, wantStatus int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != wantStatus {
		return fmt.Errorf("%w: unexpected status %d for %s", domain.ErrTransportFailure, httpResp.StatusCode, endpoint)
	}
	return json.NewDecoder(httpResp.Body).Decode(out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d for %s", domain.ErrTransportFailure, httpResp.StatusCode, endpoint)
	}
	return json.NewDecoder(httpResp.Body).Decode(out)
}
