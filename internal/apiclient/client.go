// Package apiclient talks to the order backend over its REST contract.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tableflow/api/internal/model"
)

// KDSCookie is the cookie carrying the kitchen display token.
const KDSCookie = "kds_token"

// Credentials authorize kitchen calls. Either field may be empty.
type Credentials struct {
	KDSToken   string
	StaffToken string
}

// Client calls the order backend. BaseURL includes the /api prefix.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// StaffToken, when set, is sent as a bearer token on admin calls.
	StaffToken string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// --- Customer ---

// StartSession handles POST customer/session/start.
func (c *Client) StartSession(ctx context.Context, branchID, tableID int64) (model.GuestSession, error) {
	var out model.GuestSession
	err := c.do(ctx, "start session", http.MethodPost, "/customer/session/start",
		model.StartSessionRequest{BranchID: branchID, TableID: tableID}, Credentials{}, &out)
	return out, err
}

// EndSession handles POST customer/session/end.
func (c *Client) EndSession(ctx context.Context, guestSessionID string) error {
	return c.do(ctx, "end session", http.MethodPost, "/customer/session/end",
		model.EndSessionRequest{GuestSessionID: guestSessionID}, Credentials{}, nil)
}

// CustomerMenu handles GET customer/menu?branchId&tableId.
func (c *Client) CustomerMenu(ctx context.Context, branchID, tableID int64) ([]model.MenuItem, error) {
	q := url.Values{}
	q.Set("branchId", fmt.Sprint(branchID))
	q.Set("tableId", fmt.Sprint(tableID))
	var out []model.MenuItem
	if err := c.do(ctx, "load menu", http.MethodGet, "/customer/menu?"+q.Encode(), nil, Credentials{}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.MenuItem{}
	}
	return out, nil
}

// SubmitOrder handles POST customer/orders.
func (c *Client) SubmitOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	var out model.Order
	err := c.do(ctx, "submit order", http.MethodPost, "/customer/orders", req, Credentials{}, &out)
	return out, err
}

// --- Kitchen ---

// KitchenOrders handles GET branches/{branchId}/kitchen/orders.
func (c *Client) KitchenOrders(ctx context.Context, branchID int64, cred Credentials) ([]model.Order, error) {
	var out []model.Order
	path := fmt.Sprintf("/branches/%d/kitchen/orders", branchID)
	if err := c.do(ctx, "list kitchen orders", http.MethodGet, path, nil, cred, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Order{}
	}
	return out, nil
}

// AcceptOrder handles POST branches/{branchId}/kitchen/orders/{orderId}/accept.
func (c *Client) AcceptOrder(ctx context.Context, branchID, orderID int64, cred Credentials) (model.Order, error) {
	var out model.Order
	path := fmt.Sprintf("/branches/%d/kitchen/orders/%d/accept", branchID, orderID)
	err := c.do(ctx, "accept order", http.MethodPost, path, nil, cred, &out)
	return out, err
}

// MarkReady handles POST branches/{branchId}/kitchen/orders/{orderId}/ready.
func (c *Client) MarkReady(ctx context.Context, branchID, orderID int64, cred Credentials) (model.Order, error) {
	var out model.Order
	path := fmt.Sprintf("/branches/%d/kitchen/orders/%d/ready", branchID, orderID)
	err := c.do(ctx, "mark order ready", http.MethodPost, path, nil, cred, &out)
	return out, err
}

// VerifyPin handles POST branches/{branchId}/kitchen/pin/verify.
func (c *Client) VerifyPin(ctx context.Context, branchID int64, pin string) (model.KDSLogin, error) {
	var out model.KDSLogin
	path := fmt.Sprintf("/branches/%d/kitchen/pin/verify", branchID)
	err := c.do(ctx, "verify kitchen pin", http.MethodPost, path, model.VerifyPinRequest{Pin: pin}, Credentials{}, &out)
	return out, err
}

// --- Kitchen PIN administration (staff JWT) ---

func (c *Client) KitchenPinInfo(ctx context.Context, branchID int64) (model.KitchenPinInfo, error) {
	var out model.KitchenPinInfo
	path := fmt.Sprintf("/branches/%d/kitchen/pin", branchID)
	err := c.do(ctx, "get kitchen pin", http.MethodGet, path, nil, Credentials{StaffToken: c.StaffToken}, &out)
	return out, err
}

func (c *Client) GenerateKitchenPin(ctx context.Context, branchID int64) (model.KitchenPinInfo, error) {
	var out model.KitchenPinInfo
	path := fmt.Sprintf("/branches/%d/kitchen/pin/generate", branchID)
	err := c.do(ctx, "generate kitchen pin", http.MethodPost, path, nil, Credentials{StaffToken: c.StaffToken}, &out)
	return out, err
}

func (c *Client) SetKitchenPin(ctx context.Context, branchID int64, pin string) (model.KitchenPinInfo, error) {
	var out model.KitchenPinInfo
	path := fmt.Sprintf("/branches/%d/kitchen/pin", branchID)
	err := c.do(ctx, "set kitchen pin", http.MethodPost, path, model.VerifyPinRequest{Pin: pin}, Credentials{StaffToken: c.StaffToken}, &out)
	return out, err
}

// --- Helpers ---

// do sends one request and decodes a 2xx JSON body into out (when non-nil).
// Non-2xx responses become *StatusError; transport failures wrap ErrTransport.
func (c *Client) do(ctx context.Context, op, method, path string, body any, cred Credentials, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred.KDSToken != "" {
		req.AddCookie(&http.Cookie{Name: KDSCookie, Value: cred.KDSToken})
	}
	if cred.StaffToken != "" {
		req.Header.Set("Authorization", "Bearer "+cred.StaffToken)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeStatusError(op, res)
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func decodeStatusError(op string, res *http.Response) error {
	var payload struct {
		Error       string `json:"error"`
		Message     string `json:"message"`
		RequiresPin bool   `json:"requiresPin"`
	}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	_ = json.Unmarshal(raw, &payload)

	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if res.StatusCode >= 500 {
		log.Printf("ERROR: %s: backend returned %d: %s", op, res.StatusCode, strings.TrimSpace(string(raw)))
	}
	return &StatusError{
		Op:          op,
		StatusCode:  res.StatusCode,
		Message:     msg,
		RequiresPin: payload.RequiresPin,
	}
}
