package vts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/ayanero/mimik/internal/bus"
)

const (
	defaultMaxRetries = 5
	defaultRetryDelay = 5 * time.Second
	defaultPluginName = "Mimik Controller"
)

// Hotkey is one action discoverable on the control endpoint.
type Hotkey struct {
	ID   string
	Name string
	File string
	Type string
}

// Client talks to a VTube-Studio-compatible control endpoint over a single
// websocket. All requests are serialized by a mutex: the protocol matches
// one response to one request and the endpoint is a single connection, so
// there is no benefit to pipelining.
type Client struct {
	url        string
	pluginName string
	tokenPath  string
	maxRetries int
	retryDelay time.Duration
	bus        *bus.Bus

	reqID atomic.Uint64

	mu   sync.Mutex
	conn *websocket.Conn
}

// ClientOption is a functional option for configuring a [Client].
type ClientOption func(*Client)

// WithPluginName sets the plugin name announced during authentication.
// Default: "Mimik Controller".
func WithPluginName(name string) ClientOption {
	return func(c *Client) { c.pluginName = name }
}

// WithTokenPath sets the file used to persist the authentication token
// across runs. Empty disables persistence.
func WithTokenPath(path string) ClientOption {
	return func(c *Client) { c.tokenPath = path }
}

// WithConnectRetry sets the bounded-retry policy for Connect: at most
// attempts tries, delay apart. Defaults: 5 tries, 5 s.
func WithConnectRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = attempts
		c.retryDelay = delay
	}
}

// WithStatusBus publishes connection state transitions to the gateway status
// topic on b.
func WithStatusBus(b *bus.Bus) ClientOption {
	return func(c *Client) { c.bus = b }
}

// NewClient creates a client for the endpoint at host:port. No connection is
// made until Connect.
func NewClient(host string, port int, opts ...ClientOption) *Client {
	c := &Client{
		url:        "ws://" + host + ":" + strconv.Itoa(port),
		pluginName: defaultPluginName,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// status publishes a gateway status event when a bus is attached.
func (c *Client) status(state string) {
	if c.bus != nil {
		c.bus.Publish(bus.TopicGatewayStatus, state)
	}
}

// Connect dials the endpoint with bounded retry and fixed backoff. After the
// configured attempts are exhausted the error of the last attempt is
// returned and the client does not keep retrying in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.status("connecting")

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			c.status("connected")
			slog.Info("connected to control endpoint", "url", c.url, "attempt", attempt)
			return nil
		}
		lastErr = err
		slog.Warn("control endpoint connection failed",
			"url", c.url, "attempt", attempt, "max_attempts", c.maxRetries, "error", err)

		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			c.status("connection_failed")
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	c.status("connection_failed")
	return fmt.Errorf("vts: connect to %s after %d attempts: %w", c.url, c.maxRetries, lastErr)
}

// Authenticate obtains a session using a persisted token when one exists,
// requesting and persisting a fresh token otherwise (or when the stored one
// is rejected).
func (c *Client) Authenticate(ctx context.Context) error {
	token, _ := c.loadToken()

	if token != "" {
		ok, err := c.authenticateWith(ctx, token)
		if err != nil {
			return err
		}
		if ok {
			c.status("authenticated")
			return nil
		}
		slog.Warn("stored authentication token rejected, requesting a new one")
	}

	token, err := c.requestToken(ctx)
	if err != nil {
		return err
	}
	if err := c.saveToken(token); err != nil {
		slog.Warn("failed to persist authentication token", "path", c.tokenPath, "error", err)
	}

	ok, err := c.authenticateWith(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("vts: endpoint rejected a freshly issued token")
	}
	c.status("authenticated")
	return nil
}

// Hotkeys lists the actions available in the current model.
func (c *Client) Hotkeys(ctx context.Context) ([]Hotkey, error) {
	var resp hotkeysResponse
	if err := c.roundTrip(ctx, msgHotkeys, struct{}{}, msgHotkeysResponse, &resp); err != nil {
		return nil, err
	}
	out := make([]Hotkey, 0, len(resp.AvailableHotkeys))
	for _, h := range resp.AvailableHotkeys {
		out = append(out, Hotkey{ID: h.HotkeyID, Name: h.Name, File: h.File, Type: h.Type})
	}
	return out, nil
}

// Trigger fires one hotkey by id.
func (c *Client) Trigger(ctx context.Context, hotkeyID string) error {
	var resp triggerResponse
	err := c.roundTrip(ctx, msgTrigger, triggerRequest{HotkeyID: hotkeyID}, msgTriggerResponse, &resp)
	if err != nil {
		return err
	}
	return nil
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close tears the connection down. Safe to call without a live connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "shutting down")
	c.conn = nil
	c.status("disconnected")
	return err
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	var resp authTokenResponse
	req := authTokenRequest{PluginName: c.pluginName, PluginDeveloper: pluginDeveloper}
	if err := c.roundTrip(ctx, msgAuthToken, req, msgAuthTokenResponse, &resp); err != nil {
		return "", err
	}
	if resp.AuthenticationToken == "" {
		return "", errors.New("vts: endpoint returned an empty authentication token")
	}
	return resp.AuthenticationToken, nil
}

func (c *Client) authenticateWith(ctx context.Context, token string) (bool, error) {
	var resp authResponse
	req := authRequest{
		PluginName:          c.pluginName,
		PluginDeveloper:     pluginDeveloper,
		AuthenticationToken: token,
	}
	if err := c.roundTrip(ctx, msgAuth, req, msgAuthResponse, &resp); err != nil {
		return false, err
	}
	if !resp.Authenticated {
		slog.Debug("authentication refused", "reason", resp.Reason)
	}
	return resp.Authenticated, nil
}

func (c *Client) loadToken() (string, error) {
	if c.tokenPath == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Client) saveToken(token string) error {
	if c.tokenPath == "" {
		return nil
	}
	return os.WriteFile(c.tokenPath, []byte(token+"\n"), 0o600)
}

// roundTrip sends one request and decodes its matching response. The mutex
// keeps request/response pairs from interleaving on the shared connection.
func (c *Client) roundTrip(ctx context.Context, msgType string, data any, wantType string, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New("vts: not connected")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("vts: marshal %s: %w", msgType, err)
	}
	reqID := strconv.FormatUint(c.reqID.Add(1), 10)
	frame, err := json.Marshal(envelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   reqID,
		MessageType: msgType,
		Data:        payload,
	})
	if err != nil {
		return fmt.Errorf("vts: marshal envelope: %w", err)
	}

	if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("vts: write %s: %w", msgType, err)
	}

	_, raw, err := c.conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("vts: read %s response: %w", msgType, err)
	}

	var resp envelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("vts: parse %s response: %w", msgType, err)
	}
	if resp.RequestID != reqID {
		return fmt.Errorf("vts: response id %q does not match request id %q", resp.RequestID, reqID)
	}
	if resp.MessageType == msgAPIError {
		var apiErr apiError
		if err := json.Unmarshal(resp.Data, &apiErr); err != nil {
			return fmt.Errorf("vts: parse api error: %w", err)
		}
		return fmt.Errorf("vts: api error %d: %s", apiErr.ErrorID, apiErr.Message)
	}
	if resp.MessageType != wantType {
		return fmt.Errorf("vts: unexpected response type %q, want %q", resp.MessageType, wantType)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("vts: decode %s: %w", wantType, err)
		}
	}
	return nil
}
