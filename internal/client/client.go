// Package client talks to a running tomato daemon over its unix socket.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fakeyudi/tomato/internal/api"
	"github.com/fakeyudi/tomato/internal/timer"
)

const (
	defaultUnaryTimeout = 10 * time.Second
	eventScannerBuffer  = 64 * 1024
)

// ErrDaemonUnavailable is returned when nothing answers on the socket.
var ErrDaemonUnavailable = errors.New("daemon not running (start it with 'tomato daemon')")

type Client struct {
	baseURL      string
	client       *http.Client
	unaryTimeout time.Duration
}

func New(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return NewWithClient("http://unix", &http.Client{Transport: transport})
}

func NewWithClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		unaryTimeout: defaultUnaryTimeout,
	}
}

// RequestError carries a non-2xx daemon reply.
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RequestError) Error() string {
	code := strings.TrimSpace(e.Code)
	message := strings.TrimSpace(e.Message)
	switch {
	case code != "" && message != "":
		return fmt.Sprintf("%s: %s", code, message)
	case message != "":
		return message
	case code != "":
		return code
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

func (c *Client) Start(ctx context.Context) error {
	return c.send(ctx, api.StartTimer{}, nil)
}

func (c *Client) Stop(ctx context.Context, reset bool) error {
	return c.send(ctx, api.StopTimer{Reset: reset}, nil)
}

func (c *Client) State(ctx context.Context) (timer.State, error) {
	var st timer.State
	err := c.send(ctx, api.GetTimerState{}, &st)
	return st, err
}

// SetTimer replaces the remaining seconds and optionally the work duration.
func (c *Client) SetTimer(ctx context.Context, seconds int, updateWork bool) error {
	return c.send(ctx, api.SetTimer{Time: seconds, UpdateWorkDuration: updateWork}, nil)
}

func (c *Client) SetBreak(ctx context.Context, seconds int) error {
	return c.send(ctx, api.SetBreak{Time: seconds}, nil)
}

func (c *Client) CheckPermission(ctx context.Context) (bool, error) {
	var resp api.PermissionResponse
	err := c.send(ctx, api.CheckNotificationPermission{}, &resp)
	return resp.Granted, err
}

// TestNotification asks the daemon to show the alert for phase. An empty
// phase lets the daemon choose.
func (c *Client) TestNotification(ctx context.Context, phase timer.Mode) (api.NotificationResponse, error) {
	var resp api.NotificationResponse
	err := c.send(ctx, api.TimerComplete{TimerType: phase}, &resp)
	return resp, err
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	body, err := c.request(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("decode health: %w", err)
	}
	return resp, nil
}

// Events follows the daemon's event stream, calling onEvent for each line
// until ctx is done, the stream ends or onEvent returns an error.
func (c *Client) Events(ctx context.Context, onEvent func(api.EventLine) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/x-ndjson")
	resp, err := c.client.Do(req)
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, payload)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, eventScannerBuffer), eventScannerBuffer)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line api.EventLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("decode event line: %w", err)
		}
		if err := onEvent(line); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, cmd api.Command, out any) error {
	payload, err := api.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	body, err := c.request(ctx, http.MethodPost, "/v1/commands", payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", cmd.CommandType(), err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	reqCtx := ctx
	if c.unaryTimeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > c.unaryTimeout {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.unaryTimeout)
			defer cancel()
		}
	}
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, payload)
	}
	return payload, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrDaemonUnavailable
	}
	return err
}

// decodeError understands both error shapes the daemon writes: {code,
// message} for protocol errors and {success:false, error} for rejected
// commands.
func decodeError(status int, payload []byte) error {
	var er api.ErrorResponse
	if err := json.Unmarshal(payload, &er); err == nil && er.Code != "" {
		return &RequestError{StatusCode: status, Code: er.Code, Message: er.Message}
	}
	var cr api.CommandResponse
	if err := json.Unmarshal(payload, &cr); err == nil && cr.Error != "" {
		return &RequestError{StatusCode: status, Message: cr.Error}
	}
	return &RequestError{StatusCode: status, Message: strings.TrimSpace(string(payload))}
}
