package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/Seann-Moser/servod/pkg/pca9685"
)

// Client is a typed client for the servod HTTP API, used by the CLI when
// commanding a running service instead of the hardware directly.
type Client struct {
	base string
	http *http.Client
}

// NewClient targets a running service, e.g. "http://pi:8080".
func NewClient(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Status fetches service health and chip state.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// Configure creates or overwrites a channel configuration.
func (c *Client) Configure(ctx context.Context, cfg pca9685.ChannelConfig) (pca9685.ChannelState, error) {
	var out pca9685.ChannelState
	err := c.do(ctx, http.MethodPost, "/channel", cfg, &out)
	return out, err
}

// Channel fetches a channel's configuration and current duty.
func (c *Client) Channel(ctx context.Context, channel int) (pca9685.ChannelState, error) {
	var out pca9685.ChannelState
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/channel/%d", channel), nil, &out)
	return out, err
}

// Command issues a channel command. value is ignored for full_on and
// full_off.
func (c *Client) Command(ctx context.Context, channel int, command string, value *float64) (pca9685.ChannelState, error) {
	var out pca9685.ChannelState
	body := ChannelCommand{Command: command, Value: value}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/channel/%d", channel), body, &out)
	return out, err
}

// Deconfigure removes a channel configuration.
func (c *Client) Deconfigure(ctx context.Context, channel int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/channel/%d", channel), nil, nil)
}

// SetOutput drives the service's /OE line.
func (c *Client) SetOutput(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPut, "/output", OutputRequest{Enabled: enabled}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body *bytes.Buffer
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return errors.Errorf("%s %s: %s (%s)", method, path, apiErr.Error, resp.Status)
		}
		return errors.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response")
		}
	}
	return nil
}
