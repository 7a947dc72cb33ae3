package catalog

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

	"github.com/google/uuid"

	"localfiles/internal/apperr"
	"localfiles/internal/logging"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 16 << 20
)

// Client calls a remote addon over JSON-RPC.
type Client struct {
	endpoint string
	client   *http.Client
}

// New returns a Client for endpoint. A nil client selects one with a 15s
// timeout.
func New(endpoint string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

// MetaFind forwards a meta.find call and returns its raw result.
func (c *Client) MetaFind(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return c.Call(ctx, "meta.find", args)
}

// Call invokes method with params [null, args].
func (c *Client) Call(ctx context.Context, method string, args json.RawMessage) (json.RawMessage, error) {
	op := "catalog." + method
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	body, err := json.Marshal(Request{
		ID:      id,
		JSONRPC: Version,
		Method:  method,
		Params:  []json.RawMessage{json.RawMessage("null"), args},
	})
	if err != nil {
		return nil, apperr.Internal(op, fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal(op, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Transient(op, fmt.Errorf("failed to reach catalog: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, apperr.Transient(op, fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.endpoint))
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return nil, apperr.Transient(op, fmt.Errorf("failed to decode response: %w", err))
	}
	if out.Error != nil {
		return nil, apperr.Transient(op, out.Error)
	}
	if !bytes.Equal(out.ID, id) {
		return nil, apperr.Transient(op, errors.New("response id does not match request"))
	}

	logging.Debug("%s answered in %v", op, time.Since(start))
	if len(out.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return out.Result, nil
}
