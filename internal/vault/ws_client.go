package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"synth-cohort/internal/storage"
)

// ErrConnectionLost is returned for calls in flight when the socket drops.
var ErrConnectionLost = errors.New("vault websocket connection lost")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// CallTimeout bounds the wait for a response to one call.
	CallTimeout time.Duration
	// Token is sent as a bearer credential during the handshake.
	Token string
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		CallTimeout:  30 * time.Second,
	}
}

type callResult struct {
	resp rpcResponse
	err  error
}

// WSClient talks to one vault node over a single multiplexed WebSocket.
// Responses are matched to calls by JSON-RPC id.
type WSClient struct {
	documentAPI

	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex // serializes writes
	closed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to the channel waiting for its response
	pending   map[uint64]chan callResult
	pendingMu sync.Mutex
	lost      error

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

// Compile-time interface check.
var _ storage.DocumentStore = (*WSClient)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig, logger *zap.Logger) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.With(zap.String("node", endpoint)),
		pending:  make(map[uint64]chan callResult),
		done:     make(chan struct{}),
	}
	c.documentAPI = documentAPI{invoke: c.call}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	// Start ping goroutine
	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	c.conn = conn
	return nil
}

// Endpoint returns the node URL.
func (c *WSClient) Endpoint() string {
	return c.endpoint
}

// call sends one request and waits for the matching response.
func (c *WSClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	ch := make(chan callResult, 1)
	c.pendingMu.Lock()
	if c.lost != nil {
		c.pendingMu.Unlock()
		return c.lost
	}
	c.pending[reqID] = ch
	c.pendingMu.Unlock()

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		c.forget(reqID)
		return fmt.Errorf("write %s: %w", method, err)
	}

	var res callResult
	select {
	case res = <-ch:
	case <-time.After(c.config.CallTimeout):
		c.forget(reqID)
		return fmt.Errorf("%s timeout after %s", method, c.config.CallTimeout)
	case <-c.done:
		c.forget(reqID)
		return fmt.Errorf("client closed")
	case <-ctx.Done():
		c.forget(reqID)
		return ctx.Err()
	}

	if res.err != nil {
		return res.err
	}
	if res.resp.Error != nil {
		return res.resp.Error
	}
	if result != nil && res.resp.Result != nil {
		if err := json.Unmarshal(res.resp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *WSClient) forget(reqID uint64) {
	c.pendingMu.Lock()
	delete(c.pending, reqID)
	c.pendingMu.Unlock()
}

// Close closes the WebSocket connection and waits for background goroutines.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.connMu.Unlock()

	c.wg.Wait()
	c.failPending(fmt.Errorf("client closed"))
	return err
}

// readLoop reads responses and hands them to waiting calls.
// It exits on the first read error; there is no reconnect.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("vault websocket read failed", zap.Error(err))
			}
			c.failPending(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Warn("vault websocket: unparseable message", zap.Error(err))
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()

		if !ok {
			c.logger.Debug("vault websocket: response for unknown request", zap.Uint64("id", resp.ID))
			continue
		}
		ch <- callResult{resp: resp}
	}
}

// failPending resolves every in-flight call with err and rejects new ones.
func (c *WSClient) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.lost == nil {
		c.lost = err
	}
	for id, ch := range c.pending {
		ch <- callResult{err: err}
		delete(c.pending, id)
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("vault websocket ping failed", zap.Error(err))
			}
			c.connMu.Unlock()
		}
	}
}
