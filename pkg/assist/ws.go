package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsTypeAuthRequired = "auth_required"
	wsTypeAuth         = "auth"
	wsTypeAuthOK       = "auth_ok"
	wsTypeAuthInvalid  = "auth_invalid"
	wsTypeResult       = "result"
	wsTypeProcess      = "conversation/process"

	wsHandshakeTimeout = 10 * time.Second
)

// WSURL converts an http(s) base URL to the WebSocket API endpoint.
func WSURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/websocket"
}

type wsFrame struct {
	ID          int64           `json:"id,omitempty"`
	Type        string          `json:"type"`
	Success     bool            `json:"success,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *CommandError   `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
	HAVersion   string          `json:"ha_version,omitempty"`
	AccessToken string          `json:"access_token,omitempty"`
}

type wsProcess struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Request
}

// WSClient is an authenticated WebSocket API session. Commands may be sent
// from several goroutines; results are matched to callers by id.
type WSClient struct {
	conn    *websocket.Conn
	session string
	logger  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *wsFrame
	err     error

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

var _ Processor = (*WSClient)(nil)

// DialWS connects to baseURL and authenticates with token.
func DialWS(ctx context.Context, baseURL, token string, logger *slog.Logger) (*WSClient, error) {
	if baseURL == "" {
		return nil, ErrNoURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, WSURL(baseURL), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: err.Error()}
		}
		return nil, fmt.Errorf("assist: websocket connect: %w", err)
	}
	c := &WSClient{
		conn:    conn,
		session: uuid.NewString(),
		logger:  logger,
		pending: make(map[int64]chan *wsFrame),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	if err := c.authenticate(ctx, token); err != nil {
		conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) authenticate(ctx context.Context, token string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(wsHandshakeTimeout)
	}
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	var hello wsFrame
	if err := c.conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("assist: read auth_required: %w", err)
	}
	if hello.Type != wsTypeAuthRequired {
		return fmt.Errorf("assist: unexpected first frame %q", hello.Type)
	}
	if err := c.conn.WriteJSON(wsFrame{Type: wsTypeAuth, AccessToken: token}); err != nil {
		return fmt.Errorf("assist: send auth: %w", err)
	}
	var reply wsFrame
	if err := c.conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("assist: read auth reply: %w", err)
	}
	switch reply.Type {
	case wsTypeAuthOK:
		c.logger.Debug("assist/ws: authenticated", "session", c.session, "ha_version", hello.HAVersion)
		return nil
	case wsTypeAuthInvalid:
		return fmt.Errorf("%w: %s", ErrAuthInvalid, reply.Message)
	default:
		return fmt.Errorf("assist: unexpected auth reply %q", reply.Type)
	}
}

// Process sends a conversation/process command and waits for its result.
func (c *WSClient) Process(ctx context.Context, req Request) (*Response, error) {
	id, ch, err := c.register()
	if err != nil {
		return nil, err
	}
	defer c.unregister(id)

	c.writeMu.Lock()
	err = c.conn.WriteJSON(wsProcess{ID: id, Type: wsTypeProcess, Request: req})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("assist: send command: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.closeErr()
	case f := <-ch:
		if !f.Success {
			if f.Error != nil {
				return nil, f.Error
			}
			return nil, &CommandError{Code: "unknown", Message: "command failed"}
		}
		return DecodeResponse(ctx, f.Result)
	}
}

func (c *WSClient) register() (int64, chan *wsFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, nil, c.err
	}
	c.nextID++
	ch := make(chan *wsFrame, 1)
	c.pending[c.nextID] = ch
	return c.nextID, ch, nil
}

func (c *WSClient) unregister(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *WSClient) readLoop() {
	defer close(c.done)
	for {
		var f wsFrame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}
		if f.Type != wsTypeResult {
			c.logger.Debug("assist/ws: ignoring frame", "type", f.Type, "id", f.ID)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Warn("assist/ws: result for unknown command", "id", f.ID)
			continue
		}
		select {
		case ch <- &f:
		default:
			c.logger.Warn("assist/ws: duplicate result", "id", f.ID)
		}
	}
}

func (c *WSClient) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *WSClient) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.closed)
		c.conn.Close()
	})
}

// Close ends the session. Pending commands fail with ErrClosed.
func (c *WSClient) Close() error {
	c.shutdown(ErrClosed)
	<-c.done
	return nil
}
