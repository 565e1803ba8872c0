package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const ipcRequestTimeout = 5 * time.Second

// ipcClient speaks mpv's newline-delimited JSON protocol: requests carry a
// request_id that the matching response echoes back; everything else on
// the wire is an asynchronous event.
type ipcClient struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan ipcResponse
	onEvent func(name, reason string)
	logger  *logrus.Logger
	closed  chan struct{}
}

type ipcRequest struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

type ipcResponse struct {
	Error     string      `json:"error"`
	Data      interface{} `json:"data"`
	RequestID int64       `json:"request_id"`
	Event     string      `json:"event"`
	Reason    string      `json:"reason"`
}

func newIPCClient(conn net.Conn, onEvent func(name, reason string), logger *logrus.Logger) *ipcClient {
	c := &ipcClient{
		conn:    conn,
		pending: make(map[int64]chan ipcResponse),
		onEvent: onEvent,
		logger:  logger,
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *ipcClient) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var resp ipcResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			c.logger.WithError(err).Debug("Skipping unparsable IPC line")
			continue
		}

		if resp.Event != "" {
			c.onEvent(resp.Event, resp.Reason)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.RequestID]
		if ok {
			delete(c.pending, resp.RequestID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	// Reader exit means the socket is gone; fail all waiters.
	c.mu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.mu.Unlock()
	close(c.closed)
}

// command sends one request and waits for its matching response
func (c *ipcClient) command(ctx context.Context, args ...interface{}) (interface{}, error) {
	select {
	case <-c.closed:
		return nil, fmt.Errorf("engine connection closed")
	default:
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan ipcResponse, 1)
	c.pending[id] = ch

	payload, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err == nil {
		_, err = c.conn.Write(append(payload, '\n'))
	}
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to send engine command: %w", err)
	}
	c.mu.Unlock()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("engine connection closed")
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("engine command failed: %s", resp.Error)
		}
		return resp.Data, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *ipcClient) close() {
	c.conn.Close()
}
