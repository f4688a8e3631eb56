package landmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/optiscope/go-pdmeter/internal/log"
)

// ClientConfig holds connection settings for the websocket landmark service.
type ClientConfig struct {
	// URL of the detector service, e.g. ws://localhost:8765/landmarks
	URL string

	// Backends lists inference backends in preference order. The client
	// asks the service for each in turn at construction time and keeps
	// the first one that initializes, so a failed GPU init falls back
	// to CPU without affecting per-tick logic.
	Backends []string

	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
}

// DefaultClientConfig returns production defaults.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:              url,
		Backends:         []string{"gpu", "cpu"},
		HandshakeTimeout: 10 * time.Second,
		RequestTimeout:   2 * time.Second,
	}
}

// Client is a Provider backed by an external landmark detector process,
// reached over a websocket. One request is in flight at a time.
type Client struct {
	cfg     ClientConfig
	ws      *websocket.Conn
	backend string
	mu      sync.Mutex
	closed  bool
}

type initRequest struct {
	Type    string `json:"type"`
	Backend string `json:"backend"`
}

type initResponse struct {
	Type  string `json:"type"` // "ready" or "error"
	Error string `json:"error,omitempty"`
}

type detectResponse struct {
	Face     bool         `json:"face"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	HasDepth bool         `json:"has_depth"`
	Glasses  bool         `json:"glasses"`
	Points   [][3]float64 `json:"points"`
}

// NewClient dials the detector service and negotiates an inference
// backend. Backends are tried in order; construction fails only when
// none of them initializes.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("landmarks: service URL is required")
	}
	if len(cfg.Backends) == 0 {
		cfg.Backends = []string{"cpu"}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	ws, _, err := dialer.Dial(cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("landmarks: connect %s: %w", cfg.URL, err)
	}

	c := &Client{cfg: cfg, ws: ws}

	var lastErr error
	for _, backend := range cfg.Backends {
		if err := c.initBackend(backend); err != nil {
			log.Warn("landmark backend init failed", "backend", backend, "error", err)
			lastErr = err
			continue
		}
		c.backend = backend
		log.Info("landmark service ready", "backend", backend)
		return c, nil
	}

	ws.Close()
	return nil, fmt.Errorf("landmarks: no usable backend: %w", lastErr)
}

// Backend returns the negotiated inference backend.
func (c *Client) Backend() string {
	return c.backend
}

func (c *Client) initBackend(backend string) error {
	if err := c.ws.WriteJSON(initRequest{Type: "init", Backend: backend}); err != nil {
		return err
	}
	var resp initResponse
	if err := c.ws.ReadJSON(&resp); err != nil {
		return err
	}
	if resp.Type != "ready" {
		return fmt.Errorf("backend %s: %s", backend, resp.Error)
	}
	return nil
}

// Detect sends one JPEG frame and reads back the landmark result.
func (c *Client) Detect(ctx context.Context, jpeg []byte) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Result{}, fmt.Errorf("landmarks: client closed")
	}

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.BinaryMessage, jpeg); err != nil {
		return Result{}, fmt.Errorf("landmarks: send frame: %w", err)
	}

	c.ws.SetReadDeadline(deadline)
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return Result{}, fmt.Errorf("landmarks: read result: %w", err)
	}

	var resp detectResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Result{}, fmt.Errorf("landmarks: decode result: %w", err)
	}

	res := Result{
		Width:           resp.Width,
		Height:          resp.Height,
		GlassesDetected: resp.Glasses,
	}
	if !resp.Face {
		return res, nil
	}

	points := make([]Point3, len(resp.Points))
	for i, p := range resp.Points {
		points[i] = Point3{X: p[0], Y: p[1], Z: p[2]}
	}
	res.Frame = &Frame{Points: points, HasDepth: resp.HasDepth}
	return res, nil
}

// Close shuts the websocket down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}
