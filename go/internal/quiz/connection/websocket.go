package connection

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcdev12/quizclient/go/internal/models"
)

// WebsocketConfig holds configuration for websocket push channels.
type WebsocketConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
}

// DefaultWebsocketConfig returns default websocket configuration.
func DefaultWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		MaxMessageSize:   64 * 1024,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
}

// WebsocketDialer connects to {base}/ws/{code}/{participant}.
type WebsocketDialer struct {
	BaseURL string
	Header  http.Header
	Config  WebsocketConfig
}

// NewWebsocketDialer creates a dialer for the quiz server at baseURL. http and https
// schemes are mapped to ws and wss.
func NewWebsocketDialer(baseURL string, config WebsocketConfig) *WebsocketDialer {
	return &WebsocketDialer{BaseURL: baseURL, Config: config}
}

// Endpoint returns the push channel address of identity.
func (d *WebsocketDialer) Endpoint(identity models.SessionIdentity) (string, error) {
	u, err := url.Parse(strings.TrimRight(d.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = u.Path + "/ws/" + url.PathEscape(identity.Code) + "/" + url.PathEscape(identity.Participant())
	return u.String(), nil
}

func (d *WebsocketDialer) Dial(ctx context.Context, identity models.SessionIdentity) (Conn, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := d.Endpoint(identity)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.Config.HandshakeTimeout,
		ReadBufferSize:   d.Config.ReadBufferSize,
		WriteBufferSize:  d.Config.WriteBufferSize,
	}
	ws, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &websocketConn{ws: ws, config: d.Config}
	if d.Config.MaxMessageSize > 0 {
		ws.SetReadLimit(d.Config.MaxMessageSize)
	}
	c.extendReadDeadline()
	ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
	return c, nil
}

type websocketConn struct {
	ws        *websocket.Conn
	config    WebsocketConfig
	closeOnce sync.Once
	closeErr  error
}

func (c *websocketConn) extendReadDeadline() {
	if c.config.ReadTimeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}

func (c *websocketConn) writeDeadline() time.Time {
	if c.config.WriteTimeout > 0 {
		return time.Now().Add(c.config.WriteTimeout)
	}
	return time.Time{}
}

func (c *websocketConn) Read() ([]byte, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		c.extendReadDeadline()
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *websocketConn) Write(data []byte) error {
	c.ws.SetWriteDeadline(c.writeDeadline())
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, c.writeDeadline())
}

func (c *websocketConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, c.writeDeadline())
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
