package rtm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/EgorLis/slackrtm/pkg/webapi"
)

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 45 * time.Second
	closeGrace       = 500 * time.Millisecond
)

// wsConn is one websocket connection. A reconnect always builds a new one.
type wsConn struct {
	ws       *websocket.Conn
	wmu      sync.Mutex // serialises data frames
	readWait time.Duration
	done     chan struct{}
	once     sync.Once
	log      logrus.FieldLogger
}

// handshakeError is a failed websocket upgrade that got an HTTP answer.
type handshakeError struct {
	status int
	header http.Header
	err    error
}

func (e *handshakeError) Error() string {
	return fmt.Sprintf("rtm: websocket handshake failed with status %d: %v", e.status, e.err)
}

func (e *handshakeError) Unwrap() error { return e.err }

func (e *handshakeError) RetryAfter() (time.Duration, bool) {
	return (&webapi.Response{StatusCode: e.status, Header: e.header}).RetryAfter()
}

func (s *Session) dialer() *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            s.proxyFunc(),
		TLSClientConfig:  s.tlsConfig,
		HandshakeTimeout: handshakeTimeout,
	}
}

func (s *Session) dial(ctx context.Context, rawURL string) (*wsConn, error) {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	log := s.log.WithField("host", host)

	ws, resp, err := s.dialer().DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			err = &handshakeError{status: resp.StatusCode, header: resp.Header, err: err}
		}
		return nil, errors.Wrapf(err, "rtm: dial %s", host)
	}
	log.Debug("websocket connected")

	var readWait time.Duration
	if s.pingInterval > 0 {
		readWait = s.pingInterval + s.pingTimeout
	}
	c := &wsConn{
		ws:       ws,
		readWait: readWait,
		done:     make(chan struct{}),
		log:      log,
	}
	c.setup(s.pingInterval)
	return c, nil
}

// setup installs the read limit, the pong handler and the keep-alive loop.
func (c *wsConn) setup(pingInterval time.Duration) {
	c.ws.SetReadLimit(64 << 20)
	c.touch()
	if pingInterval <= 0 {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
	go c.pingLoop(pingInterval)
}

func (c *wsConn) touch() {
	if c.readWait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readWait))
	}
}

func (c *wsConn) pingLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			// WriteControl may run concurrently with the data writer.
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.log.WithError(err).Debug("ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// read blocks for the next text frame.
func (c *wsConn) read() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		c.touch()
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) send(data []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		select {
		case <-c.done:
			// closed under us
			return ErrNotConnected
		default:
		}
		return errors.Wrap(err, "rtm: write")
	}
	return nil
}

// close sends a normal-closure frame and tears the socket down. Safe to call
// more than once and concurrently with read.
func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		_ = c.ws.Close()
	})
}
