package rtm

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EgorLis/slackrtm/pkg/webapi"
)

// ConnectMethod selects the Web API method that hands out the websocket URL.
type ConnectMethod string

const (
	// ConnectMethodConnect is the lightweight bootstrap (self and team only).
	ConnectMethodConnect ConnectMethod = "rtm.connect"
	// ConnectMethodStart also returns the full workspace state.
	ConnectMethodStart ConnectMethod = "rtm.start"
)

const (
	DefaultPingInterval = 30 * time.Second
	DefaultPingTimeout  = 30 * time.Second
	DefaultMaxBackoff   = 300 * time.Second
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Caller performs one authenticated Web API call. *webapi.Client is one.
type Caller interface {
	Call(ctx context.Context, method string, params url.Values) (*webapi.Response, error)
}

type Session struct {
	token         string
	baseURL       string
	connectMethod ConnectMethod
	autoReconnect bool
	pingInterval  time.Duration
	pingTimeout   time.Duration
	maxBackoff    time.Duration
	tlsConfig     *tls.Config
	proxies       map[string]string
	handleSignals bool

	httpClient webapi.Doer
	caller     Caller
	registry   *Registry
	log        logrus.FieldLogger

	msgID    atomic.Int64
	attempts atomic.Int64

	mu      sync.Mutex
	state   State
	running bool
	stopped bool
	cancel  context.CancelFunc
	conn    *wsConn

	// finished is set once a run has gone through shutdown. A stop that
	// lands before any run stays in force for the next Start.
	finished bool
}

func New(token string, opts ...Option) *Session {
	s := &Session{
		token:         token,
		baseURL:       webapi.DefaultBaseURL,
		connectMethod: ConnectMethodConnect,
		autoReconnect: true,
		pingInterval:  DefaultPingInterval,
		pingTimeout:   DefaultPingTimeout,
		maxBackoff:    DefaultMaxBackoff,
		handleSignals: true,
		registry:      DefaultRegistry,
		log:           logrus.WithField("component", "rtm"),
	}
	s.msgID.Store(1)
	for _, o := range opts {
		o(s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy:           s.proxyFunc(),
				TLSClientConfig: s.tlsConfig,
			},
		}
	}
	if s.caller == nil {
		s.caller = s.webClient()
	}
	return s
}

func (s *Session) Token() string { return s.token }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts counts bootstrap attempts over the whole life of the session.
func (s *Session) Attempts() int64 { return s.attempts.Load() }

// MessageCounter is the id the next outbound frame will carry.
func (s *Session) MessageCounter() int64 { return s.msgID.Load() }

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.stopped
}

// Start connects and serves events until Stop, a cancelled ctx, or a
// non-recoverable error. It returns nil after a clean stop.
func (s *Session) Start(ctx context.Context) error {
	runCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if s.handleSignals {
		release := s.notifySignals()
		defer release()
	}
	return s.run(ctx, runCtx)
}

// StartAsync runs the session in its own goroutine. The returned channel
// yields Start's result once and is then closed.
func (s *Session) StartAsync(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	runCtx, err := s.begin(ctx)
	if err != nil {
		errCh <- err
		close(errCh)
		return errCh
	}
	go func() {
		defer close(errCh)
		errCh <- s.run(ctx, runCtx)
	}()
	return errCh
}

// Stop may be called any number of times, from any goroutine, including
// from inside a handler. A Stop before Start makes that Start dispatch close
// and return nil without connecting.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if !s.running {
		s.state = StateStopped
	}
	cancel, c := s.cancel, s.conn
	s.mu.Unlock()

	s.log.Debug("stop requested")
	if cancel != nil {
		cancel()
	}
	if c != nil {
		c.close()
	}
}

func (s *Session) begin(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	if s.finished {
		s.stopped = false
		s.finished = false
	}
	s.cancel = cancel
	if !s.stopped {
		s.state = StateIdle
	}
	return runCtx, nil
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// attach makes c the current transport unless Stop got there first.
func (s *Session) attach(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conn = c
	return true
}

func (s *Session) detach(c *wsConn) {
	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
	}
	s.mu.Unlock()
	c.close()
}

func (s *Session) current() *wsConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) webClient() *webapi.Client {
	return webapi.New(s.token,
		webapi.WithBaseURL(s.baseURL),
		webapi.WithHTTPClient(s.httpClient),
		webapi.WithLogger(s.log),
	)
}

func (s *Session) proxyFunc() func(*http.Request) (*url.URL, error) {
	if len(s.proxies) == 0 {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		scheme := req.URL.Scheme
		switch scheme {
		case "ws":
			scheme = "http"
		case "wss":
			scheme = "https"
		}
		raw, ok := s.proxies[scheme]
		if !ok || raw == "" {
			return nil, nil
		}
		return url.Parse(raw)
	}
}

// notifySignals turns the platform stop signals into Stop for the duration
// of one blocking run.
func (s *Session) notifySignals() (release func()) {
	sigs := stopSignals()
	if len(sigs) == 0 {
		return func() {}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			s.log.WithField("signal", sig.String()).Info("stopping on signal")
			s.Stop()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
