package rtm

import (
	"crypto/tls"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EgorLis/slackrtm/pkg/webapi"
)

type Option func(*Session)

// WithBaseURL points both the bootstrap call and Event.Web at another API root.
func WithBaseURL(u string) Option {
	return func(s *Session) { s.baseURL = u }
}

func WithConnectMethod(m ConnectMethod) Option {
	return func(s *Session) { s.connectMethod = m }
}

// WithAutoReconnect toggles reconnecting after transport failures (default on).
func WithAutoReconnect(on bool) Option {
	return func(s *Session) { s.autoReconnect = on }
}

// WithPingInterval sets the websocket keep-alive period. Zero disables
// keep-alive pings and the read deadline.
func WithPingInterval(d time.Duration) Option {
	return func(s *Session) { s.pingInterval = d }
}

// WithPingTimeout sets how long past a missed pong the connection is
// considered dead.
func WithPingTimeout(d time.Duration) Option {
	return func(s *Session) { s.pingTimeout = d }
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *Session) { s.tlsConfig = cfg }
}

// WithProxy takes a scheme→proxy URL map ({"https": "http://proxy:3128"}).
// The websocket dial looks up "https" for wss:// and "http" for ws://.
func WithProxy(proxies map[string]string) Option {
	return func(s *Session) {
		s.proxies = make(map[string]string, len(proxies))
		for k, v := range proxies {
			s.proxies[k] = v
		}
	}
}

// WithHTTPClient replaces the HTTP client used for Web API calls.
func WithHTTPClient(d webapi.Doer) Option {
	return func(s *Session) { s.httpClient = d }
}

// WithCaller replaces the Web API caller used for the bootstrap call.
func WithCaller(c Caller) Option {
	return func(s *Session) { s.caller = c }
}

func WithRegistry(r *Registry) Option {
	return func(s *Session) {
		if r != nil {
			s.registry = r
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxBackoff caps the delay between reconnect attempts (default 300s).
// A server-provided Retry-After is not capped.
func WithMaxBackoff(d time.Duration) Option {
	return func(s *Session) { s.maxBackoff = d }
}

// WithSignalHandling decides whether the blocking Start installs
// SIGHUP/SIGTERM/SIGINT handlers that call Stop (default true). Turn it off
// when several sessions share a process or the caller owns signals.
func WithSignalHandling(on bool) Option {
	return func(s *Session) { s.handleSignals = on }
}
