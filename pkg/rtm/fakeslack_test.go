package rtm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/slackrtm/pkg/webapi"
)

// fakeSlack serves /api/rtm.connect, /api/rtm.start and the /ws endpoint the
// bootstrap hands out.
type fakeSlack struct {
	t   *testing.T
	srv *httptest.Server

	// bootstrap, when set, answers the n-th (1-based) bootstrap call.
	bootstrap func(n int, w http.ResponseWriter)
	// serve, when set, drives the n-th (1-based) websocket connection.
	serve func(n int, c *websocket.Conn)

	frames chan Payload

	mu       sync.Mutex
	calls    int
	methods  []string
	conns    int
	upgrader websocket.Upgrader
}

func newFakeSlack(t *testing.T) *fakeSlack {
	t.Helper()
	fs := &fakeSlack{
		t:        t,
		frames:   make(chan Payload, 64),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", fs.handleAPI)
	mux.HandleFunc("/ws", fs.handleWS)
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeSlack) apiURL() string { return fs.srv.URL + "/api/" }

func (fs *fakeSlack) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/ws"
}

func (fs *fakeSlack) bootstrapCalls() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls
}

func (fs *fakeSlack) handleAPI(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.calls++
	n := fs.calls
	fs.methods = append(fs.methods, strings.TrimPrefix(r.URL.Path, "/api/"))
	fs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fs.bootstrap != nil {
		fs.bootstrap(n, w)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":   true,
		"url":  fs.wsURL(),
		"self": map[string]any{"id": "U1", "name": "bot"},
		"team": map[string]any{"id": "T1", "domain": "example"},
	})
}

func (fs *fakeSlack) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := fs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	fs.mu.Lock()
	fs.conns++
	n := fs.conns
	fs.mu.Unlock()

	if fs.serve != nil {
		fs.serve(n, c)
		return
	}
	_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`))
	collectFrames(c, fs.frames)
}

// collectFrames forwards every client frame into out until the socket ends.
func collectFrames(c *websocket.Conn, out chan<- Payload) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var p Payload
		if json.Unmarshal(data, &p) == nil {
			out <- p
		}
	}
}

func (fs *fakeSlack) nextFrame(t *testing.T) Payload {
	t.Helper()
	select {
	case p := <-fs.frames:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received from client")
		return nil
	}
}

// ========================= helpers =========================

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestSession(fs *fakeSlack, reg *Registry, opts ...Option) *Session {
	base := []Option{
		WithBaseURL(fs.apiURL()),
		WithRegistry(reg),
		WithLogger(quietLogger()),
		WithMaxBackoff(10 * time.Millisecond),
		WithSignalHandling(false),
	}
	return New("xoxb-test", append(base, opts...)...)
}

type callerFunc func(ctx context.Context, method string, params url.Values) (*webapi.Response, error)

func (f callerFunc) Call(ctx context.Context, method string, params url.Values) (*webapi.Response, error) {
	return f(ctx, method, params)
}

// recorder collects event names in the order handlers saw them.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.events = append(r.events, name)
	r.mu.Unlock()
}

func (r *recorder) record(label string) HandlerFunc {
	return func(context.Context, *Event) error {
		r.add(label)
		return nil
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(name string) int {
	n := 0
	for _, e := range r.list() {
		if e == name {
			n++
		}
	}
	return n
}

// recordLifecycle binds open, error and close on reg.
func (r *recorder) recordLifecycle(t *testing.T, reg *Registry) {
	t.Helper()
	require.NoError(t, reg.OnFunc(EventOpen, r.record(EventOpen)))
	require.NoError(t, reg.OnFunc(EventError, r.record(EventError)))
	require.NoError(t, reg.OnFunc(EventClose, r.record(EventClose)))
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop in time")
		return nil
	}
}

func signalOnOpen(t *testing.T, reg *Registry) <-chan struct{} {
	t.Helper()
	opened := make(chan struct{}, 8)
	require.NoError(t, reg.OnFunc(EventOpen, func(context.Context, *Event) error {
		opened <- struct{}{}
		return nil
	}))
	return opened
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting")
	}
}
