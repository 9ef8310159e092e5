package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/slackrtm/pkg/rtm"
	"github.com/EgorLis/slackrtm/pkg/webapi"
)

// Bot runs one RTM session per configured workspace.
type Bot struct {
	log        logrus.FieldLogger
	workspaces []*workspace
}

type Option func(*options)

type options struct {
	log        logrus.FieldLogger
	httpClient webapi.Doer
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithHTTPClient replaces the HTTP client every session uses for Web API calls.
func WithHTTPClient(d webapi.Doer) Option {
	return func(o *options) { o.httpClient = d }
}

// workspace is the per-session state the handlers share.
type workspace struct {
	name    string
	prefix  string
	session *rtm.Session
	log     logrus.FieldLogger

	mu     sync.Mutex
	selfID string
	team   string
	since  time.Time

	events   atomic.Int64
	commands atomic.Int64
}

func New(cfg *Config, opts ...Option) (*Bot, error) {
	o := options{log: logrus.StandardLogger()}
	for _, fn := range opts {
		fn(&o)
	}

	b := &Bot{log: o.log}
	for _, wc := range cfg.Workspaces {
		token, err := wc.ResolveToken()
		if err != nil {
			return nil, err
		}
		w := &workspace{
			name:   wc.Name,
			prefix: wc.Prefix,
			log:    o.log.WithField("workspace", wc.Name),
		}
		reg := rtm.NewRegistry()
		if err := w.register(reg); err != nil {
			return nil, errors.Wrapf(err, "bot: workspace %q", wc.Name)
		}

		sessOpts := append(wc.Options(),
			rtm.WithRegistry(reg),
			rtm.WithLogger(w.log),
			// several sessions share the process; Run owns the signals
			rtm.WithSignalHandling(false),
		)
		if o.httpClient != nil {
			sessOpts = append(sessOpts, rtm.WithHTTPClient(o.httpClient))
		}
		w.session = rtm.New(token, sessOpts...)
		b.workspaces = append(b.workspaces, w)
	}
	return b, nil
}

// Run blocks until ctx is done or any session fails; a failing session
// stops the others.
func (b *Bot) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range b.workspaces {
		w := w
		g.Go(func() error {
			w.log.Info("starting rtm session")
			if err := w.session.Start(gctx); err != nil {
				return errors.Wrapf(err, "workspace %q", w.name)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop stops every session; Run returns once they are all closed.
func (b *Bot) Stop() {
	for _, w := range b.workspaces {
		w.session.Stop()
	}
}

func (w *workspace) register(reg *rtm.Registry) error {
	handlers := []struct {
		event string
		fn    rtm.HandlerFunc
	}{
		{rtm.EventOpen, w.onOpen},
		{rtm.EventError, w.onError},
		{rtm.EventClose, w.onClose},
		{rtm.EventHello, w.onHello},
		{rtm.EventGoodbye, w.onGoodbye},
		{rtm.EventMessage, w.onMessage},
		{rtm.EventPong, w.onPong},
	}
	for _, h := range handlers {
		if err := reg.OnFunc(h.event, h.fn); err != nil {
			return err
		}
	}
	return nil
}

func (w *workspace) identity() (selfID, team string, since time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selfID, w.team, w.since
}

// ========================= lifecycle handlers =========================

func (w *workspace) onOpen(_ context.Context, ev *rtm.Event) error {
	self := ev.Data.Object("self")
	team := ev.Data.Object("team")

	w.mu.Lock()
	w.selfID = self.String("id")
	w.team = team.String("domain")
	if w.since.IsZero() {
		w.since = time.Now()
	}
	w.mu.Unlock()

	w.log.WithFields(logrus.Fields{
		"user":    self.String("name"),
		"user_id": self.String("id"),
		"team":    team.String("domain"),
		"attempt": ev.RTM.Attempts(),
	}).Info("connected to slack")
	return nil
}

func (w *workspace) onError(_ context.Context, ev *rtm.Event) error {
	w.log.WithError(ev.Err).Warn("rtm session error")
	return nil
}

func (w *workspace) onClose(_ context.Context, ev *rtm.Event) error {
	w.log.WithField("events", w.events.Load()).Info("rtm session closed")
	return nil
}

func (w *workspace) onHello(_ context.Context, _ *rtm.Event) error {
	w.events.Add(1)
	w.log.Debug("hello received")
	return nil
}

func (w *workspace) onGoodbye(_ context.Context, _ *rtm.Event) error {
	w.events.Add(1)
	w.log.Info("server is going away, expecting a reconnect")
	return nil
}
