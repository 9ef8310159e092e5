package rtm

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/EgorLis/slackrtm/pkg/webapi"
)

// API error codes that no amount of reconnecting will fix.
var fatalCodes = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"account_inactive": true,
	"token_revoked":    true,
	"missing_scope":    true,
}

// run drives one Start to completion. ctx is the run context that Stop
// cancels; parent is what the caller passed in.
func (s *Session) run(parent, ctx context.Context) error {
	release := context.AfterFunc(parent, s.Stop)
	defer release()

	err := s.loop(ctx)
	return s.shutdown(parent, err)
}

func (s *Session) loop(ctx context.Context) error {
	for {
		if s.isStopped() {
			return nil
		}
		err := s.connectOnce(ctx)
		if isCallbackError(err) {
			return err
		}
		if s.isStopped() || ctx.Err() != nil {
			return nil
		}

		if err != nil {
			s.log.WithError(err).WithField("attempt", s.Attempts()).Warn("rtm connection failed")
			if derr := s.dispatch(ctx, KindError, EventError, nil, err); derr != nil {
				return derr
			}
			if s.isStopped() {
				return nil
			}
		}
		if !s.autoReconnect || isFatal(err) {
			return err
		}

		s.setState(StateReconnecting)
		wait := s.backoff(err)
		s.log.WithField("wait", wait).Info("reconnecting")
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// connectOnce bootstraps, dials and serves one websocket until it ends.
// A nil result means the server closed the stream normally.
func (s *Session) connectOnce(ctx context.Context) error {
	s.setState(StateConnecting)
	attempt := s.attempts.Add(1)
	log := s.log.WithField("attempt", attempt)
	log.Debug("bootstrapping rtm session")

	info, err := s.retrieveConnectInfo(ctx)
	if err != nil {
		return err
	}
	c, err := s.dial(ctx, info.URL)
	if err != nil {
		return err
	}
	if !s.attach(c) {
		c.close()
		return nil
	}
	defer s.detach(c)

	s.setState(StateOpen)
	log.Info("rtm connected")
	if err := s.dispatch(ctx, KindOpen, EventOpen, info.State, nil); err != nil {
		return err
	}
	return s.readLoop(ctx, c)
}

func (s *Session) readLoop(ctx context.Context, c *wsConn) error {
	for {
		data, err := c.read()
		if err != nil {
			if s.isStopped() || ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info("server closed the websocket")
				return nil
			}
			return errors.Wrap(err, "rtm: read")
		}

		var frame Payload
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.WithError(err).Warn("dropping undecodable frame")
			continue
		}
		if frame == nil {
			continue
		}
		name := EventUnknown
		if raw, ok := frame["type"]; ok {
			name, _ = raw.(string)
			if name == "" {
				c.log.WithField("type", raw).Warn("dropping frame with malformed type")
				continue
			}
			delete(frame, "type")
		}

		if err := s.dispatch(ctx, KindWire, name, frame, nil); err != nil {
			return err
		}
	}
}

// shutdown takes the session from whatever state it is in to Stopped and
// delivers the close event.
func (s *Session) shutdown(parent context.Context, err error) error {
	s.mu.Lock()
	s.stopped = true
	s.state = StateClosing
	c, cancel := s.conn, s.cancel
	s.conn = nil
	s.mu.Unlock()

	if c != nil {
		c.close()
	}
	if cancel != nil {
		cancel()
	}

	cerr := s.dispatch(context.WithoutCancel(parent), KindClose, EventClose, nil, nil)

	s.mu.Lock()
	s.state = StateStopped
	s.running = false
	s.finished = true
	s.cancel = nil
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Error("rtm session stopped with error")
		return err
	}
	s.log.Info("rtm session stopped")
	return cerr
}

func isFatal(err error) bool {
	var apiErr *webapi.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return fatalCodes[apiErr.Code()]
}

type retryAfterer interface {
	RetryAfter() (time.Duration, bool)
}

// backoff honours a server-provided delay before falling back to the
// jittered exponential schedule.
func (s *Session) backoff(err error) time.Duration {
	var ra retryAfterer
	if err != nil && errors.As(err, &ra) {
		if d, ok := ra.RetryAfter(); ok {
			return d
		}
	}
	return expBackoff(s.attempts.Load(), s.maxBackoff, rand.Float64())
}

// expBackoff is min(2^attempt + jitter seconds, ceiling).
func expBackoff(attempt int64, ceiling time.Duration, jitter float64) time.Duration {
	secs := math.Pow(2, float64(attempt)) + jitter
	if secs >= ceiling.Seconds() {
		return ceiling
	}
	return time.Duration(secs * float64(time.Second))
}
