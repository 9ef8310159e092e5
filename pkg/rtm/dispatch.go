package rtm

import (
	"context"

	"github.com/pkg/errors"
)

// dispatch runs every handler bound to (kind, name) in registration order.
// Once the session is stopped, wire and open handlers are skipped; close and
// error handlers still run. The first failing handler aborts the dispatch.
func (s *Session) dispatch(ctx context.Context, kind Kind, name string, data Payload, cause error) error {
	hs := s.registry.lookup(eventKey{kind: kind, name: name})
	if len(hs) == 0 {
		return nil
	}
	ev := &Event{
		Kind: kind,
		Type: name,
		Data: data,
		Err:  cause,
		RTM:  s,
		Web:  s.webClient(),
	}
	always := kind == KindClose || kind == KindError
	for _, h := range hs {
		if !always && s.isStopped() {
			return nil
		}
		if err := invoke(ctx, h, ev); err != nil {
			cbErr := &CallbackError{Event: name, Handler: handlerName(h), Err: err}
			s.log.WithError(err).
				WithField("event", name).
				WithField("handler", cbErr.Handler).
				Error("event handler failed")
			return cbErr
		}
	}
	return nil
}

func invoke(ctx context.Context, h Handler, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "panic")
				return
			}
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return h.HandleEvent(ctx, ev)
}
