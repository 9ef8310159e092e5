package rtm

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

type Handler interface {
	HandleEvent(ctx context.Context, ev *Event) error
}

type HandlerFunc func(ctx context.Context, ev *Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, ev *Event) error { return f(ctx, ev) }

type eventKey struct {
	kind Kind
	name string
}

func keyOf(name string) eventKey { return eventKey{kind: kindOf(name), name: name} }

// Registry maps event names to ordered handler lists. A Session reads from
// the registry it was built with (DefaultRegistry unless WithRegistry).
type Registry struct {
	mu       sync.RWMutex
	handlers map[eventKey][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[eventKey][]Handler)}
}

// DefaultRegistry backs the package-level On, OnFunc and MustOn.
var DefaultRegistry = NewRegistry()

// On appends handlers for event. "open", "close" and "error" bind the
// session lifecycle events; every other name binds wire frames of that type.
func (r *Registry) On(event string, hs ...Handler) error {
	return r.add(keyOf(event), hs)
}

// OnWire binds wire frames of the given type, including types that collide
// with lifecycle names (Slack does send {"type":"error"} frames).
func (r *Registry) OnWire(event string, hs ...Handler) error {
	return r.add(eventKey{kind: KindWire, name: event}, hs)
}

func (r *Registry) OnFunc(event string, fns ...HandlerFunc) error {
	hs := make([]Handler, 0, len(fns))
	for _, f := range fns {
		hs = append(hs, f)
	}
	return r.On(event, hs...)
}

// Handlers returns a copy of the handlers On(event) registered.
func (r *Registry) Handlers(event string) []Handler {
	return r.lookup(keyOf(event))
}

func (r *Registry) Reset() {
	r.mu.Lock()
	r.handlers = make(map[eventKey][]Handler)
	r.mu.Unlock()
}

func (r *Registry) add(k eventKey, hs []Handler) error {
	if k.name == "" {
		return errors.Wrap(ErrInvalidHandler, "empty event name")
	}
	if len(hs) == 0 {
		return errors.Wrapf(ErrInvalidHandler, "no handlers given for %q", k.name)
	}
	for i, h := range hs {
		if isNilHandler(h) {
			return errors.Wrapf(ErrInvalidHandler, "handler #%d for %q is nil", i, k.name)
		}
	}

	r.mu.Lock()
	r.handlers[k] = append(r.handlers[k], hs...)
	r.mu.Unlock()
	return nil
}

func (r *Registry) lookup(k eventKey) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs := r.handlers[k]
	if len(hs) == 0 {
		return nil
	}
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// handlerName is the qualified name reported in CallbackError.
func handlerName(h Handler) string {
	if f, ok := h.(HandlerFunc); ok {
		if fn := runtime.FuncForPC(reflect.ValueOf(f).Pointer()); fn != nil {
			return fn.Name()
		}
	}
	return fmt.Sprintf("%T", h)
}

// ========================= package-level registration =========================

func On(event string, hs ...Handler) error { return DefaultRegistry.On(event, hs...) }

func OnFunc(event string, fns ...HandlerFunc) error { return DefaultRegistry.OnFunc(event, fns...) }

// MustOn registers fns on DefaultRegistry and panics on error. It returns
// true so it can run from a package-level var:
//
//	var _ = rtm.MustOn(rtm.EventMessage, onMessage)
func MustOn(event string, fns ...HandlerFunc) bool {
	if err := OnFunc(event, fns...); err != nil {
		panic(err)
	}
	return true
}
