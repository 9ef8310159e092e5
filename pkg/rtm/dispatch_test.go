package rtm

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatchSession(t *testing.T, reg *Registry) *Session {
	t.Helper()
	return New("xoxb-d", WithRegistry(reg), WithLogger(quietLogger()), WithSignalHandling(false))
}

func TestDispatch_NoHandlers(t *testing.T) {
	s := newDispatchSession(t, NewRegistry())
	assert.NoError(t, s.dispatch(context.Background(), KindWire, "reaction_added", Payload{}, nil))
}

func TestDispatch_OrderAndEventFields(t *testing.T) {
	reg := NewRegistry()
	var seen []*Event
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, reg.OnFunc(EventMessage, func(ctx context.Context, ev *Event) error {
			order = append(order, i)
			seen = append(seen, ev)
			return nil
		}))
	}
	s := newDispatchSession(t, reg)
	data := Payload{"channel": "C1", "text": "hi"}

	require.NoError(t, s.dispatch(context.Background(), KindWire, EventMessage, data, nil))

	assert.Equal(t, []int{1, 2, 3}, order)
	require.Len(t, seen, 3)
	ev := seen[0]
	assert.Equal(t, KindWire, ev.Kind)
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, data, ev.Data)
	assert.Same(t, s, ev.RTM)
	assert.Equal(t, "xoxb-d", ev.Web.Token())
}

func TestDispatch_SkippedOnceStopped(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	require.NoError(t, reg.OnFunc(EventMessage, rec.record(EventMessage)))
	require.NoError(t, reg.OnFunc(EventOpen, rec.record(EventOpen)))
	require.NoError(t, reg.OnFunc(EventClose, rec.record(EventClose)))
	require.NoError(t, reg.OnFunc(EventError, rec.record(EventError)))

	s := newDispatchSession(t, reg)
	s.Stop()

	ctx := context.Background()
	require.NoError(t, s.dispatch(ctx, KindWire, EventMessage, nil, nil))
	require.NoError(t, s.dispatch(ctx, KindOpen, EventOpen, nil, nil))
	require.NoError(t, s.dispatch(ctx, KindError, EventError, nil, errors.New("x")))
	require.NoError(t, s.dispatch(ctx, KindClose, EventClose, nil, nil))

	assert.Equal(t, []string{EventError, EventClose}, rec.list())
}

func TestDispatch_StopMidDispatch(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	require.NoError(t, reg.OnFunc(EventMessage,
		func(ctx context.Context, ev *Event) error {
			rec.add("first")
			ev.RTM.Stop()
			return nil
		},
		rec.record("second"),
	))
	s := newDispatchSession(t, reg)

	require.NoError(t, s.dispatch(context.Background(), KindWire, EventMessage, nil, nil))
	assert.Equal(t, []string{"first"}, rec.list())
}

func TestDispatch_HandlerErrorAborts(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	boom := errors.New("boom")
	require.NoError(t, reg.OnFunc(EventMessage,
		rec.record("first"),
		failingHandler(boom),
		rec.record("third"),
	))
	s := newDispatchSession(t, reg)

	err := s.dispatch(context.Background(), KindWire, EventMessage, nil, nil)

	var cbErr *CallbackError
	require.True(t, errors.As(err, &cbErr))
	assert.Equal(t, EventMessage, cbErr.Event)
	assert.Contains(t, cbErr.Handler, "failingHandler")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first"}, rec.list())
}

func TestDispatch_PanicBecomesCallbackError(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "kaboom", "panic: kaboom"},
		{"error", errors.New("bad state"), "panic: bad state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			require.NoError(t, reg.OnFunc(EventOpen, func(context.Context, *Event) error {
				panic(tt.value)
			}))
			s := newDispatchSession(t, reg)

			err := s.dispatch(context.Background(), KindOpen, EventOpen, nil, nil)

			var cbErr *CallbackError
			require.True(t, errors.As(err, &cbErr))
			assert.Contains(t, cbErr.Err.Error(), tt.want)
		})
	}
}

func TestDispatch_WireErrorIsNotLifecycleError(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	require.NoError(t, reg.OnWire("error", rec.record("wire")))
	require.NoError(t, reg.On(EventError, rec.record("lifecycle")))
	s := newDispatchSession(t, reg)
	ctx := context.Background()

	require.NoError(t, s.dispatch(ctx, KindWire, "error", Payload{"error": Payload{"code": 1}}, nil))
	assert.Equal(t, []string{"wire"}, rec.list())

	require.NoError(t, s.dispatch(ctx, KindError, EventError, nil, errors.New("dial")))
	assert.Equal(t, []string{"wire", "lifecycle"}, rec.list())
}

func TestDispatch_ErrorEventCarriesCause(t *testing.T) {
	reg := NewRegistry()
	var got error
	require.NoError(t, reg.OnFunc(EventError, func(ctx context.Context, ev *Event) error {
		got = ev.Err
		return nil
	}))
	s := newDispatchSession(t, reg)
	cause := errors.New("rtm: dial example.test: refused")

	require.NoError(t, s.dispatch(context.Background(), KindError, EventError, nil, cause))
	assert.Same(t, cause, got)
}

func failingHandler(err error) HandlerFunc {
	return func(context.Context, *Event) error { return err }
}
