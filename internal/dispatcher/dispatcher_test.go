package dispatcher

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level string
	msg   string
	kv    []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, kv: kv})
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.add("debug", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.add("info", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("error", msg, kv) }

func (l *recordingLogger) levels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.level + " " + e.msg
	}
	return out
}

func newDispatcher(t *testing.T) (*Dispatcher, *recordingLogger) {
	t.Helper()
	log := &recordingLogger{}
	d, err := New(log)
	require.NoError(t, err)
	return d, log
}

func TestDispatch_RoutesToHandler(t *testing.T) {
	d, _ := newDispatcher(t)

	var got Event
	d.Register(":SEEK:", func(e Event) (any, error) {
		got = e
		return 2.5, nil
	})

	out, err := d.Dispatch(Event{Command: ":SEEK:", Args: []string{"2.5"}})
	require.NoError(t, err)
	assert.Equal(t, 2.5, out)
	assert.Equal(t, []string{"2.5"}, got.Args)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":NOPE:"})
	assert.EqualError(t, err, "unknown command: :NOPE:")
}

func TestDispatch_HandlerErrorPassesThrough(t *testing.T) {
	d, _ := newDispatcher(t)
	boom := errors.New("no media")
	d.Register(":PLAY:", func(Event) (any, error) { return nil, boom })

	_, err := d.Dispatch(Event{Command: ":PLAY:"})
	assert.ErrorIs(t, err, boom)
}

func TestRegister_ReplacesAndUnregisters(t *testing.T) {
	d, _ := newDispatcher(t)
	d.Register(":KEY:", func(Event) (any, error) { return "first", nil })
	d.Register(":KEY:", func(Event) (any, error) { return "second", nil })
	assert.Equal(t, 1, d.Len())

	out, _ := d.Dispatch(Event{Command: ":KEY:"})
	assert.Equal(t, "second", out)

	assert.True(t, d.Unregister(":KEY:"))
	assert.False(t, d.Unregister(":KEY:"))
	assert.False(t, d.HasHandler(":KEY:"))
	assert.Zero(t, d.Len())
}

func TestDispatch_HandlerMayRewire(t *testing.T) {
	d, _ := newDispatcher(t)
	d.Register(":KEY:", func(Event) (any, error) { return "stale", nil })
	d.Register(":MOUNT:", func(Event) (any, error) {
		d.Unregister(":KEY:")
		d.Register(":KEY:", func(Event) (any, error) { return "fresh", nil })
		return nil, nil
	})

	_, err := d.Dispatch(Event{Command: ":MOUNT:"})
	require.NoError(t, err)
	out, err := d.Dispatch(Event{Command: ":KEY:"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", out)
}

func TestLogged_TracesCalls(t *testing.T) {
	d, log := newDispatcher(t)
	d.Register(":CLEAR:", func(Event) (any, error) { return nil, nil }, Logged())
	d.Register(":EXPORT:", func(Event) (any, error) { return nil, errors.New("not ready") }, Logged())
	d.Register(":TICK:", func(Event) (any, error) { return nil, nil })

	_, _ = d.Dispatch(Event{Command: ":CLEAR:"})
	_, _ = d.Dispatch(Event{Command: ":EXPORT:", Args: []string{"file"}})
	_, _ = d.Dispatch(Event{Command: ":TICK:"})

	assert.Equal(t, []string{
		"debug handling event",
		"debug event complete",
		"debug handling event",
		"error event failed",
	}, log.levels())
	assert.Contains(t, log.entries[3].kv, ":EXPORT:")
}

func TestLogged_WithoutLogger(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)
	d.Register(":CLEAR:", func(Event) (any, error) { return "ok", nil }, Logged())

	out, err := d.Dispatch(Event{Command: ":CLEAR:"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
