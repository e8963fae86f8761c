// Package statusflow applies appointment status changes optimistically: the
// new value is visible at once, the backend write is debounced, and a failed
// write restores the last committed value.
package statusflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matcare/matcare/internal/domain/appointment"
	"github.com/matcare/matcare/internal/platform/metrics"
)

// DefaultDebounce is how long Set waits for a newer value before writing.
const DefaultDebounce = 300 * time.Millisecond

// Field is the appointment column a Tracker manages.
type Field string

const (
	FieldStatus        Field = "status"
	FieldPaymentStatus Field = "payment_status"
)

func (f Field) normalize(v string) (string, bool) {
	switch f {
	case FieldStatus:
		return appointment.NormalizeStatus(v)
	case FieldPaymentStatus:
		return appointment.NormalizePaymentStatus(v)
	}
	return "", false
}

type State int

const (
	// Committed: the visible value is the one the backend holds.
	Committed State = iota
	// Pending: an optimistic value is visible and its write has not finished.
	Pending
	// Reverting: the write failed and the committed value is being restored.
	Reverting
)

func (s State) String() string {
	switch s {
	case Committed:
		return "committed"
	case Pending:
		return "pending"
	case Reverting:
		return "reverting"
	}
	return "unknown"
}

// Backend writes one value. It is called at most once per debounce window.
type Backend func(ctx context.Context, id uuid.UUID, value string) error

// Stopper is the part of *time.Timer the tracker uses.
type Stopper interface {
	Stop() bool
}

type Options struct {
	Debounce time.Duration
	// OnChange receives every change of the visible value: the optimistic
	// value on Set and the restored value after a failed write.
	OnChange func(id uuid.UUID, value string)
	// OnError receives backend failures, including those of superseded writes.
	OnError func(id uuid.UUID, err error)
	// AfterFunc schedules the debounced write. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Stopper
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
}

// Snapshot is the observable state of one appointment's field.
type Snapshot struct {
	State     State
	Value     string
	Committed string
}

type entry struct {
	state     State
	committed string
	pending   string
	gen       uint64
	timer     Stopper
}

func (e *entry) visible() string {
	if e.state == Pending {
		return e.pending
	}
	return e.committed
}

// Tracker holds one state machine per appointment for a single field.
type Tracker struct {
	field   Field
	backend Backend
	opts    Options

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	wg      sync.WaitGroup
}

func NewTracker(field Field, backend Backend, opts Options) *Tracker {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }
	}
	opts.Logger = opts.Logger.With().Str("component", "statusflow").Str("field", string(field)).Logger()
	return &Tracker{
		field:   field,
		backend: backend,
		opts:    opts,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Track seeds the committed value for id, usually from a freshly loaded
// appointment. It returns false for a value outside the field's enum.
func (t *Tracker) Track(id uuid.UUID, value string) bool {
	v, ok := t.field.normalize(value)
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		if e.state == Committed {
			e.committed = v
		}
		return true
	}
	t.entries[id] = &entry{state: Committed, committed: v}
	return true
}

// Snapshot reports the state for id. ok is false for untracked ids.
func (t *Tracker) Snapshot(id uuid.UUID) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{State: e.state, Value: e.visible(), Committed: e.committed}, true
}

// Set makes value visible at once and schedules the backend write after the
// debounce window. A later Set within the window replaces the scheduled
// write. Set returns false, changing nothing, when value is not in the
// field's enum or id is not tracked.
func (t *Tracker) Set(ctx context.Context, id uuid.UUID, value string) bool {
	v, ok := t.field.normalize(value)
	if !ok {
		return false
	}

	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if e.timer != nil && e.timer.Stop() {
		t.opts.Metrics.StatusUpdate(string(t.field), "superseded")
		t.wg.Done()
	}
	e.timer = nil
	if e.state != Pending && v == e.committed {
		t.mu.Unlock()
		return true
	}
	e.gen++
	gen := e.gen
	e.state = Pending
	e.pending = v
	t.wg.Add(1)
	bg := context.WithoutCancel(ctx)
	e.timer = t.opts.AfterFunc(t.opts.Debounce, func() { t.flush(bg, id, gen) })
	t.mu.Unlock()

	t.changed(id, v)
	return true
}

// flush sends the value scheduled for generation gen.
func (t *Tracker) flush(ctx context.Context, id uuid.UUID, gen uint64) {
	defer t.wg.Done()

	t.mu.Lock()
	e := t.entries[id]
	if e.gen != gen || e.state != Pending {
		t.mu.Unlock()
		return
	}
	value := e.pending
	t.mu.Unlock()

	err := t.backend(ctx, id, value)

	t.mu.Lock()
	if e.gen != gen {
		// A newer Set was issued. Its revert target is whatever the backend
		// now holds. A late success is shown only once that Set has settled.
		settled := false
		if err == nil && e.committed != value {
			e.committed = value
			settled = e.state == Committed
		}
		t.mu.Unlock()
		if settled {
			t.opts.Metrics.StatusUpdate(string(t.field), "late_commit")
			t.changed(id, value)
			return
		}
		if err != nil {
			t.opts.Metrics.StatusUpdate(string(t.field), "stale_failure")
			t.opts.Logger.Warn().Err(err).Str("appointment_id", id.String()).Msg("superseded status write failed")
			t.failed(id, err)
		}
		return
	}
	if err == nil {
		e.committed = value
		e.pending = ""
		e.state = Committed
		t.mu.Unlock()
		t.opts.Metrics.StatusUpdate(string(t.field), "committed")
		return
	}

	e.state = Reverting
	e.pending = ""
	old := e.committed
	t.mu.Unlock()

	t.opts.Metrics.StatusUpdate(string(t.field), "reverted")
	t.opts.Logger.Warn().Err(err).Str("appointment_id", id.String()).
		Str("attempted", value).Str("restored", old).Msg("status write failed, reverting")
	t.changed(id, old)
	t.failed(id, err)

	t.mu.Lock()
	late := ""
	if e.gen == gen && e.state == Reverting {
		e.state = Committed
		if e.committed != old {
			late = e.committed
		}
	}
	t.mu.Unlock()
	if late != "" {
		t.changed(id, late)
	}
}

// Wait blocks until every scheduled write has finished or been superseded.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) changed(id uuid.UUID, value string) {
	if t.opts.OnChange != nil {
		t.opts.OnChange(id, value)
	}
}

func (t *Tracker) failed(id uuid.UUID, err error) {
	if t.opts.OnError != nil {
		t.opts.OnError(id, err)
	}
}
