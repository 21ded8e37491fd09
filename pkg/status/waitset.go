package status

import (
	"sync"
	"time"

	"github.com/lumendds/rtps"
)

// Condition is one entity's StatusCondition (spec §4.8): its
// trigger-value is true iff (EnabledStatuses ∩ changed statuses) is
// non-empty.
type Condition struct {
	mu        sync.Mutex
	enabled   Kind
	triggered Kind
	ws        *WaitSet // attached WaitSet, if any, woken on Raise
}

// NewCondition builds a Condition with the given enabled status mask.
func NewCondition(enabled Kind) *Condition {
	return &Condition{enabled: enabled}
}

// SetEnabledStatuses replaces the mask of statuses this condition
// reacts to.
func (c *Condition) SetEnabledStatuses(mask Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = mask
}

// Raise marks kind as changed. If kind is in the enabled mask the
// condition's trigger-value becomes true and any attached WaitSet is woken.
func (c *Condition) Raise(kind Kind) {
	c.mu.Lock()
	if c.enabled&kind == 0 {
		c.mu.Unlock()
		return
	}
	c.triggered |= kind
	ws := c.ws
	c.mu.Unlock()
	if ws != nil {
		ws.wake()
	}
}

// Clear resets kind's changed bit, e.g. after a listener or waiter has
// observed it.
func (c *Condition) Clear(kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggered &^= kind
}

// TriggerValue reports whether any enabled status is currently raised.
func (c *Condition) TriggerValue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggered != 0
}

// TriggeredStatuses returns the currently-raised, enabled status mask.
func (c *Condition) TriggeredStatuses() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggered
}

func (c *Condition) attach(ws *WaitSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws = ws
}

func (c *Condition) detach(ws *WaitSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == ws {
		c.ws = nil
	}
}

// WaitSet blocks a user thread until any attached Condition's
// trigger-value becomes true or a timeout elapses (spec §4.8, §5).
type WaitSet struct {
	mu         sync.Mutex
	conditions map[*Condition]bool
	wakeCh     chan struct{}
	deleted    bool
}

// NewWaitSet builds an empty WaitSet.
func NewWaitSet() *WaitSet {
	return &WaitSet{conditions: make(map[*Condition]bool), wakeCh: make(chan struct{}, 1)}
}

// Attach adds c to the set of conditions this WaitSet watches.
func (w *WaitSet) Attach(c *Condition) {
	w.mu.Lock()
	w.conditions[c] = true
	w.mu.Unlock()
	c.attach(w)
}

// Detach removes c from this WaitSet.
func (w *WaitSet) Detach(c *Condition) {
	w.mu.Lock()
	delete(w.conditions, c)
	w.mu.Unlock()
	c.detach(w)
}

func (w *WaitSet) wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// activeConditions returns every attached condition currently
// triggered.
func (w *WaitSet) activeConditions() []*Condition {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*Condition
	for c := range w.conditions {
		if c.TriggerValue() {
			out = append(out, c)
		}
	}
	return out
}

// Wait blocks until at least one attached condition's trigger-value is
// true, or timeout elapses (spec §5 suspension points), returning the
// active conditions. It returns ErrTimeout on expiry and
// ErrAlreadyDeleted if the WaitSet's owning participant has been
// deleted out from under it (spec §5 cancellation).
func (w *WaitSet) Wait(timeout time.Duration) ([]*Condition, error) {
	deadline := time.Now().Add(timeout)
	for {
		if w.mu.TryLock() {
			deleted := w.deleted
			w.mu.Unlock()
			if deleted {
				return nil, rtps.ErrAlreadyDeleted
			}
		}
		if active := w.activeConditions(); len(active) > 0 {
			return active, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, rtps.ErrTimeout
		}
		wait := remaining
		if wait > 20*time.Millisecond {
			wait = 20 * time.Millisecond
		}
		select {
		case <-w.wakeCh:
		case <-time.After(wait):
		}
	}
}

// Delete marks the WaitSet as cancelled (spec §5: "Participant
// deletion cancels all outstanding waits... with AlreadyDeleted"),
// waking any blocked Wait call.
func (w *WaitSet) Delete() {
	w.mu.Lock()
	w.deleted = true
	w.mu.Unlock()
	w.wake()
}
