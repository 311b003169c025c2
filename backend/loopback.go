package backend

import (
	"runtime"
	"sync"

	"github.com/dsacre/mididings-go/event"
)

// Loopback is a zero-dependency, in-process Backend: an input channel
// stands in for a real input port, and emitted events are recorded in a
// slice (see Outputs). It is what the engine's own test suite drives
// instead of opening hardware, the way a teacher's in-memory fake stands
// in for a real device in a unit test.
type Loopback struct {
	numOutPorts int

	in   chan event.MidiEvent
	stop chan struct{}
	done chan struct{}

	mu      sync.Mutex
	queue   []event.MidiEvent
	outputs []event.MidiEvent

	stopOnce sync.Once
}

// NewLoopback returns a Loopback reporting numOutPorts from NumOutPorts.
func NewLoopback(numOutPorts int) *Loopback {
	return &Loopback{
		numOutPorts: numOutPorts,
		in:          make(chan event.MidiEvent, 256),
	}
}

// Send injects ev as if it had arrived on the input port. It blocks if
// the internal channel is full — fine for tests, not for realtime use.
func (l *Loopback) Send(ev event.MidiEvent) {
	l.in <- ev
}

// Start arms the loopback: initCB runs once, then cycleCB runs once per
// value delivered to Send.
func (l *Loopback) Start(initCB, cycleCB func()) {
	l.stop = make(chan struct{})
	l.done = make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(l.done)
		initCB()
		for {
			select {
			case ev := <-l.in:
				l.mu.Lock()
				l.queue = append(l.queue, ev)
				l.mu.Unlock()
				cycleCB()
			case <-l.stop:
				return
			}
		}
	}()
}

// Stop halts dispatch and blocks until the cycle goroutine has exited.
// Safe to call more than once.
func (l *Loopback) Stop() {
	l.stopOnce.Do(func() {
		if l.stop == nil {
			return
		}
		close(l.stop)
		<-l.done
	})
}

// InputEvent implements Backend: a non-blocking dequeue from the
// internally buffered queue filled by the Start goroutine.
func (l *Loopback) InputEvent() (event.MidiEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return event.MidiEvent{}, false
	}
	ev := l.queue[0]
	l.queue = l.queue[1:]
	return ev, true
}

// OutputEvent implements Backend: records ev for test inspection.
func (l *Loopback) OutputEvent(ev event.MidiEvent) {
	l.mu.Lock()
	l.outputs = append(l.outputs, ev)
	l.mu.Unlock()
}

// OutputEvents implements Backend.
func (l *Loopback) OutputEvents(evs []event.MidiEvent) {
	l.mu.Lock()
	l.outputs = append(l.outputs, evs...)
	l.mu.Unlock()
}

// NumOutPorts implements Backend.
func (l *Loopback) NumOutPorts() int { return l.numOutPorts }

// Outputs returns a snapshot of every event emitted so far, in order.
func (l *Loopback) Outputs() []event.MidiEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.MidiEvent, len(l.outputs))
	copy(out, l.outputs)
	return out
}
