// Package patch defines the processing-unit contract that the engine
// drives, plus the one built-in patch the core ships: the output
// sanitiser.
package patch

import "github.com/dsacre/mididings-go/event"

// Patch is an externally supplied processing graph. Process may mutate
// events in place, and may append new events to buf — range.Buffer()
// gives access to the same buffer range refers into, and any event
// appended becomes visible to range's own live end. Process must not
// block; it runs on the realtime thread.
type Patch interface {
	Process(buf *event.Buffer, r event.Range)
}

// Func adapts a plain function to the Patch interface, the way teacher
// code adapts a bare method set to a small interface (sequencer.Device):
// most patches in this corpus are one behaviour, not a family of them.
type Func func(buf *event.Buffer, r event.Range)

// Process implements Patch.
func (f Func) Process(buf *event.Buffer, r event.Range) { f(buf, r) }

// Identity passes every event through unchanged. Used by tests and as a
// placeholder main patch for a scene that exists only for its init/exit
// transitions.
var Identity Patch = Func(func(buf *event.Buffer, r event.Range) {})

// Chain runs each patch in order over the same range, the way the
// engine itself chains pre/main/post/sanitise. Useful for composing
// illustrative patches in the demo binary without a full patch compiler.
func Chain(patches ...Patch) Patch {
	return Func(func(buf *event.Buffer, r event.Range) {
		for _, p := range patches {
			p.Process(buf, r)
		}
	})
}
