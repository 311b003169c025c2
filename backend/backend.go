// Package backend defines the I/O boundary the engine drives: a way to
// be told about new input events and a way to emit output events,
// without the core knowing whether those events come from real MIDI
// hardware or an in-process stand-in.
package backend

import "github.com/dsacre/mididings-go/event"

// Backend is the engine's I/O contract. Start arms the backend: it must
// call initCB exactly once, then cycleCB once per driver tick (for
// PortMIDI, once per decoded input message; for Loopback, once per
// value sent to its input channel). Stop halts dispatch and blocks
// until no cycle is in flight; it is idempotent.
//
// InputEvent is a non-blocking poll, used by the engine's cycle
// callback to drain whatever arrived since the last tick. OutputEvent
// and OutputEvents enqueue events for transmission; NumOutPorts reports
// how many output ports the sanitiser should treat as in-range.
type Backend interface {
	Start(initCB, cycleCB func())
	Stop()
	InputEvent() (event.MidiEvent, bool)
	OutputEvent(ev event.MidiEvent)
	OutputEvents(evs []event.MidiEvent)
	NumOutPorts() int
}
