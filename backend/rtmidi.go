package backend

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register the platform driver

	"github.com/dsacre/mididings-go/event"
)

// portScanTimeout guards against the CoreMIDI hang the teacher codebase
// works around in its own port-listing code: GetInPorts/GetOutPorts can
// block forever if the OS MIDI server is wedged.
const portScanTimeout = 3 * time.Second

// PortMIDI is a concrete Backend built on gitlab.com/gomidi/midi/v2. It
// opens one input port and one output port by name (or the first port
// of that direction if name is empty) and bridges gomidi's callback
// style onto the Backend poll-based contract.
type PortMIDI struct {
	inPort  drivers.In
	outPort drivers.Out
	send    func(gomidi.Message) error

	stopListen func()

	mu    sync.Mutex
	queue []event.MidiEvent

	lockThreadOnce sync.Once

	stopOnce sync.Once
	done     chan struct{}
}

// OpenPortMIDI opens the named input and output ports. An empty name
// selects the first available port of that direction; if that direction
// has no port at all, the side is left unopened (an output-only or
// input-only backend). A non-empty name that matches no port is an error.
func OpenPortMIDI(inputName, outputName string) (*PortMIDI, error) {
	ins, outs, err := scanPorts()
	if err != nil {
		return nil, err
	}

	p := &PortMIDI{}

	if in, ok := selectPort(ins, inputName); ok {
		p.inPort = in
	} else if inputName != "" {
		return nil, fmt.Errorf("backend: input port %q not found", inputName)
	}

	if out, ok := selectPort(outs, outputName); ok {
		p.outPort = out
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, fmt.Errorf("backend: open output port: %w", err)
		}
		p.send = send
	} else if outputName != "" {
		return nil, fmt.Errorf("backend: output port %q not found", outputName)
	}

	return p, nil
}

// scanPorts lists available ports with the same timeout-guarded
// goroutine the teacher's cmd/miditest uses against a hung CoreMIDI.
func scanPorts() ([]drivers.In, []drivers.Out, error) {
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r.ins, r.outs, nil
	case <-time.After(portScanTimeout):
		return nil, nil, fmt.Errorf("backend: MIDI port scan timed out after %s", portScanTimeout)
	}
}

func selectPort[P interface{ String() string }](ports []P, name string) (P, bool) {
	var zero P
	if len(ports) == 0 {
		return zero, false
	}
	if name == "" {
		return ports[0], true
	}
	for _, p := range ports {
		if strings.EqualFold(p.String(), name) {
			return p, true
		}
	}
	return zero, false
}

// Start implements Backend: listens on the input port, decoding every
// message into an event.MidiEvent and running cycleCB once per message.
func (p *PortMIDI) Start(initCB, cycleCB func()) {
	p.done = make(chan struct{})
	initCB()

	if p.inPort == nil {
		return
	}

	stop, err := gomidi.ListenTo(p.inPort, func(msg gomidi.Message, _ int32) {
		// rtmididrv delivers every message for a given input port from
		// the same goroutine, so locking once on first delivery pins
		// that goroutine to its OS thread for the listener's lifetime —
		// the same thing midiOutputLoop does for its own realtime loop.
		p.lockThreadOnce.Do(runtime.LockOSThread)

		ev, ok := decodeMessage(msg)
		if !ok {
			return
		}
		p.mu.Lock()
		p.queue = append(p.queue, ev)
		p.mu.Unlock()
		cycleCB()
	})
	if err != nil {
		return
	}
	p.stopListen = stop
}

// Stop implements Backend. Safe to call more than once.
func (p *PortMIDI) Stop() {
	p.stopOnce.Do(func() {
		if p.stopListen != nil {
			p.stopListen()
		}
	})
}

// InputEvent implements Backend.
func (p *PortMIDI) InputEvent() (event.MidiEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return event.MidiEvent{}, false
	}
	ev := p.queue[0]
	p.queue = p.queue[1:]
	return ev, true
}

// OutputEvent implements Backend.
func (p *PortMIDI) OutputEvent(ev event.MidiEvent) {
	if p.send == nil {
		return
	}
	if msg, ok := encodeEvent(ev); ok {
		_ = p.send(msg)
	}
}

// OutputEvents implements Backend.
func (p *PortMIDI) OutputEvents(evs []event.MidiEvent) {
	for _, ev := range evs {
		p.OutputEvent(ev)
	}
}

// NumOutPorts implements Backend: exactly one opened output port, or
// zero if no output port was opened.
func (p *PortMIDI) NumOutPorts() int {
	if p.outPort == nil {
		return 0
	}
	return 1
}

// decodeMessage translates a gomidi.Message into a core event using the
// Get* accessor family, the same pattern the teacher's keyboard
// controller uses for NoteOn. System Common/Realtime status bytes carry
// no channel and, except for the three System Common messages with a
// data byte, no payload either; they are recognised via Message.Is
// against the library's status-byte Type constants.
func decodeMessage(msg gomidi.Message) (event.MidiEvent, bool) {
	var ch, note, vel, ctrl, val uint8
	var pbVal int16
	var sysex []byte
	var songPos uint16

	switch {
	case msg.GetNoteOn(&ch, &note, &vel):
		return event.NewNoteOn(0, int(ch), int(note), int(vel)), true
	case msg.GetNoteOff(&ch, &note, &vel):
		return event.NewNoteOff(0, int(ch), int(note), int(vel)), true
	case msg.GetControlChange(&ch, &ctrl, &val):
		return event.NewCtrl(0, int(ch), int(ctrl), int(val)), true
	case msg.GetPitchBend(&ch, &pbVal, nil):
		return event.NewPitchBend(0, int(ch), int(pbVal)), true
	case msg.GetAfterTouch(&ch, &val):
		return event.NewAftertouch(0, int(ch), int(val)), true
	case msg.GetPolyAfterTouch(&ch, &note, &val):
		return event.NewPolyAftertouch(0, int(ch), int(note), int(val)), true
	case msg.GetProgramChange(&ch, &val):
		return event.NewProgram(0, int(ch), int(val)), true
	case msg.GetSysEx(&sysex):
		return event.NewSysEx(0, sysex), true
	case msg.GetQuarterFrame(&val):
		return event.MidiEvent{Type: event.SysCmQFrame, Value: int(val)}, true
	case msg.GetSongPosition(&songPos):
		return event.MidiEvent{Type: event.SysCmSongPos, Value: int(songPos)}, true
	case msg.GetSongSelect(&val):
		return event.MidiEvent{Type: event.SysCmSongSel, Value: int(val)}, true
	case msg.Is(gomidi.TuneMsg):
		return event.MidiEvent{Type: event.SysCmTuneReq}, true
	case msg.Is(gomidi.TimingClockMsg):
		return event.MidiEvent{Type: event.SysRtClock}, true
	case msg.Is(gomidi.StartMsg):
		return event.MidiEvent{Type: event.SysRtStart}, true
	case msg.Is(gomidi.ContinueMsg):
		return event.MidiEvent{Type: event.SysRtContinue}, true
	case msg.Is(gomidi.StopMsg):
		return event.MidiEvent{Type: event.SysRtStop}, true
	case msg.Is(gomidi.ActiveSenseMsg):
		return event.MidiEvent{Type: event.SysRtSensing}, true
	case msg.Is(gomidi.ResetMsg):
		return event.MidiEvent{Type: event.SysRtReset}, true
	default:
		return event.MidiEvent{}, false
	}
}

// encodeEvent is decodeMessage's inverse, used by OutputEvent.
func encodeEvent(ev event.MidiEvent) (gomidi.Message, bool) {
	switch ev.Type {
	case event.NoteOn:
		return gomidi.NoteOn(uint8(ev.Channel), uint8(ev.Note), uint8(ev.Velocity)), true
	case event.NoteOff:
		return gomidi.NoteOff(uint8(ev.Channel), uint8(ev.Note)), true
	case event.Ctrl:
		return gomidi.ControlChange(uint8(ev.Channel), uint8(ev.Param), uint8(ev.Value)), true
	case event.PitchBend:
		return gomidi.Pitchbend(uint8(ev.Channel), int16(ev.Value)), true
	case event.Aftertouch:
		return gomidi.AfterTouch(uint8(ev.Channel), uint8(ev.Value)), true
	case event.PolyAftertouch:
		return gomidi.PolyAfterTouch(uint8(ev.Channel), uint8(ev.Note), uint8(ev.Value)), true
	case event.Program:
		return gomidi.ProgramChange(uint8(ev.Channel), uint8(ev.Value)), true
	case event.SysEx:
		return gomidi.SysEx(ev.SysExData), true
	case event.SysCmQFrame:
		return gomidi.QuarterFrame(uint8(ev.Value)), true
	case event.SysCmSongPos:
		return gomidi.SongPosition(uint16(ev.Value)), true
	case event.SysCmSongSel:
		return gomidi.SongSelect(uint8(ev.Value)), true
	case event.SysCmTuneReq:
		return gomidi.TuneRequest(), true
	case event.SysRtClock:
		return gomidi.TimingClock(), true
	case event.SysRtStart:
		return gomidi.Start(), true
	case event.SysRtContinue:
		return gomidi.Continue(), true
	case event.SysRtStop:
		return gomidi.Stop(), true
	case event.SysRtSensing:
		return gomidi.ActiveSensing(), true
	case event.SysRtReset:
		return gomidi.Reset(), true
	default:
		return nil, false
	}
}
