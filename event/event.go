// Package event defines the MIDI event value type and the growable buffer
// that a processing cycle uses to hold the events it produces.
package event

// Type identifies which payload a MidiEvent carries.
type Type int

const (
	NoteOn Type = iota
	NoteOff
	Ctrl
	PitchBend
	Aftertouch
	PolyAftertouch
	Program
	SysEx
	SysCmQFrame
	SysCmSongPos
	SysCmSongSel
	SysCmTuneReq
	SysRtClock
	SysRtStart
	SysRtContinue
	SysRtStop
	SysRtSensing
	SysRtReset
	// Dummy drives init/exit patches through the graph. It never reaches
	// a real output port; the sanitiser drops it unconditionally.
	Dummy
)

func (t Type) String() string {
	switch t {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	case Ctrl:
		return "Ctrl"
	case PitchBend:
		return "PitchBend"
	case Aftertouch:
		return "Aftertouch"
	case PolyAftertouch:
		return "PolyAftertouch"
	case Program:
		return "Program"
	case SysEx:
		return "SysEx"
	case SysCmQFrame:
		return "SysCmQFrame"
	case SysCmSongPos:
		return "SysCmSongPos"
	case SysCmSongSel:
		return "SysCmSongSel"
	case SysCmTuneReq:
		return "SysCmTuneReq"
	case SysRtClock:
		return "SysRtClock"
	case SysRtStart:
		return "SysRtStart"
	case SysRtContinue:
		return "SysRtContinue"
	case SysRtStop:
		return "SysRtStop"
	case SysRtSensing:
		return "SysRtSensing"
	case SysRtReset:
		return "SysRtReset"
	case Dummy:
		return "Dummy"
	default:
		return "Unknown"
	}
}

// MidiEvent is a single MIDI message flowing through the engine. It is
// cheap to copy: the only heap payload, SysEx bytes, is held by reference.
type MidiEvent struct {
	Type    Type
	Port    int
	Channel int

	// NoteOn / NoteOff payload. PolyAftertouch also uses Note, with its
	// pressure in Value.
	Note     int
	Velocity int

	// Ctrl / PitchBend / Aftertouch / PolyAftertouch / Program payload,
	// and the data value of the System Common messages. Ctrl
	// additionally uses Param.
	Param int
	Value int

	// SysEx payload. Must start 0xF0 and end 0xF7 once validated.
	SysExData []byte
}

// NewNoteOn builds a NoteOn event.
func NewNoteOn(port, channel, note, velocity int) MidiEvent {
	return MidiEvent{Type: NoteOn, Port: port, Channel: channel, Note: note, Velocity: velocity}
}

// NewNoteOff builds a NoteOff event.
func NewNoteOff(port, channel, note, velocity int) MidiEvent {
	return MidiEvent{Type: NoteOff, Port: port, Channel: channel, Note: note, Velocity: velocity}
}

// NewCtrl builds a controller-change event.
func NewCtrl(port, channel, param, value int) MidiEvent {
	return MidiEvent{Type: Ctrl, Port: port, Channel: channel, Param: param, Value: value}
}

// NewPitchBend builds a pitch-bend event. value is signed, [-8192,8191].
func NewPitchBend(port, channel, value int) MidiEvent {
	return MidiEvent{Type: PitchBend, Port: port, Channel: channel, Value: value}
}

// NewAftertouch builds a channel-aftertouch event.
func NewAftertouch(port, channel, value int) MidiEvent {
	return MidiEvent{Type: Aftertouch, Port: port, Channel: channel, Value: value}
}

// NewPolyAftertouch builds a polyphonic-aftertouch event.
func NewPolyAftertouch(port, channel, note, value int) MidiEvent {
	return MidiEvent{Type: PolyAftertouch, Port: port, Channel: channel, Note: note, Value: value}
}

// NewProgram builds a program-change event.
func NewProgram(port, channel, value int) MidiEvent {
	return MidiEvent{Type: Program, Port: port, Channel: channel, Value: value}
}

// NewSysEx builds a system-exclusive event. bytes is taken by reference,
// not copied; callers must not mutate it afterwards.
func NewSysEx(port int, bytes []byte) MidiEvent {
	return MidiEvent{Type: SysEx, Port: port, SysExData: bytes}
}

// NewDummy builds the internal sentinel used to drive init/exit patches.
func NewDummy() MidiEvent {
	return MidiEvent{Type: Dummy}
}

// IsChannelMessage reports whether this event type carries a channel.
func (e MidiEvent) IsChannelMessage() bool {
	switch e.Type {
	case NoteOn, NoteOff, Ctrl, PitchBend, Aftertouch, PolyAftertouch, Program:
		return true
	default:
		return false
	}
}

// ValidSysEx reports whether SysExData satisfies the MIDI framing rule:
// length >= 2, starts 0xF0, ends 0xF7.
func (e MidiEvent) ValidSysEx() bool {
	b := e.SysExData
	return len(b) >= 2 && b[0] == 0xF0 && b[len(b)-1] == 0xF7
}
