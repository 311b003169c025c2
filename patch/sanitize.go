package patch

import "github.com/dsacre/mididings-go/event"

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Warner receives realtime-path diagnostics. The sanitiser calls it only
// when verbose diagnostics are enabled; implementations must not block or
// allocate beyond formatting the message (see telemetry.Logger.Warn).
type Warner interface {
	Warn(category, format string, args ...any)
}

type noopWarner struct{}

func (noopWarner) Warn(category, format string, args ...any) {}

// NewSanitizer returns the built-in terminal patch that enforces MIDI
// range correctness on every event it sees, dropping anything malformed.
// numOutPorts is read once, at construction; the engine builds its
// sanitiser once, in engine.New, so a later change in the backend's port
// count is not seen (the demo backends keep one port count for the
// engine's lifetime). The invalid-port warning is issued at most once
// per sanitiser. warn may be nil, in which case diagnostics are discarded.
func NewSanitizer(numOutPorts int, verbose bool, warn Warner) Patch {
	if warn == nil {
		warn = noopWarner{}
	}
	portWarned := false
	return Func(func(buf *event.Buffer, r event.Range) {
		n := r.Len()
		for i := 0; i < n; i++ {
			if r.DroppedAt(i) {
				continue
			}
			ev := r.At(i)
			if sanitized, ok := sanitizeOne(ev, numOutPorts, verbose, warn, &portWarned); ok {
				r.SetAt(i, sanitized)
			} else {
				r.DropAt(i)
			}
		}
	})
}

// sanitizeOne applies the per-type rule table from the spec. It returns
// the (possibly clamped) event and true if it should be kept, or the zero
// value and false if it must be dropped.
func sanitizeOne(ev event.MidiEvent, numOutPorts int, verbose bool, warn Warner, portWarned *bool) (event.MidiEvent, bool) {
	if ev.Port < 0 || ev.Port >= numOutPorts {
		if verbose && numOutPorts > 0 && !*portWarned {
			*portWarned = true
			warn.Warn("sanitize", "invalid output port %d, event discarded", ev.Port)
		}
		return event.MidiEvent{}, false
	}
	if ev.Channel < 0 || ev.Channel > 15 {
		if verbose {
			warn.Warn("sanitize", "invalid channel %d, event discarded", ev.Channel)
		}
		return event.MidiEvent{}, false
	}

	switch ev.Type {
	case event.NoteOn, event.NoteOff:
		if ev.Note < 0 || ev.Note > 127 {
			if verbose {
				warn.Warn("sanitize", "invalid note number %d, event discarded", ev.Note)
			}
			return event.MidiEvent{}, false
		}
		ev.Velocity = clamp(ev.Velocity, 0, 127)
		if ev.Type == event.NoteOn && ev.Velocity < 0 {
			// Unreachable after the clamp above; kept to mirror the
			// spec's explicit "specified for safety" rule.
			return event.MidiEvent{}, false
		}
		return ev, true

	case event.Ctrl:
		if ev.Param < 0 || ev.Param > 127 {
			if verbose {
				warn.Warn("sanitize", "invalid controller number %d, event discarded", ev.Param)
			}
			return event.MidiEvent{}, false
		}
		ev.Value = clamp(ev.Value, 0, 127)
		return ev, true

	case event.PitchBend:
		ev.Value = clamp(ev.Value, -8192, 8191)
		return ev, true

	case event.Aftertouch:
		ev.Value = clamp(ev.Value, 0, 127)
		return ev, true

	case event.Program:
		if ev.Value < 0 || ev.Value > 127 {
			if verbose {
				warn.Warn("sanitize", "invalid program number %d, event discarded", ev.Value)
			}
			return event.MidiEvent{}, false
		}
		return ev, true

	case event.SysEx:
		if !ev.ValidSysEx() {
			if verbose {
				warn.Warn("sanitize", "invalid sysex, event discarded")
			}
			return event.MidiEvent{}, false
		}
		return ev, true

	case event.PolyAftertouch,
		event.SysCmQFrame, event.SysCmSongPos, event.SysCmSongSel, event.SysCmTuneReq,
		event.SysRtClock, event.SysRtStart, event.SysRtContinue, event.SysRtStop,
		event.SysRtSensing, event.SysRtReset:
		return ev, true

	case event.Dummy:
		return event.MidiEvent{}, false

	default:
		if verbose {
			warn.Warn("sanitize", "unknown event type, event discarded")
		}
		return event.MidiEvent{}, false
	}
}
