package patch

import (
	"reflect"
	"testing"

	"github.com/dsacre/mididings-go/event"
)

func runSanitize(t *testing.T, numOutPorts int, events ...event.MidiEvent) []event.MidiEvent {
	t.Helper()
	buf := event.NewBuffer(8)
	for _, ev := range events {
		buf.InsertAtEnd(ev)
	}
	NewSanitizer(numOutPorts, false, nil).Process(buf, buf.All())
	return buf.Events()
}

func TestSanitizePassesWellFormedNotes(t *testing.T) {
	out := runSanitize(t, 1,
		event.NewNoteOn(0, 0, 60, 64),
		event.NewNoteOff(0, 0, 60, 0),
	)
	if len(out) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(out), out)
	}
}

func TestSanitizeDropsOutOfRangeChannel(t *testing.T) {
	out := runSanitize(t, 1, event.NewNoteOn(0, 16, 60, 64))
	if len(out) != 0 {
		t.Fatalf("got %d events, want 0", len(out))
	}
}

func TestSanitizeDropsOutOfRangePort(t *testing.T) {
	out := runSanitize(t, 1, event.NewNoteOn(1, 0, 60, 64))
	if len(out) != 0 {
		t.Fatalf("got %d events, want 0", len(out))
	}
}

func TestSanitizeClampsPitchBend(t *testing.T) {
	out := runSanitize(t, 1, event.NewPitchBend(0, 0, 99999))
	if len(out) != 1 || out[0].Value != 8191 {
		t.Fatalf("got %+v, want Value=8191", out)
	}
	out = runSanitize(t, 1, event.NewPitchBend(0, 0, -99999))
	if len(out) != 1 || out[0].Value != -8192 {
		t.Fatalf("got %+v, want Value=-8192", out)
	}
}

func TestSanitizeClampsCtrlValueNotVelocity(t *testing.T) {
	ev := event.NewCtrl(0, 0, 7, 500)
	ev.Velocity = -999 // must be ignored: clamp must read Value, not Velocity
	out := runSanitize(t, 1, ev)
	if len(out) != 1 || out[0].Value != 127 {
		t.Fatalf("got %+v, want Value=127 (Ctrl clamp must read Value field)", out)
	}
}

func TestSanitizeClampsAftertouchValueNotVelocity(t *testing.T) {
	ev := event.NewAftertouch(0, 0, 500)
	ev.Velocity = -999
	out := runSanitize(t, 1, ev)
	if len(out) != 1 || out[0].Value != 127 {
		t.Fatalf("got %+v, want Value=127 (Aftertouch clamp must read Value field)", out)
	}
}

func TestSanitizeSysExValidation(t *testing.T) {
	ok := runSanitize(t, 1, event.NewSysEx(0, []byte{0xF0, 0x7E, 0xF7}))
	if len(ok) != 1 {
		t.Fatalf("valid sysex dropped: %+v", ok)
	}
	bad := runSanitize(t, 1, event.NewSysEx(0, []byte{0xF0, 0x7E}))
	if len(bad) != 0 {
		t.Fatalf("invalid sysex kept: %+v", bad)
	}
}

func TestSanitizeDropsDummyUnconditionally(t *testing.T) {
	out := runSanitize(t, 1, event.NewDummy())
	if len(out) != 0 {
		t.Fatalf("Dummy event survived sanitisation: %+v", out)
	}
}

func TestSanitizePassesPolyAftertouchAndSystemMessages(t *testing.T) {
	out := runSanitize(t, 1,
		event.NewPolyAftertouch(0, 0, 60, 127),
		event.MidiEvent{Type: event.SysRtClock},
		event.MidiEvent{Type: event.SysCmTuneReq},
	)
	if len(out) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(out), out)
	}
}

func TestSanitizeDropsOutOfRangeChannelOnNonChannelMessages(t *testing.T) {
	out := runSanitize(t, 1, event.MidiEvent{Type: event.SysRtClock, Channel: 20})
	if len(out) != 0 {
		t.Fatalf("got %+v, want dropped: channel check must apply regardless of event type", out)
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	first := runSanitize(t, 1,
		event.NewNoteOn(0, 0, 200, 999), // invalid note, dropped
		event.NewCtrl(0, 0, 7, 300),     // clamped to 127
		event.NewPitchBend(0, 0, 20000), // clamped to 8191
	)
	buf := event.NewBuffer(8)
	for _, ev := range first {
		buf.InsertAtEnd(ev)
	}
	NewSanitizer(1, false, nil).Process(buf, buf.All())
	second := buf.Events()

	if len(first) != len(second) {
		t.Fatalf("sanitising twice changed length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Errorf("event %d changed on second sanitise pass: %+v vs %+v", i, first[i], second[i])
		}
	}
}
