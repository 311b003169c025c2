package event

import "testing"

func TestBufferInsertAndIterate(t *testing.T) {
	b := NewBuffer(4)
	p0 := b.InsertAtEnd(NewNoteOn(0, 0, 60, 64))
	p1 := b.InsertAtEnd(NewNoteOn(0, 0, 61, 64))

	if p0 != 0 || p1 != 1 {
		t.Fatalf("unexpected positions: %d, %d", p0, p1)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if got := b.At(p1).Note; got != 61 {
		t.Errorf("At(p1).Note = %d, want 61", got)
	}
}

func TestBufferClearReusesStorage(t *testing.T) {
	b := NewBuffer(2)
	b.InsertAtEnd(NewNoteOn(0, 0, 60, 64))
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", b.Len())
	}
	p := b.InsertAtEnd(NewNoteOn(0, 0, 61, 64))
	if p != 0 {
		t.Fatalf("position after Clear = %d, want 0", p)
	}
}

func TestRangeLiveEnd(t *testing.T) {
	b := NewBuffer(8)
	pos := b.InsertAtEnd(NewNoteOn(0, 0, 60, 64))
	r := b.RangeFrom(pos)

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	// Simulate a patch appending a new event while "inside" the range.
	b.InsertAtEnd(NewNoteOff(0, 0, 60, 0))

	if r.Len() != 2 {
		t.Fatalf("Len() after append = %d, want 2 (range end must be live)", r.Len())
	}
	if r.At(1).Type != NoteOff {
		t.Errorf("At(1).Type = %v, want NoteOff", r.At(1).Type)
	}
}

func TestRangeForEachSeesAppendsDuringIteration(t *testing.T) {
	b := NewBuffer(8)
	pos := b.InsertAtEnd(NewNoteOn(0, 0, 60, 64))
	r := b.RangeFrom(pos)

	seen := 0
	r.ForEach(func(i int, ev MidiEvent) {
		seen++
		if i == 0 {
			// Append from within the first callback; ForEach must visit it too.
			b.InsertAtEnd(NewNoteOff(0, 0, 60, 0))
		}
	})

	if seen != 2 {
		t.Fatalf("ForEach visited %d events, want 2", seen)
	}
}

func TestValidSysEx(t *testing.T) {
	cases := []struct {
		bytes []byte
		want  bool
	}{
		{[]byte{0xF0, 0x7E, 0xF7}, true},
		{[]byte{0xF0, 0x7E}, false},
		{[]byte{0xF0}, false},
		{nil, false},
		{[]byte{0x00, 0xF7}, false},
	}
	for _, c := range cases {
		ev := NewSysEx(0, c.bytes)
		if got := ev.ValidSysEx(); got != c.want {
			t.Errorf("ValidSysEx(%v) = %v, want %v", c.bytes, got, c.want)
		}
	}
}
