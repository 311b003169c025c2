package scene

import (
	"github.com/dsacre/mididings-go/event"
	"github.com/dsacre/mididings-go/patch"
)

// noteKey identifies a held note by the port/channel/pitch triple a
// later NoteOff will repeat.
type noteKey struct {
	Port    int
	Channel int
	Note    int
}

// sustainKey identifies a held sustain pedal by port/channel; there is
// at most one pedal per channel.
type sustainKey struct {
	Port    int
	Channel int
}

// Matcher remembers which patch is responsible for continuing events
// that belong to a note or sustain pedal started under a previous
// patch, so a scene switch mid-note doesn't strand its NoteOff or
// pedal-release with the newly active patch instead.
//
// Both tables are bounded: a stuck controller that never sends the
// matching NoteOff/pedal-up can't grow them without limit, only evict
// older entries. Grounded on original_source/src/engine.cc's
// _noteOwner/_sustainOwner handling in get_matching_patch.
type Matcher struct {
	notes    *boundedMap[noteKey, patch.Patch]
	sustains *boundedMap[sustainKey, patch.Patch]
}

// NewMatcher returns a Matcher with the given note/sustain table
// capacities.
func NewMatcher(maxSimultaneousNotes, maxSustainPedals int) *Matcher {
	return &Matcher{
		notes:    newBoundedMap[noteKey, patch.Patch](maxSimultaneousNotes),
		sustains: newBoundedMap[sustainKey, patch.Patch](maxSustainPedals),
	}
}

// MatchPatchFor returns the patch that should process ev: normally
// current, but for a NoteOff/pedal-release it's whichever patch was
// recorded as owning the matching NoteOn/pedal-down, so a scene switch
// between the two can't orphan the release.
func (m *Matcher) MatchPatchFor(ev event.MidiEvent, current patch.Patch) patch.Patch {
	switch ev.Type {
	case event.NoteOn:
		key := noteKey{Port: ev.Port, Channel: ev.Channel, Note: ev.Note}
		m.notes.Insert(key, current)
		return current

	case event.NoteOff:
		key := noteKey{Port: ev.Port, Channel: ev.Channel, Note: ev.Note}
		if owner, ok := m.notes.Remove(key); ok {
			return owner
		}
		return current

	case event.Ctrl:
		if ev.Param != 64 {
			return current
		}
		key := sustainKey{Port: ev.Port, Channel: ev.Channel}
		switch ev.Value {
		case 127:
			m.sustains.Insert(key, current)
			return current
		case 0:
			if owner, ok := m.sustains.Remove(key); ok {
				return owner
			}
			return current
		default:
			// Half-pedal values pass through untouched, matching the
			// source's existing behaviour rather than treating them
			// as a press or release.
			return current
		}

	default:
		return current
	}
}

// HeldNotes reports how many notes are currently tracked as held.
// Exposed for the monitoring TUI and for tests asserting P6 (bounded
// state survives a flood of unmatched NoteOns).
func (m *Matcher) HeldNotes() int { return m.notes.Len() }

// HeldSustains reports how many sustain pedals are currently tracked
// as held down.
func (m *Matcher) HeldSustains() int { return m.sustains.Len() }
