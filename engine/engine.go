// Package engine is the dispatcher: it owns the process mutex, drives
// a backend's input/output, and runs every event through the matching
// scene's patch, the way sequencer.Manager owns its own realtime loop
// in the teacher codebase — but with exactly one mutex instead of one
// per concern, because every mutation here really does need to be
// serialized against every other.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dsacre/mididings-go/backend"
	"github.com/dsacre/mididings-go/event"
	"github.com/dsacre/mididings-go/patch"
	"github.com/dsacre/mididings-go/scene"
	"github.com/dsacre/mididings-go/telemetry"
)

// unset marks a pending scene/subscene axis as untouched.
const unset = -1

// SceneSwitchHook is notified synchronously, under the process mutex,
// whenever a scene switch is about to take effect. Implementations
// must not call back into the Engine — there is no nested locking.
type SceneSwitchHook interface {
	OnSceneSwitch(scene, subscene int)
}

// Stats is a point-in-time snapshot published after every cycle, for a
// monitoring tool to render without touching engine internals.
type Stats struct {
	Scene, Subscene         int
	HeldNotes, HeldSustains int
	Recent                  []telemetry.Record
	Timestamp               float64
}

// Engine is the dispatcher described in the core's specification: a
// scene registry, a note/sustain matcher, a fixed pre/main/post/ctrl
// pipeline, and a single mutex guarding all of it.
type Engine struct {
	mu sync.Mutex

	backend  backend.Backend
	registry *scene.Registry
	matcher  *scene.Matcher
	logger   *telemetry.Logger

	ctrlPatch     patch.Patch
	prePatch      patch.Patch
	postPatch     patch.Patch
	sanitizePatch patch.Patch

	currentPatch    patch.Patch
	currentScene    int
	currentSubscene int

	pendingScene    int32
	pendingSubscene int32

	hook SceneSwitchHook

	buf *event.Buffer

	startedAt time.Time

	statsCh chan Stats
}

// New returns an Engine bound to b. maxSimultaneousNotes and
// maxSustainPedals size the note/sustain ownership tables (see
// package scene). verbose controls whether the sanitiser's drop
// warnings are logged; logger may be nil, in which case a discarding
// logger is used so the hot path never has to check for "no logger".
func New(b backend.Backend, maxSimultaneousNotes, maxSustainPedals int, verbose bool, logger *telemetry.Logger) *Engine {
	if logger == nil {
		logger = telemetry.NewDiscard()
	}
	return &Engine{
		backend:         b,
		registry:        scene.NewRegistry(),
		matcher:         scene.NewMatcher(maxSimultaneousNotes, maxSustainPedals),
		logger:          logger,
		sanitizePatch:   patch.NewSanitizer(b.NumOutPorts(), verbose, logger),
		currentScene:    unset,
		currentSubscene: unset,
		pendingScene:    unset,
		pendingSubscene: unset,
		buf:             event.NewBuffer(64),
		startedAt:       time.Now(),
		statsCh:         make(chan Stats, 4),
	}
}

// AddScene registers a subscene for scene id. initPatch and exitPatch
// may be nil.
func (e *Engine) AddScene(id int, mainPatch, initPatch, exitPatch patch.Patch) {
	e.registry.Add(id, mainPatch, initPatch, exitPatch)
}

// SetProcessing installs the control/pre/post patches run around every
// scene's main patch. Any of the three may be nil to skip that stage.
// Must be called before Start; it is a setup-time operation, not safe
// to call concurrently with a running cycle.
func (e *Engine) SetProcessing(ctrlPatch, prePatch, postPatch patch.Patch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctrlPatch = ctrlPatch
	e.prePatch = prePatch
	e.postPatch = postPatch
}

// SetSceneSwitchHook installs the scripting notification hook. nil
// disables notification.
func (e *Engine) SetSceneSwitchHook(hook SceneSwitchHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hook = hook
}

// Now returns seconds since the Engine was constructed, using the
// monotonic component time.Time already carries.
func (e *Engine) Now() float64 {
	return time.Since(e.startedAt).Seconds()
}

// Snapshots returns the channel Stats are published on after every
// cycle. Publishing never blocks the realtime thread: a full channel
// simply drops the snapshot, exactly like telemetry.Logger.Warn.
func (e *Engine) Snapshots() <-chan Stats {
	return e.statsCh
}

// Start arms the backend: its init callback runs the initial scene
// switch, and its cycle callback drains input events one at a time.
// initialScene/initialSubscene may be nil to mean "default scene id"
// and "subscene 0" respectively.
func (e *Engine) Start(initialScene, initialSubscene *int) {
	e.backend.Start(
		func() { e.runInit(initialScene, initialSubscene) },
		e.runCycle,
	)
}

// Stop halts the backend.
func (e *Engine) Stop() {
	e.backend.Stop()
}

func (e *Engine) runInit(initialScene, initialSubscene *int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buf.Clear()

	sceneID := unset
	if initialScene != nil {
		sceneID = *initialScene
	} else {
		sceneID = e.registry.DefaultSceneID()
	}
	atomic.StoreInt32(&e.pendingScene, int32(sceneID))

	subscene := int32(unset)
	if initialSubscene != nil {
		subscene = int32(*initialSubscene)
	}
	atomic.StoreInt32(&e.pendingSubscene, subscene)

	e.processSceneSwitch()
	e.emit()
}

// runCycle drains every event currently queued on the backend,
// processing each one under its own mutex acquisition so that
// concurrent ProcessEvent/OutputEvent/SwitchScene/RunAsync calls may
// interleave between events, never within one.
func (e *Engine) runCycle() {
	for {
		ev, ok := e.backend.InputEvent()
		if !ok {
			return
		}
		e.mu.Lock()
		e.buf.Clear()
		e.process(ev)
		e.processSceneSwitch()
		e.emit()
		e.mu.Unlock()
	}
}

// ProcessEvent runs ev through the pipeline synchronously and returns
// the resulting events, for callers injecting input outside the
// backend's own cycle (e.g. a script console). If no scene has been
// started yet, it falls back to scene 0 subscene 0, matching the
// distilled spec's "scene 0 must exist" precondition — violating it is
// a programmer error and panics.
func (e *Engine) ProcessEvent(ev event.MidiEvent) []event.MidiEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentPatch == nil {
		sc, ok := e.registry.Get(0, 0)
		if !ok {
			panic("engine: ProcessEvent called with no current scene and no scene 0 subscene 0 registered")
		}
		e.currentPatch = sc.Patch
		e.currentScene = 0
		e.currentSubscene = 0
	}

	e.buf.Clear()
	e.process(ev)
	e.processSceneSwitch()
	return e.buf.Events()
}

// OutputEvent forwards ev straight to the backend, with no patch
// traversal.
func (e *Engine) OutputEvent(ev event.MidiEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backend.OutputEvent(ev)
}

// RunAsync applies a pending scene switch outside the cycle thread.
// It is the continuation a scripting runtime invokes after mutating
// pending state via SwitchScene. If the backend is already gone, it
// returns silently.
func (e *Engine) RunAsync() {
	if e.backend == nil {
		return
	}
	if atomic.LoadInt32(&e.pendingScene) == unset && atomic.LoadInt32(&e.pendingSubscene) == unset {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.Clear()
	e.processSceneSwitch()
	e.emit()
}

// SwitchScene records a pending scene switch. Either argument may be
// nil to leave that axis untouched. The actual switch happens at the
// end of the current cycle, or at the next RunAsync call.
func (e *Engine) SwitchScene(targetScene, targetSubscene *int) {
	if targetScene != nil {
		atomic.StoreInt32(&e.pendingScene, int32(*targetScene))
	}
	if targetSubscene != nil {
		atomic.StoreInt32(&e.pendingSubscene, int32(*targetSubscene))
	}
}

// process runs the six-stage pipeline from the distilled spec over a
// single event. Must be called with e.mu held and e.buf already
// cleared.
func (e *Engine) process(ev event.MidiEvent) {
	matched := e.matcher.MatchPatchFor(ev, e.currentPatch)

	if e.ctrlPatch != nil {
		e.buf.InsertAtEnd(ev)
		e.ctrlPatch.Process(e.buf, e.buf.All())
	}

	pos := e.buf.InsertAtEnd(ev)
	r := e.buf.RangeFrom(pos)

	if e.prePatch != nil {
		e.prePatch.Process(e.buf, r)
	}
	if matched != nil {
		matched.Process(e.buf, r)
	}
	if e.postPatch != nil {
		e.postPatch.Process(e.buf, r)
	}
	e.sanitizePatch.Process(e.buf, r)
}

// processSceneSwitch implements the five-step routine from the
// distilled spec. Must be called with e.mu held.
func (e *Engine) processSceneSwitch() {
	pendingScene := atomic.LoadInt32(&e.pendingScene)
	pendingSubscene := atomic.LoadInt32(&e.pendingSubscene)

	if pendingScene == unset && pendingSubscene == unset {
		return
	}

	if e.hook != nil && e.registry.Count() > 1 {
		e.hook.OnSceneSwitch(int(pendingScene), int(pendingSubscene))
	}

	sceneNum := e.currentScene
	if pendingScene != unset {
		sceneNum = int(pendingScene)
	}
	subsceneNum := 0
	if pendingSubscene != unset {
		subsceneNum = int(pendingSubscene)
	}

	next, ok := e.registry.Get(sceneNum, subsceneNum)
	if !ok {
		atomic.StoreInt32(&e.pendingScene, unset)
		atomic.StoreInt32(&e.pendingSubscene, unset)
		return
	}

	if e.currentScene != unset {
		if prev, ok := e.registry.Get(e.currentScene, e.currentSubscene); ok && prev.ExitPatch != nil {
			e.runTransitionPatch(prev.ExitPatch)
		}
	}
	if next.InitPatch != nil {
		e.runTransitionPatch(next.InitPatch)
	}

	e.currentPatch = next.Patch
	e.currentScene = sceneNum
	e.currentSubscene = subsceneNum

	atomic.StoreInt32(&e.pendingScene, unset)
	atomic.StoreInt32(&e.pendingSubscene, unset)
}

// runTransitionPatch drives an init/exit patch through a Dummy event,
// followed by the post and sanitise stages, exactly like the main
// pipeline's tail end.
func (e *Engine) runTransitionPatch(p patch.Patch) {
	pos := e.buf.InsertAtEnd(event.NewDummy())
	r := e.buf.RangeFrom(pos)
	p.Process(e.buf, r)
	if e.postPatch != nil {
		e.postPatch.Process(e.buf, r)
	}
	e.sanitizePatch.Process(e.buf, r)
}

// emit flushes the working buffer to the backend and publishes a
// Stats snapshot. Must be called with e.mu held.
func (e *Engine) emit() {
	e.backend.OutputEvents(e.buf.Events())
	e.publishStats()
}

func (e *Engine) publishStats() {
	stats := Stats{
		Scene:        e.currentScene,
		Subscene:     e.currentSubscene,
		HeldNotes:    e.matcher.HeldNotes(),
		HeldSustains: e.matcher.HeldSustains(),
		Recent:       e.logger.Recent(),
		Timestamp:    e.Now(),
	}
	select {
	case e.statsCh <- stats:
	default:
	}
}
