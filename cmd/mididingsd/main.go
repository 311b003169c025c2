// Command mididingsd is a demo routing daemon: it loads configuration,
// opens a MIDI backend, wires up a couple of illustrative scenes, and
// runs the dispatcher until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register the platform driver

	"github.com/dsacre/mididings-go/backend"
	"github.com/dsacre/mididings-go/config"
	"github.com/dsacre/mididings-go/engine"
	"github.com/dsacre/mididings-go/event"
	"github.com/dsacre/mididings-go/patch"
	"github.com/dsacre/mididings-go/telemetry"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "list":
			listPorts()
			return
		case "-h", "--help", "help":
			usage()
			return
		default:
			usage()
			os.Exit(1)
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mididingsd: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("mididingsd")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  (none)  Run the daemon using the configured ports")
	fmt.Println("  list    List available MIDI ports and exit")
}

// listPorts prints the available input/output ports, guarding against a
// hung OS MIDI server the same way the teacher's own port-listing code
// does: GetInPorts/GetOutPorts run on a goroutine with a timeout.
func listPorts() {
	type result struct {
		ins  []string
		outs []string
	}
	ch := make(chan result, 1)
	go func() {
		var r result
		for _, p := range gomidi.GetInPorts() {
			r.ins = append(r.ins, p.String())
		}
		for _, p := range gomidi.GetOutPorts() {
			r.outs = append(r.outs, p.String())
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		fmt.Println("inputs:")
		for _, name := range r.ins {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println("outputs:")
		for _, name := range r.outs {
			fmt.Printf("  %s\n", name)
		}
	case <-time.After(3 * time.Second):
		fmt.Fprintln(os.Stderr, "mididingsd: port scan timed out, MIDI server may be hung")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logger *telemetry.Logger
	if cfg.LogPath != "" {
		logger, err = telemetry.New(cfg.LogPath, 256)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer logger.Close()
	}

	b, err := backend.OpenPortMIDI(cfg.InputPort.Name, cfg.OutputPort.Name)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer b.Stop()

	e := engine.New(b, cfg.MaxSimultaneousNotes, cfg.MaxSustainPedals, cfg.Verbose, logger)

	// Scene 0: everything passes straight through.
	e.AddScene(0, patch.Identity, nil, nil)

	// Scene 1: transpose every note up an octave, illustrating a
	// non-trivial main patch wired the same way a script-supplied one
	// would be.
	e.AddScene(1, transposeOctaveUp(), nil, nil)

	e.SetProcessing(nil, nil, nil)
	e.Start(nil, nil)
	defer e.Stop()

	fmt.Println("mididingsd running, scene 0 active (Ctrl+C to stop)")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println("\nshutting down")
	return nil
}

// transposeOctaveUp returns a patch that shifts every note event up by
// 12 semitones. It neither clamps nor wraps: a note pushed above 127 is
// dropped by the sanitiser stage.
func transposeOctaveUp() patch.Patch {
	return patch.Func(func(buf *event.Buffer, r event.Range) {
		n := r.Len()
		for i := 0; i < n; i++ {
			if r.DroppedAt(i) {
				continue
			}
			ev := r.At(i)
			if ev.Type == event.NoteOn || ev.Type == event.NoteOff {
				ev.Note += 12
				r.SetAt(i, ev)
			}
		}
	})
}
