// Package telemetry provides realtime-safe diagnostic logging: the
// engine's hot path only ever performs a non-blocking channel send, with
// the actual (mutex-guarded, file-writing) work done by a background
// goroutine.
package telemetry

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is a single diagnostic line, queued from the realtime path and
// drained by a Logger's background goroutine.
type Record struct {
	Category string
	Message  string
}

// Logger accepts Records from the realtime path over a buffered channel
// and writes them out on a dedicated goroutine. Constructing one starts
// that goroutine; call Close to stop it and release the underlying file.
type Logger struct {
	records chan Record
	done    chan struct{}

	mu      sync.Mutex
	file    *os.File
	recent  []Record
	recentN int
}

// recentCapacity bounds how many records Recent() can return, so a
// monitoring tool polling it never grows the logger's own memory use.
const recentCapacity = 16

// New returns a Logger that appends formatted records to path, creating
// parent directories as needed. queueDepth bounds how many pending
// records may be buffered before Warn starts silently dropping them
// instead of blocking the caller.
func New(path string, queueDepth int) (*Logger, error) {
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	l := &Logger{
		records: make(chan Record, queueDepth),
		done:    make(chan struct{}),
		file:    f,
	}
	go l.run()
	return l, nil
}

// NewDiscard returns a Logger whose records are read and thrown away.
// Used as the zero-overhead default when verbose diagnostics are off, so
// the realtime path never has to special-case "no logger configured".
func NewDiscard() *Logger {
	l := &Logger{
		records: make(chan Record, 1),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Warn is the realtime-path call: it never blocks and never takes a
// mutex. If the queue is full the record is dropped rather than stalling
// the caller — losing an occasional diagnostic is preferable to stalling
// the audio callback.
func (l *Logger) Warn(category, format string, args ...any) {
	if l == nil {
		return
	}
	rec := Record{Category: category, Message: fmt.Sprintf(format, args...)}
	select {
	case l.records <- rec:
	default:
	}
}

// Close stops the background goroutine and closes the underlying file,
// if any. Safe to call on a nil Logger.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	close(l.records)
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	for rec := range l.records {
		l.write(rec)
	}
}

func (l *Logger) write(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.recent) < recentCapacity {
		l.recent = append(l.recent, rec)
	} else {
		l.recent[l.recentN%recentCapacity] = rec
	}
	l.recentN++

	if l.file == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %-10s %s\n", ts, rec.Category, rec.Message)
	l.file.Sync()
}

// Recent returns the most recently written records, oldest first, up to
// recentCapacity. Intended for a monitoring tool polling for the last
// few sanitiser-drop messages; safe to call on a nil Logger.
func (l *Logger) Recent() []Record {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.recent) < recentCapacity {
		out := make([]Record, len(l.recent))
		copy(out, l.recent)
		return out
	}
	out := make([]Record, recentCapacity)
	for i := 0; i < recentCapacity; i++ {
		out[i] = l.recent[(l.recentN+i)%recentCapacity]
	}
	return out
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}
