// Package logging builds the process logger and its in-memory tail.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Level      string // debug, info, warn, error
	Console    bool   // human-readable stderr output
	BufferSize int    // lines kept by the ring buffer
}

// New returns a logger writing to stderr and to a bounded ring buffer.
func New(opts Options) (zerolog.Logger, *RingBuffer) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	buf := NewRingBuffer(opts.BufferSize)
	logger := zerolog.New(zerolog.MultiLevelWriter(out, buf)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, buf
}

// DefaultBufferSize is used when a non-positive size is requested.
const DefaultBufferSize = 500

// RingBuffer keeps the most recent log lines. It is safe for concurrent use.
type RingBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRingBuffer creates a buffer holding up to size lines.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &RingBuffer{lines: make([]string, size)}
}

// Write stores p as one line, overwriting the oldest line when full.
func (b *RingBuffer) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
	return len(p), nil
}

// Lines returns up to limit of the newest lines, oldest first. A non-positive
// limit returns everything buffered.
func (b *RingBuffer) Lines(limit int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered []string
	if b.full {
		ordered = append(ordered, b.lines[b.next:]...)
	}
	ordered = append(ordered, b.lines[:b.next]...)

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}
