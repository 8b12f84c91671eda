// Package output keeps and renders the processed text stream.
package output

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ayusman/sugoi/internal/session"
)

// ErrEmpty is returned when saving a buffer with no text.
var ErrEmpty = errors.New("no text to save")

// Stats counts the text received since the last clear.
type Stats struct {
	Lines int       `json:"lines"`
	Words int       `json:"words"`
	Chars int       `json:"chars"`
	Start time.Time `json:"start,omitempty"`
}

// Rate returns characters per second since Start.
func (s Stats) Rate(now time.Time) float64 {
	if s.Start.IsZero() {
		return 0
	}
	elapsed := now.Sub(s.Start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Chars) / elapsed
}

// Buffer accumulates output chunks. It is a session.Sink and safe for concurrent readers.
type Buffer struct {
	session.NopSink

	mu    sync.RWMutex
	text  strings.Builder
	stats Stats
	now   func() time.Time
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{now: time.Now}
}

// Output implements session.Sink.
func (b *Buffer) Output(c session.Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stats.Start.IsZero() {
		b.stats.Start = b.now()
	}
	b.text.WriteString(c.Text)
	b.stats.Lines += strings.Count(c.Text, "\n")
	b.stats.Words += len(strings.Fields(c.Text))
	b.stats.Chars += utf8.RuneCountInString(c.Text)
}

// ClearOutput implements session.Sink.
func (b *Buffer) ClearOutput() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
	b.stats = Stats{}
}

// String returns the accumulated text.
func (b *Buffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text.String()
}

// Stats returns the current counters.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// SaveTo writes the text, trimmed of surrounding whitespace, to path.
func (b *Buffer) SaveTo(path string) error {
	text := strings.TrimSpace(b.String())
	if text == "" {
		return ErrEmpty
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	return nil
}
