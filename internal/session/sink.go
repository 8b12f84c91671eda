package session

import (
	"time"
)

// Source tags where an output chunk came from.
type Source string

const (
	// SourceConsole is an engine console message.
	SourceConsole Source = "console"
	// SourcePreview is text from any hook while none is selected.
	SourcePreview Source = "preview"
	// SourceSelected is text from the selected hook.
	SourceSelected Source = "selected"
)

// Chunk is one piece of pipeline output.
type Chunk struct {
	ID     string    `json:"id"`
	Source Source    `json:"source"`
	HookID string    `json:"hook_id,omitempty"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a message for the user outside the text stream.
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Sink receives everything the session presents. Methods are called from the
// control loop and must not block.
type Sink interface {
	Output(c Chunk)
	ClearOutput()
	HookDiscovered(hookID, label string)
	HookPreview(hookID, preview string)
	HooksCleared()
	StateChanged(s State, err error)
	Notify(n Notice)
}

// NopSink ignores everything. Embed it to implement part of Sink.
type NopSink struct{}

func (NopSink) Output(Chunk)                  {}
func (NopSink) ClearOutput()                  {}
func (NopSink) HookDiscovered(string, string) {}
func (NopSink) HookPreview(string, string)    {}
func (NopSink) HooksCleared()                 {}
func (NopSink) StateChanged(State, error)     {}
func (NopSink) Notify(Notice)                 {}

// Sinks fans out to several sinks in order.
type Sinks []Sink

func (s Sinks) Output(c Chunk) {
	for _, sink := range s {
		sink.Output(c)
	}
}

func (s Sinks) ClearOutput() {
	for _, sink := range s {
		sink.ClearOutput()
	}
}

func (s Sinks) HookDiscovered(hookID, label string) {
	for _, sink := range s {
		sink.HookDiscovered(hookID, label)
	}
}

func (s Sinks) HookPreview(hookID, preview string) {
	for _, sink := range s {
		sink.HookPreview(hookID, preview)
	}
}

func (s Sinks) HooksCleared() {
	for _, sink := range s {
		sink.HooksCleared()
	}
}

func (s Sinks) StateChanged(st State, err error) {
	for _, sink := range s {
		sink.StateChanged(st, err)
	}
}

func (s Sinks) Notify(n Notice) {
	for _, sink := range s {
		sink.Notify(n)
	}
}
