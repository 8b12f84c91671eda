package protocol

import (
	"regexp"
	"strings"
)

// EventKind classifies a parsed engine line.
type EventKind int

const (
	// EventDiscard means the line matched no known form.
	EventDiscard EventKind = iota
	// EventConsole is an engine console message.
	EventConsole
	// EventHook is text captured by a hook.
	EventHook
)

func (k EventKind) String() string {
	switch k {
	case EventConsole:
		return "console"
	case EventHook:
		return "hook"
	default:
		return "discard"
	}
}

// Event is the result of parsing one engine line.
type Event struct {
	Kind   EventKind
	HookID string
	Label  string
	Text   string
}

// ConsoleEvent builds a console event.
func ConsoleEvent(text string) Event {
	return Event{Kind: EventConsole, Text: text}
}

// HookEvent builds a hook event.
func HookEvent(hookID, label, text string) Event {
	return Event{Kind: EventHook, HookID: hookID, Label: label, Text: text}
}

// Parser turns a single engine output line into an Event.
type Parser interface {
	Parse(line string) Event
}

// UnknownLabel is used when a dialect B context cannot be split into a label.
const UnknownLabel = "Unknown"

var (
	consolePattern = regexp.MustCompile(`^\[Console\] (.+)$`)

	// [id:f2:f3:f4:f5:label:f7] text
	hookPatternA = regexp.MustCompile(`^\[([^:\[\]]+):([^:\]]+):([^:\]]+):([^:\]]+):([^:\]]+):([^:\]]+):([^\]]+)\] ?(.*)$`)

	// [#id|context] text
	hookPatternB = regexp.MustCompile(`^\[#([^|\]]+)\|([^\]]*)\] ?(.*)$`)
)

// NewParser returns the parser for the given engine variant.
func NewParser(v Variant) (Parser, error) {
	switch v {
	case VariantA:
		return DialectA{}, nil
	case VariantB:
		return DialectB{}, nil
	default:
		return nil, ErrUnknownVariant
	}
}

// DialectA parses `[id:f2:f3:f4:f5:label:f7] text` lines.
// Only the first field (hook id) and sixth field (label) carry meaning.
type DialectA struct{}

// Parse implements Parser.
func (DialectA) Parse(line string) Event {
	line = trimLine(line)
	if line == "" {
		return Event{}
	}
	if ev, ok := parseConsole(line); ok {
		return ev
	}
	m := hookPatternA.FindStringSubmatch(line)
	if m == nil {
		return Event{}
	}
	return HookEvent(m[1], m[6], m[8])
}

// DialectB parses `[#id|context] text` lines.
type DialectB struct{}

// Parse implements Parser.
func (DialectB) Parse(line string) Event {
	line = trimLine(line)
	if line == "" {
		return Event{}
	}
	if ev, ok := parseConsole(line); ok {
		return ev
	}
	m := hookPatternB.FindStringSubmatch(line)
	if m == nil {
		return Event{}
	}
	return HookEvent(m[1], contextLabel(m[2]), m[3])
}

// contextLabel extracts the label from a colon separated dialect B context.
// "Game.exe:Reader:HS-4@0" -> "Reader", "Game.exe:Reader" -> "Reader", "Reader" -> "Reader".
func contextLabel(ctx string) string {
	ctx = strings.TrimSpace(ctx)
	if ctx == "" {
		return UnknownLabel
	}
	parts := strings.Split(ctx, ":")
	var label string
	switch {
	case len(parts) >= 3:
		label = parts[len(parts)-2]
	case len(parts) == 2:
		label = parts[1]
	default:
		return ctx
	}
	if label = strings.TrimSpace(label); label == "" {
		return ctx
	}
	return label
}

func parseConsole(line string) (Event, bool) {
	m := consolePattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	return ConsoleEvent(m[1]), true
}

// trimLine drops the line terminator and a leading BOM; payload whitespace is kept.
func trimLine(line string) string {
	line = strings.TrimRight(line, "\r\n")
	return strings.TrimPrefix(line, "\ufeff")
}
