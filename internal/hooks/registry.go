// Package hooks tracks the hooks discovered during one attached session.
package hooks

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxSamples is the number of samples kept per hook. Later texts are not stored.
	MaxSamples = 3
	// PreviewWidth is the preview length in characters before truncation.
	PreviewWidth = 80
	// EmptyPreview is shown for a hook that fired with no text.
	EmptyPreview = "No text yet"
)

// Record is the accumulated state of one hook.
type Record struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Samples     []string `json:"samples"`
	LastPreview string   `json:"last_preview"`
}

// Registry maps hook ids to records, remembering discovery order.
// It has no locking; it is owned by the control loop.
type Registry struct {
	records map[string]*Record
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Observe records text for hookID. It returns a copy of the updated record and
// whether this was the first sighting of the id.
func (r *Registry) Observe(hookID, label, text string) (Record, bool) {
	rec, ok := r.records[hookID]
	if !ok {
		rec = &Record{ID: hookID, Label: label}
		r.records[hookID] = rec
		r.order = append(r.order, hookID)
	}
	if len(rec.Samples) < MaxSamples {
		rec.Samples = append(rec.Samples, text)
	}
	rec.LastPreview = Preview(text)
	return rec.copy(), !ok
}

// Get returns the record for hookID.
func (r *Registry) Get(hookID string) (Record, bool) {
	rec, ok := r.records[hookID]
	if !ok {
		return Record{}, false
	}
	return rec.copy(), true
}

// Snapshot returns copies of all records in discovery order.
func (r *Registry) Snapshot() []Record {
	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].copy())
	}
	return out
}

// Len returns the number of known hooks.
func (r *Registry) Len() int {
	return len(r.order)
}

// Clear drops every record.
func (r *Registry) Clear() {
	r.records = make(map[string]*Record)
	r.order = nil
}

func (rec *Record) copy() Record {
	c := *rec
	c.Samples = append([]string(nil), rec.Samples...)
	return c
}

// Preview renders text for a hook list: whitespace runs collapse to a single
// space and long text is cut at PreviewWidth characters with "...".
func Preview(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return EmptyPreview
	}
	if utf8.RuneCountInString(collapsed) <= PreviewWidth {
		return collapsed
	}
	runes := []rune(collapsed)
	return string(runes[:PreviewWidth]) + "..."
}
