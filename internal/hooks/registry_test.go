package hooks

import (
	"strings"
	"testing"
)

func TestRegistry_SampleCap(t *testing.T) {
	r := NewRegistry()

	for i, text := range []string{"a", "b", "c", "d"} {
		_, isNew := r.Observe("1", "MyFunc", text)
		if isNew != (i == 0) {
			t.Errorf("observe %d: isNew = %v", i, isNew)
		}
	}

	rec, ok := r.Get("1")
	if !ok {
		t.Fatal("hook 1 not found")
	}
	if got := strings.Join(rec.Samples, ","); got != "a,b,c" {
		t.Errorf("samples = %q, want a,b,c", got)
	}
	if rec.LastPreview != "d" {
		t.Errorf("last preview = %q, want d", rec.LastPreview)
	}
	if rec.Label != "MyFunc" {
		t.Errorf("label = %q", rec.Label)
	}
}

func TestRegistry_EmptyTextPreview(t *testing.T) {
	r := NewRegistry()
	rec, _ := r.Observe("1", "f", "")
	if rec.LastPreview != EmptyPreview {
		t.Errorf("preview = %q, want %q", rec.LastPreview, EmptyPreview)
	}
	if len(rec.Samples) != 1 || rec.Samples[0] != "" {
		t.Errorf("empty text should still be stored as a sample, got %q", rec.Samples)
	}
}

func TestRegistry_SnapshotOrderAndIsolation(t *testing.T) {
	r := NewRegistry()
	r.Observe("b", "x", "1")
	r.Observe("a", "y", "2")
	r.Observe("b", "x", "3")

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].ID != "b" || snap[1].ID != "a" {
		t.Fatalf("snapshot order = %+v", snap)
	}

	snap[0].Samples[0] = "mutated"
	if rec, _ := r.Get("b"); rec.Samples[0] != "1" {
		t.Error("snapshot should not alias registry state")
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Observe("1", "f", "x")
	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after Clear", r.Len())
	}
	if _, isNew := r.Observe("1", "f", "y"); !isNew {
		t.Error("hook should be new again after Clear")
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse", "  hello \n\t world ", "hello world"},
		{"whitespace only", " \n ", EmptyPreview},
		{"exact width", strings.Repeat("x", PreviewWidth), strings.Repeat("x", PreviewWidth)},
		{"truncate", strings.Repeat("x", PreviewWidth+5), strings.Repeat("x", PreviewWidth) + "..."},
		{"truncate runes", strings.Repeat("あ", PreviewWidth+1), strings.Repeat("あ", PreviewWidth) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.in); got != tt.want {
				t.Errorf("Preview(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
