package profile

import (
	"strings"

	"github.com/ayusman/sugoi/internal/hooks"
)

// Match picks the candidate hook described by an auto selector.
//
// A label carried by exactly one candidate selects it. When several candidates share the
// label, the first (in discovery order) with a sample that contains, or is contained in,
// the saved sample wins. Otherwise a candidate with the saved hook id is used.
// ok is false when nothing matched.
func Match(sel Selector, candidates []hooks.Record) (hookID string, ok bool) {
	var labeled []hooks.Record
	for _, c := range candidates {
		if sel.Label != "" && c.Label == sel.Label {
			labeled = append(labeled, c)
		}
	}

	if len(labeled) == 1 {
		return labeled[0].ID, true
	}
	if len(labeled) > 1 && sel.Sample != "" {
		for _, c := range labeled {
			if sampleMatches(c.Samples, sel.Sample) {
				return c.ID, true
			}
		}
	}

	if sel.HookID != "" {
		for _, c := range candidates {
			if c.ID == sel.HookID {
				return c.ID, true
			}
		}
	}
	return "", false
}

func sampleMatches(samples []string, saved string) bool {
	for _, s := range samples {
		if s == "" {
			continue
		}
		if strings.Contains(s, saved) || strings.Contains(saved, s) {
			return true
		}
	}
	return false
}

// FirstSample returns the first non-empty sample of rec, for remembering a selection.
func FirstSample(rec hooks.Record) string {
	for _, s := range rec.Samples {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
