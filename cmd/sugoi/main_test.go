package main

import (
	"testing"

	"github.com/ayusman/sugoi/internal/profile"
)

func TestUIURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080"},
		{"0.0.0.0:9000", "http://localhost:9000"},
		{"127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"[::]:8080", "http://localhost:8080"},
		{"example", "http://example"},
	}
	for _, tt := range tests {
		if got := uiURL(tt.addr); got != tt.want {
			t.Errorf("uiURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestDescribeSelector(t *testing.T) {
	if got := describeSelector(profile.Selector{Kind: profile.SelectorManual, Code: "HS-4@1234"}); got != "manual HS-4@1234" {
		t.Errorf("manual selector = %q", got)
	}
	if got := describeSelector(profile.Selector{Kind: profile.SelectorAuto, HookID: "3", Label: "Reader"}); got != "3 Reader" {
		t.Errorf("auto selector = %q", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(short) = %q", got)
	}
}
