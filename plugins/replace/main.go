// Package main provides the replace plugin. It rewrites hooked text with a regular
// expression and can drop lines that match.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action   string         `json:"action"`
	Text     string         `json:"text"`
	Settings map[string]any `json:"settings"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Drop    bool   `json:"drop,omitempty"`
	Error   string `json:"error,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		write(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}
	write(handle(req))
}

func handle(req Request) Response {
	if req.Action != "process" {
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	pattern, _ := req.Settings["pattern"].(string)
	if pattern == "" {
		return Response{Success: true, Text: req.Text}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Response{Error: fmt.Sprintf("invalid pattern: %v", err)}
	}

	// Drop mode removes matching text instead of rewriting it.
	if drop, _ := req.Settings["drop_matches"].(bool); drop {
		if re.MatchString(req.Text) {
			return Response{Success: true, Drop: true}
		}
		return Response{Success: true, Text: req.Text}
	}

	replacement, _ := req.Settings["replacement"].(string)
	return Response{Success: true, Text: re.ReplaceAllString(req.Text, replacement)}
}

func write(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
