package plugin

// ExternalPrefix namespaces identities of plugins discovered on disk.
const ExternalPrefix = "ext:"

// Manifest describes an external plugin, read from <dir>/<name>/plugin.json.
type Manifest struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Author      string            `json:"author,omitempty"`
	Executable  string            `json:"executable"`
	Settings    []ManifestSetting `json:"settings,omitempty"`
}

// ManifestSetting declares one setting of an external plugin.
type ManifestSetting struct {
	Name        string      `json:"name"`
	Type        SettingType `json:"type"`
	Description string      `json:"description"`
	Default     any         `json:"default"`
	Options     []string    `json:"options,omitempty"`
	Min         *int        `json:"min,omitempty"`
	Max         *int        `json:"max,omitempty"`
}

// Request is sent to an external plugin on stdin, once per text.
type Request struct {
	Action   string         `json:"action"`
	Text     string         `json:"text"`
	Settings map[string]any `json:"settings"`
}

// Response is read from an external plugin's stdout.
type Response struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Drop    bool   `json:"drop,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ActionProcess is the only request action external plugins receive.
const ActionProcess = "process"
