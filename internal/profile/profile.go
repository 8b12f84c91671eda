// Package profile remembers which hook was used for a game and re-finds it when the
// same game is attached again.
package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/sugoi/internal/protocol"
)

// Identity is the hex SHA-256 of a game's executable path and size.
type Identity string

// Target is the executable behind an attached process.
type Target struct {
	Path string
	Size int64
}

// Identity derives the game identity of t.
func (t Target) Identity() Identity {
	sum := sha256.Sum256([]byte(t.Path + "\x00" + strconv.FormatInt(t.Size, 10)))
	return Identity(hex.EncodeToString(sum[:]))
}

// Resolver finds the executable of a running process.
type Resolver interface {
	Resolve(pid int) (Target, error)
}

// ProcResolver resolves executables through procfs.
type ProcResolver struct {
	// Root is the procfs mount point, "/proc" when empty.
	Root string
}

// Resolve reads <root>/<pid>/exe.
func (r ProcResolver) Resolve(pid int) (Target, error) {
	root := r.Root
	if root == "" {
		root = "/proc"
	}
	link := filepath.Join(root, strconv.Itoa(pid), "exe")

	path, err := os.Readlink(link)
	if err != nil {
		return Target{}, fmt.Errorf("resolve executable of %d: %w", pid, err)
	}
	info, err := os.Stat(link)
	if err != nil {
		return Target{}, fmt.Errorf("stat executable of %d: %w", pid, err)
	}
	return Target{Path: path, Size: info.Size()}, nil
}

// SelectorKind tells how a profile's hook is re-selected.
type SelectorKind string

const (
	// SelectorManual replays a manual hook expression.
	SelectorManual SelectorKind = "manual"
	// SelectorAuto matches a discovered hook by label and sample text.
	SelectorAuto SelectorKind = "auto"
)

// Selector describes the hook last used for a game.
type Selector struct {
	Kind SelectorKind `json:"kind"`
	// Code is the manual hook expression, for SelectorManual.
	Code string `json:"code,omitempty"`
	// HookID, Label and Sample describe the selected hook, for SelectorAuto.
	HookID string `json:"hook_id,omitempty"`
	Label  string `json:"label,omitempty"`
	Sample string `json:"sample,omitempty"`
}

// Profile is the persisted association between a game and its hook.
type Profile struct {
	Identity Identity         `json:"identity"`
	ExeName  string           `json:"exe_name"`
	ExePath  string           `json:"exe_path"`
	ExeSize  int64            `json:"exe_size"`
	Selector Selector         `json:"selector"`
	Variant  protocol.Variant `json:"engine"`
	LastUsed time.Time        `json:"last_used"`
}

// Store persists profiles. Get returns nil, nil when no profile exists.
type Store interface {
	Get(id Identity) (*Profile, error)
	Save(p *Profile) error
	List() ([]Profile, error)
	Delete(id Identity) error
}
