// Package tray provides a system tray interface for sugoi.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/ayusman/sugoi/internal/session"
)

// Tray shows the session state and offers session actions. It is a session.Sink.
type Tray struct {
	session.NopSink

	onOpenUI func()
	onDetach func()
	onClear  func()
	onQuit   func()

	mu       sync.RWMutex
	state    session.State
	stateErr error
	since    time.Time
	lastHook string

	// Menu items stored for later updates
	menuStatus   *systray.MenuItem
	menuLastHook *systray.MenuItem
	menuDetach   *systray.MenuItem
	stop         chan struct{}
}

// New creates a new Tray in the detached state.
func New() *Tray {
	return &Tray{since: time.Now(), stop: make(chan struct{})}
}

// OnOpenUI sets the callback for the "Open UI" menu item.
func (t *Tray) OnOpenUI(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenUI = fn
}

// OnDetach sets the callback for the "Detach" menu item.
func (t *Tray) OnDetach(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDetach = fn
}

// OnClearOutput sets the callback for the "Clear Output" menu item.
func (t *Tray) OnClearOutput(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnQuit sets the callback for the "Quit" menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Sugoi")
	systray.SetTooltip("Sugoi text hooker")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("", "Session state")
	t.menuStatus.Disable()
	t.menuLastHook = systray.AddMenuItem("Hook: none", "Last discovered hook")
	t.menuLastHook.Disable()
	systray.AddSeparator()
	t.menuDetach = systray.AddMenuItem("Detach", "Detach from the game")
	t.mu.Unlock()

	menuClear := systray.AddMenuItem("Clear Output", "Clear output and reset plugins")
	menuOpen := systray.AddMenuItem("Open UI...", "Open the web UI in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Sugoi")

	t.refresh()

	// Handle menu item clicks in a separate goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-t.menuDetach.ClickedCh:
				t.call(func() func() { return t.onDetach })
			case <-menuClear.ClickedCh:
				t.call(func() func() { return t.onClear })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpenUI })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			case <-ticker.C:
				t.refresh()
			case <-t.stop:
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	close(t.stop)
}

// call runs the callback returned by get outside the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// StateChanged implements session.Sink.
func (t *Tray) StateChanged(s session.State, err error) {
	t.mu.Lock()
	t.state = s
	t.stateErr = err
	t.since = time.Now()
	if s == session.StateDetached {
		t.lastHook = ""
	}
	t.mu.Unlock()
	t.refresh()
}

// HookDiscovered implements session.Sink.
func (t *Tray) HookDiscovered(hookID, label string) {
	t.mu.Lock()
	t.lastHook = fmt.Sprintf("%s (%s)", hookID, label)
	t.mu.Unlock()
	t.refresh()
}

// Status returns the status line shown in the menu.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return statusLine(t.state, t.stateErr, t.since)
}

func (t *Tray) refresh() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(statusLine(t.state, t.stateErr, t.since))
	if t.lastHook == "" {
		t.menuLastHook.SetTitle("Hook: none")
	} else {
		t.menuLastHook.SetTitle("Hook: " + t.lastHook)
	}
	if t.state == session.StateAttached {
		t.menuDetach.Enable()
	} else {
		t.menuDetach.Disable()
	}
}

func statusLine(s session.State, err error, since time.Time) string {
	switch {
	case err != nil:
		return fmt.Sprintf("○ Detached: %v", err)
	case s == session.StateAttached:
		return "● Attached " + humanize.Time(since)
	case s == session.StateDetached:
		return "○ Detached"
	default:
		return "◌ " + s.String()
	}
}
