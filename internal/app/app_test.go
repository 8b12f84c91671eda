package app

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/sugoi/internal/config"
	"github.com/ayusman/sugoi/internal/plugin"
	"github.com/ayusman/sugoi/internal/plugin/builtin"
	"github.com/ayusman/sugoi/internal/profile"
	"github.com/ayusman/sugoi/internal/protocol"
	"github.com/ayusman/sugoi/internal/session"
)

// engineScript answers attach and select the way a dialect B engine would.
const engineScript = `#!/bin/sh
while IFS= read -r line; do
	case "$line" in
	attach*)
		echo "[Console] engine ready"
		echo "[#3|Game.exe:Reader] hello there"
		;;
	select*)
		echo "[#3|Game.exe:Reader] ok"
		echo "[#3|Game.exe:Reader] see you"
		;;
	esac
done
`

type staticResolver struct {
	target profile.Target
}

func (r staticResolver) Resolve(int) (profile.Target, error) {
	return r.target, nil
}

type stateSink struct {
	session.NopSink
	mu     sync.Mutex
	states []session.State
}

func (s *stateSink) StateChanged(st session.State, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *stateSink) last() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return session.StateDetached
	}
	return s.states[len(s.states)-1]
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("engine script needs a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "engine.sh")
	if err := os.WriteFile(script, []byte(engineScript), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Engine.B = config.EngineCommand{Path: script}
	cfg.Engine.GracePeriod = 200 * time.Millisecond
	cfg.Plugins.Dir = filepath.Join(dir, "plugins")
	cfg.Plugins.Watch = false
	cfg.Profiles.RetryDelay = 20 * time.Millisecond
	cfg.Server.Addr = ""
	cfg.Storage.Database = filepath.Join(dir, "sugoi.db")
	return cfg
}

func startApp(t *testing.T, cfg *config.Config, sinks ...session.Sink) (*App, func()) {
	t.Helper()
	a, err := New(cfg, Options{
		Resolver: staticResolver{profile.Target{Path: "/games/Game.exe", Size: 4096}},
		Sinks:    sinks,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	return a, func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
	}
}

func TestApp_SessionLifecycle(t *testing.T) {
	cfg := testConfig(t)
	states := &stateSink{}
	a, stop := startApp(t, cfg, states)

	ctrl := a.Controller()
	if err := ctrl.Attach(4242, protocol.VariantB); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	eventually(t, "hook discovery", func() bool { return len(ctrl.Hooks()) == 1 })
	if states.last() != session.StateAttached {
		t.Errorf("state = %s, want attached", states.last())
	}

	if got := a.Buffer().String(); got != "[Console] engine ready\n[Hook 3] hello there\n" {
		t.Errorf("preview output = %q", got)
	}

	svc := pluginService{a}
	enabled := true
	d, err := svc.Apply(builtin.MinLengthID, plugin.Update{Enabled: &enabled})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !d.Enabled {
		t.Errorf("descriptor after enable = %+v", d)
	}

	if err := ctrl.SelectHook("3"); err != nil {
		t.Fatalf("SelectHook() error = %v", err)
	}
	eventually(t, "selected output", func() bool { return a.Buffer().String() == "hello there\nsee you\n" })

	profiles, err := a.Profiles().List()
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 || profiles[0].ExeName != "Game.exe" || profiles[0].Selector.HookID != "3" {
		t.Errorf("profiles = %+v", profiles)
	}

	stop()

	if got := states.last(); got != session.StateDetached {
		t.Errorf("state after shutdown = %s", got)
	}
}

func TestApp_AutoSelectsRememberedHook(t *testing.T) {
	cfg := testConfig(t)
	a, stop := startApp(t, cfg)

	ctrl := a.Controller()
	if err := ctrl.Attach(4242, protocol.VariantB); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	eventually(t, "hook discovery", func() bool { return len(ctrl.Hooks()) == 1 })
	if err := ctrl.SelectHook("3"); err != nil {
		t.Fatalf("SelectHook() error = %v", err)
	}
	if err := ctrl.Detach(); err != nil {
		t.Fatalf("Detach() error = %v", err)
	}

	if err := ctrl.Attach(4242, protocol.VariantB); err != nil {
		t.Fatalf("second Attach() error = %v", err)
	}
	eventually(t, "auto-select", func() bool { return ctrl.Status().SelectedHook == "3" })
	eventually(t, "auto-selected output", func() bool {
		return strings.HasPrefix(a.Buffer().String(), "hello there\n")
	})

	stop()
}

func TestApp_PluginStatePersists(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Plugins().Enable(builtin.RemoveEmptyID); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer b.Close()

	ds := b.Plugins().Descriptors()
	if len(ds) != len(builtin.Identities()) {
		t.Fatalf("got %d plugins, want %d", len(ds), len(builtin.Identities()))
	}
	for _, d := range ds {
		if want := d.Identity == builtin.RemoveEmptyID; d.Enabled != want {
			t.Errorf("%s enabled = %v, want %v", d.Identity, d.Enabled, want)
		}
	}
}

func TestEngineLauncher(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.A = config.EngineCommand{Path: "/opt/engine-a", Args: []string{"-x"}}
	cfg.Engine.B = config.EngineCommand{}

	l := EngineLauncher(cfg)
	if got := l.Engines[protocol.VariantA]; got.Path != "/opt/engine-a" || len(got.Args) != 1 {
		t.Errorf("engine A = %+v", got)
	}
	if _, ok := l.Engines[protocol.VariantB]; ok {
		t.Error("engine B should be absent without a path")
	}
}

func TestApp_DiscoversPluginsAtRuntime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Watch = true
	a, stop := startApp(t, cfg)
	defer stop()

	// Give the watcher time to register the directory.
	eventually(t, "plugin dir", func() bool {
		_, err := os.Stat(cfg.Plugins.Dir)
		return err == nil
	})
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(cfg.Plugins.Dir, "upper")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"upper","version":"1.0","description":"Upper-cases text","executable":"upper"}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := pluginService{a}
	eventually(t, "external plugin registration", func() bool {
		ds, err := svc.Descriptors()
		if err != nil {
			return false
		}
		for _, d := range ds {
			if d.Identity == plugin.ExternalPrefix+"upper" {
				return !d.Enabled
			}
		}
		return false
	})
}
