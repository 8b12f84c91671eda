package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/sugoi/internal/hooks"
	"github.com/ayusman/sugoi/internal/output"
	"github.com/ayusman/sugoi/internal/plugin"
	"github.com/ayusman/sugoi/internal/profile"
	"github.com/ayusman/sugoi/internal/protocol"
	"github.com/ayusman/sugoi/internal/session"
	"github.com/ayusman/sugoi/internal/store"
)

// fakeSession follows the controller's rules without an engine.
type fakeSession struct {
	mu       sync.Mutex
	status   session.Status
	hooks    []hooks.Record
	cleared  int
	writeErr error
}

func (f *fakeSession) Status() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSession) Attach(pid int, v protocol.Variant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.State != session.StateDetached {
		return session.ErrAlreadyAttached
	}
	if f.writeErr != nil {
		return &session.AttachError{PID: pid, Variant: v, Err: f.writeErr}
	}
	f.status = session.Status{State: session.StateAttached, PID: pid, Engine: v}
	return nil
}

func (f *fakeSession) Detach() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.State != session.StateAttached {
		return session.ErrNotAttached
	}
	f.status = session.Status{}
	return nil
}

func (f *fakeSession) SelectHook(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.State != session.StateAttached {
		return session.ErrNotAttached
	}
	for _, h := range f.hooks {
		if h.ID == id {
			f.status.SelectedHook = id
			return nil
		}
	}
	return session.ErrUnknownHook
}

func (f *fakeSession) ManualHook(code string) error {
	if !protocol.ValidHookCode(code) {
		return protocol.ErrInvalidHookCode
	}
	return nil
}

func (f *fakeSession) ClearOutput() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func (f *fakeSession) Hooks() []hooks.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hooks
}

// lockedPlugins serialises registry access the way the control loop does.
type lockedPlugins struct {
	mu  sync.Mutex
	reg *plugin.Registry
}

func (l *lockedPlugins) Descriptors() ([]plugin.Descriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.Descriptors(), nil
}

func (l *lockedPlugins) Apply(identity string, u plugin.Update) (plugin.Descriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reg.Apply(identity, u); err != nil {
		return plugin.Descriptor{}, err
	}
	return l.reg.Describe(identity)
}

type upper struct {
	plugin.Base
	min int
}

func (*upper) Info() plugin.Info                   { return plugin.Info{Name: "Upper"} }
func (*upper) Process(text string) (string, error) { return strings.ToUpper(text), nil }
func (u *upper) Settings() []plugin.Setting {
	return []plugin.Setting{{Name: "min", Value: u.min, Type: plugin.SettingInt}}
}
func (u *upper) SetSetting(name string, v any) error {
	if name != "min" {
		return plugin.ErrUnknownSetting
	}
	n, err := plugin.IntValue(v)
	if err != nil || n < 0 {
		return plugin.ErrInvalidSetting
	}
	u.min = n
	return nil
}

type testEnv struct {
	ts      *httptest.Server
	session *fakeSession
	buffer  *output.Buffer
	store   *store.Store
	saveDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	reg := plugin.NewRegistry(st.Plugins())
	reg.Register("upper", &upper{})

	env := &testEnv{
		session: &fakeSession{hooks: []hooks.Record{{ID: "1", Label: "Reader", Samples: []string{"hi"}}}},
		buffer:  output.NewBuffer(),
		store:   st,
		saveDir: filepath.Join(t.TempDir(), "saved"),
	}
	srv := New(Config{
		SaveDir:  env.saveDir,
		Session:  env.session,
		Plugins:  &lockedPlugins{reg: reg},
		Profiles: st.Profiles(),
		Output:   env.buffer,
		Hub:      NewHub(),
	})
	env.ts = httptest.NewServer(srv)
	t.Cleanup(env.ts.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	header := http.Header{}
	if body != "" {
		header.Set("Content-Type", "application/json")
	}
	return e.send(t, method, path, body, header)
}

func (e *testEnv) send(t *testing.T, method, path, body string, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header = header
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestAPI_SessionWorkflow(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/api/session", "", http.StatusOK},
		{http.MethodPost, "/api/session/select", `{"hook_id":"1"}`, http.StatusConflict},
		{http.MethodPost, "/api/session/attach", `{"pid":0,"engine":"a"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/session/attach", `{"pid":42,"engine":"x"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/session/attach", `not json`, http.StatusBadRequest},
		{http.MethodPost, "/api/session/attach", `{"pid":42,"engine":"b"}`, http.StatusOK},
		{http.MethodPost, "/api/session/attach", `{"pid":42,"engine":"b"}`, http.StatusConflict},
		{http.MethodPost, "/api/session/select", `{"hook_id":"9"}`, http.StatusNotFound},
		{http.MethodPost, "/api/session/select", `{"hook_id":""}`, http.StatusBadRequest},
		{http.MethodPost, "/api/session/select", `{"hook_id":"1"}`, http.StatusOK},
		{http.MethodPost, "/api/session/manual", `{"code":"nope"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/session/manual", `{"code":"HS-4@1234"}`, http.StatusOK},
		{http.MethodGet, "/api/hooks", "", http.StatusOK},
		{http.MethodPost, "/api/session/detach", "", http.StatusOK},
		{http.MethodPost, "/api/session/detach", "", http.StatusConflict},
		{http.MethodPost, "/api/session/bogus", "", http.StatusNotFound},
		{http.MethodDelete, "/api/session", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s %s", tt.method, tt.path, tt.body), func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (body %v)", resp.StatusCode, tt.want, body)
			}
			if resp.StatusCode >= 400 && resp.StatusCode != http.StatusMethodNotAllowed {
				if _, ok := body["error"]; !ok {
					t.Errorf("error responses carry an error field, got %v", body)
				}
			}
		})
	}
}

func TestAPI_AttachEngineFailure(t *testing.T) {
	env := newTestEnv(t)
	env.session.writeErr = session.ErrWrite

	resp, body := env.do(t, http.MethodPost, "/api/session/attach", `{"pid":7,"engine":"a"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 (%v)", resp.StatusCode, body)
	}
}

func TestAPI_Plugins(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/plugins", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/plugins status = %d", resp.StatusCode)
	}
	if list, _ := body["plugins"].([]any); len(list) != 1 {
		t.Fatalf("plugins = %v", body["plugins"])
	}

	resp, body = env.do(t, http.MethodPut, "/api/plugins/upper", `{"enabled":true,"settings":{"min":3}}`)
	if resp.StatusCode != http.StatusOK || body["enabled"] != true {
		t.Fatalf("PUT status = %d, body %v", resp.StatusCode, body)
	}

	state, err := env.store.Plugins().Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Active) != 1 || state.Active[0] != "upper" {
		t.Errorf("enabled state not persisted: %+v", state)
	}

	if resp, _ := env.do(t, http.MethodPut, "/api/plugins/upper", `{"settings":{"min":-1}}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid setting status = %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodPut, "/api/plugins/missing", `{}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing plugin status = %d", resp.StatusCode)
	}
}

func TestAPI_Profiles(t *testing.T) {
	env := newTestEnv(t)
	p := &profile.Profile{
		Identity: "abc",
		ExeName:  "Game.exe",
		Selector: profile.Selector{Kind: profile.SelectorAuto, Label: "Reader"},
		LastUsed: time.Now(),
	}
	if err := env.store.Profiles().Save(p); err != nil {
		t.Fatal(err)
	}

	resp, body := env.do(t, http.MethodGet, "/api/profiles", "")
	if list, _ := body["profiles"].([]any); resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Fatalf("GET /api/profiles = %d %v", resp.StatusCode, body)
	}

	if resp, _ := env.do(t, http.MethodDelete, "/api/profiles/abc", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodDelete, "/api/profiles/abc", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE status = %d", resp.StatusCode)
	}
}

func TestAPI_Output(t *testing.T) {
	env := newTestEnv(t)
	env.buffer.Output(session.Chunk{Source: session.SourceSelected, Text: "hello world\n"})

	resp, body := env.do(t, http.MethodGet, "/api/output", "")
	if resp.StatusCode != http.StatusOK || body["text"] != "hello world\n" {
		t.Fatalf("GET /api/output = %d %v", resp.StatusCode, body)
	}
	stats, _ := body["stats"].(map[string]any)
	if stats["words"] != float64(2) {
		t.Errorf("stats = %v", stats)
	}

	resp, body = env.do(t, http.MethodPost, "/api/output/save", `{"name":"out.txt"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d %v", resp.StatusCode, body)
	}
	path := filepath.Join(env.saveDir, "out.txt")
	if body["path"] != path {
		t.Errorf("saved to %v, want %s", body["path"], path)
	}
	if data, _ := os.ReadFile(path); string(data) != "hello world" {
		t.Errorf("saved %q", data)
	}

	if resp, _ := env.do(t, http.MethodDelete, "/api/output", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d", resp.StatusCode)
	}
	if env.session.cleared != 1 {
		t.Error("clearing output goes through the session")
	}

	env.buffer.ClearOutput()
	if resp, _ := env.do(t, http.MethodPost, "/api/output/save", `{"name":"out.txt"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("saving empty output status = %d", resp.StatusCode)
	}
}

func TestAPI_OutputSaveStaysInSaveDir(t *testing.T) {
	env := newTestEnv(t)
	env.buffer.Output(session.Chunk{Source: session.SourceSelected, Text: "game text\n"})

	victim := filepath.Join(t.TempDir(), ".bashrc")
	if err := os.WriteFile(victim, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		body   string
		header http.Header
		want   int
	}{
		{
			name:   "foreign origin",
			body:   `{"name":"out.txt"}`,
			header: http.Header{"Content-Type": {"text/plain"}, "Origin": {"https://evil.example"}},
			want:   http.StatusForbidden,
		},
		{
			name:   "foreign origin with json",
			body:   `{"name":"out.txt"}`,
			header: http.Header{"Content-Type": {"application/json"}, "Origin": {"https://evil.example"}},
			want:   http.StatusForbidden,
		},
		{
			name:   "plain text body",
			body:   `{"name":"out.txt"}`,
			header: http.Header{"Content-Type": {"text/plain"}},
			want:   http.StatusUnsupportedMediaType,
		},
		{
			name:   "absolute path",
			body:   `{"name":"` + victim + `"}`,
			header: http.Header{"Content-Type": {"application/json"}},
			want:   http.StatusBadRequest,
		},
		{
			name:   "parent directory",
			body:   `{"name":"../.bashrc"}`,
			header: http.Header{"Content-Type": {"application/json"}},
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing name",
			body:   `{}`,
			header: http.Header{"Content-Type": {"application/json"}},
			want:   http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.send(t, http.MethodPost, "/api/output/save", tt.body, tt.header)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d %v, want %d", resp.StatusCode, body, tt.want)
			}
		})
	}

	if data, _ := os.ReadFile(victim); string(data) != "original" {
		t.Errorf("file outside the save dir changed to %q", data)
	}
	if _, err := os.Stat(filepath.Join(env.saveDir, "out.txt")); !os.IsNotExist(err) {
		t.Errorf("refused requests should not write, stat error = %v", err)
	}

	// Same-origin pages are served.
	origin := http.Header{"Content-Type": {"application/json"}, "Origin": {env.ts.URL}}
	if resp, body := env.send(t, http.MethodPost, "/api/output/save", `{"name":"out.txt"}`, origin); resp.StatusCode != http.StatusOK {
		t.Errorf("same-origin save status = %d %v", resp.StatusCode, body)
	}
}

func TestHub_RefusesForeignOrigin(t *testing.T) {
	ts := httptest.NewServer(New(Config{Hub: NewHub()}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("dial from a foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake response = %v", resp)
	}
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(New(Config{Hub: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var sink session.Sink = hub
	sink.HookDiscovered("7", "Reader")
	sink.Output(session.Chunk{ID: "c1", Source: session.SourcePreview, HookID: "7", Text: "[Hook 7] hi\n"})
	sink.StateChanged(session.StateDetached, session.ErrEngineExited)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var events []Event
	for i := 0; i < 3; i++ {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		events = append(events, ev)
	}

	if events[0].Type != "hook_discovered" || events[0].Label != "Reader" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Type != "output" || events[1].Chunk == nil || events[1].Chunk.Text != "[Hook 7] hi\n" {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Type != "state" || events[2].State != "detached" || events[2].Error == "" {
		t.Errorf("event 2 = %+v", events[2])
	}
}
