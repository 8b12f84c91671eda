package session

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/transform"

	"github.com/ayusman/sugoi/internal/hooks"
	"github.com/ayusman/sugoi/internal/loop"
	"github.com/ayusman/sugoi/internal/plugin"
	"github.com/ayusman/sugoi/internal/profile"
	"github.com/ayusman/sugoi/internal/protocol"
)

const (
	// DefaultGracePeriod is how long a terminated engine may take to exit before it is killed.
	DefaultGracePeriod = 2 * time.Second
	// maxLineSize bounds a single engine output line.
	maxLineSize = 1 << 20
)

// Options configures a Controller.
type Options struct {
	Launcher Launcher
	Plugins  *plugin.Registry
	// Hooks defaults to an empty registry.
	Hooks *hooks.Registry
	// Matcher is optional.
	Matcher     *profile.Matcher
	Sink        Sink
	GracePeriod time.Duration
}

// Controller owns the engine session. All state lives on the control loop; the
// exported methods hop onto it and wait.
type Controller struct {
	loop     *loop.Loop
	launcher Launcher
	plugins  *plugin.Registry
	hooks    *hooks.Registry
	matcher  *profile.Matcher
	sink     Sink
	grace    time.Duration
	now      func() time.Time

	state State
	sess  *session
}

type session struct {
	id        string
	pid       int
	variant   protocol.Variant
	proc      Process
	stdin     io.Writer
	parser    protocol.Parser
	selected  string
	startedAt time.Time
}

// NewController creates a detached Controller running on l.
func NewController(l *loop.Loop, opts Options) *Controller {
	if opts.Hooks == nil {
		opts.Hooks = hooks.NewRegistry()
	}
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Plugins == nil {
		opts.Plugins = plugin.NewRegistry(nil)
	}
	return &Controller{
		loop:     l,
		launcher: opts.Launcher,
		plugins:  opts.Plugins,
		hooks:    opts.Hooks,
		matcher:  opts.Matcher,
		sink:     opts.Sink,
		grace:    opts.GracePeriod,
		now:      time.Now,
	}
}

// Attach starts an engine of the given variant and attaches it to pid.
func (c *Controller) Attach(pid int, variant protocol.Variant) error {
	var err error
	if callErr := c.loop.Call(func() { err = c.attach(pid, variant) }); callErr != nil {
		return callErr
	}
	return err
}

// Detach ends the session and waits until the engine is gone.
func (c *Controller) Detach() error {
	var (
		done <-chan struct{}
		err  error
	)
	if callErr := c.loop.Call(func() { done, err = c.detach() }); callErr != nil {
		return callErr
	}
	if done != nil {
		<-done
	}
	return err
}

// SelectHook makes hookID the selected hook and replays its samples.
func (c *Controller) SelectHook(hookID string) error {
	var err error
	if callErr := c.loop.Call(func() { err = c.selectHook(hookID) }); callErr != nil {
		return callErr
	}
	return err
}

// ManualHook installs a manual hook expression in the attached engine.
func (c *Controller) ManualHook(code string) error {
	var err error
	if callErr := c.loop.Call(func() { err = c.manualHook(code) }); callErr != nil {
		return callErr
	}
	return err
}

// ClearOutput clears the output and resets every plugin.
func (c *Controller) ClearOutput() error {
	return c.loop.Call(c.clearOutput)
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	var st Status
	if err := c.loop.Call(func() { st = c.status() }); err != nil {
		return Status{State: StateDetached}
	}
	return st
}

// Hooks returns the discovered hooks in discovery order.
func (c *Controller) Hooks() []hooks.Record {
	var recs []hooks.Record
	c.loop.Call(func() { recs = c.hooks.Snapshot() })
	return recs
}

func (c *Controller) setState(s State, err error) {
	c.state = s
	c.sink.StateChanged(s, err)
}

func (c *Controller) status() Status {
	st := Status{State: c.state, Hooks: c.hooks.Len()}
	if c.matcher != nil {
		st.AutoSelecting = c.matcher.Pending()
	}
	if c.sess != nil {
		st.SessionID = c.sess.id
		st.PID = c.sess.pid
		st.Engine = c.sess.variant
		st.SelectedHook = c.sess.selected
		st.Since = c.sess.startedAt
	}
	return st
}

func (c *Controller) attach(pid int, variant protocol.Variant) error {
	if c.state != StateDetached {
		return ErrAlreadyAttached
	}
	if pid <= 0 {
		return &AttachError{PID: pid, Variant: variant, Err: ErrInvalidPID}
	}
	parser, err := protocol.NewParser(variant)
	if err != nil {
		return &AttachError{PID: pid, Variant: variant, Err: err}
	}
	if c.launcher == nil {
		return &AttachError{PID: pid, Variant: variant, Err: ErrNoEngine}
	}

	c.setState(StateAttaching, nil)

	proc, err := c.launcher.Launch(variant)
	if err != nil {
		attachErr := &AttachError{PID: pid, Variant: variant, Err: err}
		c.setState(StateDetached, attachErr)
		return attachErr
	}

	enc := variant.Encoding()
	s := &session{
		id:        uuid.NewString(),
		pid:       pid,
		variant:   variant,
		proc:      proc,
		stdin:     transform.NewWriter(proc.Stdin(), enc.NewEncoder()),
		parser:    parser,
		startedAt: c.now(),
	}

	if err := s.write(protocol.AttachCommand(pid)); err != nil {
		attachErr := &AttachError{PID: pid, Variant: variant, Err: err}
		go stopProcess(proc, c.grace)
		c.setState(StateDetached, attachErr)
		return attachErr
	}

	c.hooks.Clear()
	c.sink.HooksCleared()
	c.sess = s
	go c.readLoop(s, transform.NewReader(proc.Stdout(), enc.NewDecoder()))

	c.setState(StateAttached, nil)
	log.Printf("session %s: attached to %d with engine %s", s.id, pid, variant)
	c.sink.Notify(Notice{Level: LevelInfo, Title: "Attached", Message: fmt.Sprintf("Attached to process %d", pid)})

	if c.matcher != nil {
		if p := c.matcher.Attached(pid, variant, actions{c}); p != nil {
			log.Printf("session %s: found profile for %s", s.id, p.ExeName)
		}
	}
	return nil
}

// readLoop decodes and parses engine output off the loop and hands each event over.
func (c *Controller) readLoop(s *session, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		ev := s.parser.Parse(scanner.Text())
		if ev.Kind == protocol.EventDiscard {
			continue
		}
		if !c.loop.Post(func() { c.dispatch(s, ev) }) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("session %s: read: %v", s.id, err)
	}
	c.loop.Post(func() { c.engineExited(s) })
}

func (c *Controller) dispatch(s *session, ev protocol.Event) {
	if c.sess != s {
		return
	}
	switch ev.Kind {
	case protocol.EventConsole:
		c.emit(SourceConsole, "", fmt.Sprintf("[Console] %s\n", ev.Text))
	case protocol.EventHook:
		rec, isNew := c.hooks.Observe(ev.HookID, ev.Label, ev.Text)
		if isNew {
			c.sink.HookDiscovered(rec.ID, rec.Label)
		}
		c.sink.HookPreview(rec.ID, rec.LastPreview)

		switch {
		case s.selected == "":
			c.emit(SourcePreview, ev.HookID, fmt.Sprintf("[Hook %s] %s\n", ev.HookID, ev.Text))
		case s.selected == ev.HookID && ev.Text != "":
			c.emit(SourceSelected, ev.HookID, ev.Text+"\n")
		}
	}
}

// emit runs text through the pipeline and presents whatever survives.
func (c *Controller) emit(src Source, hookID, text string) {
	out, ok := c.plugins.Run(text)
	if !ok {
		return
	}
	c.sink.Output(Chunk{
		ID:     uuid.NewString(),
		Source: src,
		HookID: hookID,
		Text:   out,
		At:     c.now(),
	})
}

func (c *Controller) clearOutput() {
	c.sink.ClearOutput()
	c.plugins.ResetAll()
}

func (c *Controller) selectHook(hookID string) error {
	s := c.sess
	if c.state != StateAttached || s == nil {
		return ErrNotAttached
	}
	rec, ok := c.hooks.Get(hookID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHook, hookID)
	}
	if err := s.write(protocol.SelectCommand(hookID)); err != nil {
		return err
	}

	s.selected = hookID
	c.clearOutput()
	for _, sample := range rec.Samples {
		c.emit(SourceSelected, hookID, sample+"\n")
	}
	log.Printf("session %s: selected hook %s (%s)", s.id, hookID, rec.Label)
	c.sink.Notify(Notice{Level: LevelInfo, Title: "Hook selected", Message: fmt.Sprintf("Hook %s: %s", hookID, rec.Label)})

	if c.matcher != nil {
		sel := profile.Selector{
			Kind:   profile.SelectorAuto,
			HookID: hookID,
			Label:  rec.Label,
			Sample: profile.FirstSample(rec),
		}
		if err := c.matcher.Remember(sel); err != nil {
			log.Printf("session %s: %v", s.id, err)
		}
	}
	return nil
}

func (c *Controller) manualHook(code string) error {
	s := c.sess
	if c.state != StateAttached || s == nil {
		return ErrNotAttached
	}
	cmd, err := protocol.ManualHookCommand(code, s.pid)
	if err != nil {
		return err
	}
	if err := s.write(cmd); err != nil {
		return err
	}
	log.Printf("session %s: installed manual hook %s", s.id, code)

	if c.matcher != nil {
		sel := profile.Selector{Kind: profile.SelectorManual, Code: code}
		if err := c.matcher.Remember(sel); err != nil {
			log.Printf("session %s: %v", s.id, err)
		}
	}
	return nil
}

func (c *Controller) detach() (<-chan struct{}, error) {
	s := c.sess
	if c.state != StateAttached || s == nil {
		return nil, ErrNotAttached
	}
	if err := s.write(protocol.DetachCommand(s.pid)); err != nil {
		log.Printf("session %s: %v", s.id, err)
	}
	return c.teardown(s, nil), nil
}

// engineExited handles end of output from the engine itself.
func (c *Controller) engineExited(s *session) {
	if c.sess != s {
		return
	}
	log.Printf("session %s: engine exited", s.id)
	c.teardown(s, ErrEngineExited)
}

// teardown stops the engine off the loop and finishes the detach on it. The returned
// channel is closed once the session is detached.
func (c *Controller) teardown(s *session, cause error) <-chan struct{} {
	c.sess = nil
	if c.matcher != nil {
		c.matcher.Detached()
	}
	c.setState(StateDetaching, nil)

	done := make(chan struct{})
	go func() {
		stopProcess(s.proc, c.grace)
		if !c.loop.Post(func() {
			c.finishDetach(s, cause)
			close(done)
		}) {
			close(done)
		}
	}()
	return done
}

func (c *Controller) finishDetach(s *session, cause error) {
	c.hooks.Clear()
	c.sink.HooksCleared()
	c.plugins.ResetAll()
	c.setState(StateDetached, cause)
	log.Printf("session %s: detached from %d", s.id, s.pid)

	if cause != nil {
		c.sink.Notify(Notice{Level: LevelWarning, Title: "Detached", Message: "The hook engine exited"})
		return
	}
	c.sink.Notify(Notice{Level: LevelInfo, Title: "Detached", Message: fmt.Sprintf("Detached from process %d", s.pid)})
}

func (s *session) write(cmd string) error {
	if _, err := io.WriteString(s.stdin, cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// stopProcess terminates proc and kills it if it outlives grace.
func stopProcess(proc Process, grace time.Duration) {
	if err := proc.Terminate(); err != nil {
		log.Printf("session: terminate engine: %v", err)
	}

	exited := make(chan struct{})
	go func() {
		proc.Wait()
		close(exited)
	}()

	select {
	case <-exited:
	case <-time.After(grace):
		log.Printf("session: engine did not exit within %s, killing", grace)
		if err := proc.Kill(); err != nil {
			log.Printf("session: kill engine: %v", err)
		}
		<-exited
	}
}

// actions lets the profile matcher drive the controller from the loop.
type actions struct {
	c *Controller
}

func (a actions) Candidates() []hooks.Record {
	return a.c.hooks.Snapshot()
}

func (a actions) SelectHook(hookID string) error {
	return a.c.selectHook(hookID)
}

func (a actions) ApplyManual(code string) error {
	return a.c.manualHook(code)
}

func (a actions) GiveUp(p *profile.Profile) {
	log.Printf("session: no hook matched the profile for %s", p.ExeName)
	c := a.c
	c.sink.Notify(Notice{
		Level:   LevelWarning,
		Title:   "Select a hook",
		Message: fmt.Sprintf("The saved hook for %s was not found. Select one manually.", p.ExeName),
	})
}
