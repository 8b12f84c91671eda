package profile

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/ayusman/sugoi/internal/hooks"
	"github.com/ayusman/sugoi/internal/protocol"
)

const (
	// DefaultRetryDelay separates auto-select attempts.
	DefaultRetryDelay = 2 * time.Second
	// DefaultMaxRetries is the number of attempts after the first.
	DefaultMaxRetries = 3
)

// Stopper cancels a scheduled task.
type Stopper interface {
	Stop() bool
}

// Scheduler runs fn on the control loop after d.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Stopper
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, fn func()) Stopper

// AfterFunc implements Scheduler.
func (f SchedulerFunc) AfterFunc(d time.Duration, fn func()) Stopper {
	return f(d, fn)
}

// Actions is what the matcher needs from the session it serves.
type Actions interface {
	// Candidates returns the hooks discovered so far, in discovery order.
	Candidates() []hooks.Record
	// SelectHook selects a discovered hook.
	SelectHook(hookID string) error
	// ApplyManual installs a manual hook expression.
	ApplyManual(code string) error
	// GiveUp reports that no hook could be matched and the user has to choose.
	GiveUp(p *Profile)
}

// Config tunes a Matcher.
type Config struct {
	RetryDelay time.Duration
	MaxRetries int
}

// Matcher tracks the game of the attached session and drives auto-select.
// Its methods must be called from the control loop.
type Matcher struct {
	store    Store
	resolver Resolver
	sched    Scheduler
	cfg      Config
	now      func() time.Time

	game    *game
	attempt *Attempt
}

type game struct {
	identity Identity
	target   Target
	variant  protocol.Variant
}

// NewMatcher creates a Matcher. Zero Config fields take the defaults.
func NewMatcher(store Store, resolver Resolver, sched Scheduler, cfg Config) *Matcher {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if resolver == nil {
		resolver = ProcResolver{}
	}
	return &Matcher{
		store:    store,
		resolver: resolver,
		sched:    sched,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ComputeIdentity derives the game identity of pid. ok is false if the executable
// cannot be resolved.
func (m *Matcher) ComputeIdentity(pid int) (Identity, Target, bool) {
	target, err := m.resolver.Resolve(pid)
	if err != nil {
		log.Printf("profile: %v", err)
		return "", Target{}, false
	}
	return target.Identity(), target, true
}

// Lookup returns the profile stored for id, or nil.
func (m *Matcher) Lookup(id Identity) *Profile {
	p, err := m.store.Get(id)
	if err != nil {
		log.Printf("profile: lookup %s: %v", id, err)
		return nil
	}
	return p
}

// Attached records the game behind pid and, if a profile exists, starts re-selecting
// its hook. A manual selector is applied at once. It returns the profile found, if any.
func (m *Matcher) Attached(pid int, variant protocol.Variant, act Actions) *Profile {
	m.Detached()

	id, target, ok := m.ComputeIdentity(pid)
	if !ok {
		return nil
	}
	m.game = &game{identity: id, target: target, variant: variant}

	p := m.Lookup(id)
	if p == nil {
		return nil
	}

	if p.Selector.Kind == SelectorManual {
		if err := act.ApplyManual(p.Selector.Code); err != nil {
			log.Printf("profile: replay manual hook for %s: %v", p.ExeName, err)
		}
		return p
	}

	m.attempt = &Attempt{matcher: m, profile: p, actions: act}
	m.attempt.schedule()
	return p
}

// Remember saves sel as the profile of the attached game.
func (m *Matcher) Remember(sel Selector) error {
	m.Cancel()
	if m.game == nil {
		return nil
	}
	p := &Profile{
		Identity: m.game.identity,
		ExeName:  filepath.Base(m.game.target.Path),
		ExePath:  m.game.target.Path,
		ExeSize:  m.game.target.Size,
		Selector: sel,
		Variant:  m.game.variant,
		LastUsed: m.now(),
	}
	if err := m.store.Save(p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Cancel stops a pending auto-select attempt.
func (m *Matcher) Cancel() {
	if m.attempt != nil {
		m.attempt.cancel()
		m.attempt = nil
	}
}

// Detached cancels auto-select and forgets the game.
func (m *Matcher) Detached() {
	m.Cancel()
	m.game = nil
}

// Pending reports whether an auto-select attempt is scheduled.
func (m *Matcher) Pending() bool {
	return m.attempt != nil && !m.attempt.done
}

// Attempt is one auto-select run with its retry counter.
type Attempt struct {
	matcher *Matcher
	profile *Profile
	actions Actions
	count   int
	timer   Stopper
	done    bool
}

func (a *Attempt) schedule() {
	a.timer = a.matcher.sched.AfterFunc(a.matcher.cfg.RetryDelay, a.run)
}

func (a *Attempt) run() {
	if a.done {
		return
	}
	a.count++

	if hookID, ok := Match(a.profile.Selector, a.actions.Candidates()); ok {
		a.done = true
		log.Printf("profile: auto-selecting hook %s for %s (attempt %d)", hookID, a.profile.ExeName, a.count)
		if err := a.actions.SelectHook(hookID); err != nil {
			log.Printf("profile: auto-select hook %s: %v", hookID, err)
		}
		return
	}

	if a.count > a.matcher.cfg.MaxRetries {
		a.done = true
		a.actions.GiveUp(a.profile)
		return
	}
	a.schedule()
}

func (a *Attempt) cancel() {
	a.done = true
	if a.timer != nil {
		a.timer.Stop()
	}
}
