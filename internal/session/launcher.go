package session

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/ayusman/sugoi/internal/protocol"
)

// ErrNoEngine is returned when no executable is configured for an engine variant.
var ErrNoEngine = errors.New("no engine configured")

// Process is a running hook engine.
type Process interface {
	// Stdin accepts raw encoded bytes.
	Stdin() io.Writer
	// Stdout yields raw encoded bytes.
	Stdout() io.Reader
	// Terminate asks the engine to exit.
	Terminate() error
	// Kill stops the engine forcefully.
	Kill() error
	// Wait blocks until the engine exited. It may be called more than once.
	Wait() error
}

// Launcher starts hook engines.
type Launcher interface {
	Launch(variant protocol.Variant) (Process, error)
}

// EngineCommand is the executable for one engine variant.
type EngineCommand struct {
	Path string
	Args []string
}

// ExecLauncher starts engines as child processes.
type ExecLauncher struct {
	Engines map[protocol.Variant]EngineCommand
}

// Launch starts the engine configured for variant.
func (l ExecLauncher) Launch(variant protocol.Variant) (Process, error) {
	engine, ok := l.Engines[variant]
	if !ok || engine.Path == "" {
		return nil, fmt.Errorf("%w for variant %q", ErrNoEngine, variant)
	}

	cmd := exec.Command(engine.Path, engine.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %s: %w", engine.Path, err)
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader

	waitOnce sync.Once
	waitErr  error
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }

func (p *execProcess) Terminate() error {
	p.stdin.Close()
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}
