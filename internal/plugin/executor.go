package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	// ErrExecution wraps every failure to run an external plugin.
	ErrExecution = errors.New("plugin execution failed")
	// ErrTimeout is returned when a plugin outlives the executor timeout.
	ErrTimeout = errors.New("plugin execution timed out")
	// ErrBadOutput is returned when a plugin's stdout is not a valid Response.
	ErrBadOutput = errors.New("plugin returned invalid output")
)

// DefaultTimeout bounds one external plugin invocation.
const DefaultTimeout = 5 * time.Second

// Executor handles the execution of external plugins with timeout support.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor. A non-positive timeout selects DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute runs the plugin executable with req as JSON on stdin and parses stdout as a Response.
func (e *Executor) Execute(ctx context.Context, p *External, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Run from the plugin directory so manifests can use relative paths
	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Path

	// One request per invocation, on stdin
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	// Capture stdout and stderr
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Run the command
	err = cmd.Run()

	// The deadline wins over whatever exit status the kill produced
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %w after %s", ErrExecution, ErrTimeout, e.timeout)
	}

	// Non-zero exit or failure to start
	if err != nil {
		if stderrStr := stderr.String(); stderrStr != "" {
			return nil, fmt.Errorf("%w: %v, stderr: %s", ErrExecution, err, stderrStr)
		}
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	// Parse the reply from stdout
	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("%w: %w: %v, stdout: %s", ErrExecution, ErrBadOutput, err, stdout.String())
	}

	return &response, nil
}
