package styles

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes external processes
type Runner interface {
	// Run executes name with args and returns its stdout and stderr
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
	// LookPath resolves an executable name
	LookPath(name string) (string, error)
}

// ExecRunner runs processes with os/exec
type ExecRunner struct {
	// Dir is the working directory of spawned processes
	Dir string
}

// Run implements Runner
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// LookPath implements Runner
func (r ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
