package styles

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/quantmind-br/assetforge/internal/domain"
)

// DefaultBinary is the style compiler executable
const DefaultBinary = "sass"

// Compiler turns one style entry into CSS
type Compiler interface {
	Compile(ctx context.Context, entry string) ([]byte, error)
}

// CompileError reports a failed compilation of an entry
type CompileError struct {
	Entry  string
	Stderr string
	Err    error
}

func (e *CompileError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("compile %s: %v", e.Entry, e.Err)
	}
	return fmt.Sprintf("compile %s: %v: %s", e.Entry, e.Err, msg)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// SassCLI compiles entries with the sass command line tool, reading the
// expanded CSS from stdout.
type SassCLI struct {
	Binary    string
	LoadPaths []string
	SourceMap bool
	Runner    Runner
}

// NewSassCLI creates a compiler using binary, or DefaultBinary when empty
func NewSassCLI(binary string, runner Runner) *SassCLI {
	if binary == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &SassCLI{Binary: binary, Runner: runner}
}

// Args returns the command line used for entry
func (s *SassCLI) Args(entry string) []string {
	args := []string{"--style=expanded"}
	if s.SourceMap {
		args = append(args, "--embed-source-map", "--embed-sources")
	} else {
		args = append(args, "--no-source-map")
	}
	for _, p := range s.LoadPaths {
		args = append(args, "--load-path="+p)
	}
	return append(args, entry)
}

// Compile implements Compiler
func (s *SassCLI) Compile(ctx context.Context, entry string) ([]byte, error) {
	stdout, stderr, err := s.Runner.Run(ctx, s.Binary, s.Args(entry)...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = fmt.Errorf("%w: %s: %v", domain.ErrCompilerNotFound, s.Binary, err)
		}
		return nil, &CompileError{Entry: entry, Stderr: string(stderr), Err: err}
	}
	return stdout, nil
}

// Check verifies the compiler binary can be found
func (s *SassCLI) Check() (string, error) {
	path, err := s.Runner.LookPath(s.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrCompilerNotFound, s.Binary)
	}
	return path, nil
}
