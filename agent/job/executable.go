package job

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/warden/config"
	"github.com/teranos/warden/errors"
)

// Names of the capture files written under a job's output directory.
const (
	StdoutFileName = "stdout"
	StderrFileName = "stderr"
)

// Executable is what a Job runs. The process-backed implementation owns an
// OS process; the external implementation merely observes one.
type Executable interface {
	// LaunchAndWait starts the work and blocks until it exits, returning
	// the raw wait status: the exit code for normal exits, the negated
	// signal number for signal deaths (SIGTERM surfaces as -15). The error
	// is reserved for launch and I/O failures, not for nonzero exits.
	LaunchAndWait() (int, error)
	// Terminate asks the running process to stop. No-op when nothing is
	// running.
	Terminate() error
	// Pid returns the OS process id while the process is alive, 0 otherwise.
	Pid() int
	// OutputPath returns the directory output is captured under, or "" when
	// output is not captured.
	OutputPath() string
	// StdoutPath and StderrPath return the capture file paths, or "" when
	// output is not captured.
	StdoutPath() string
	StderrPath() string

	fmt.Stringer
}

// lookPath is swapped in tests so interpreter resolution does not depend on
// what the host has installed.
var lookPath = exec.LookPath

// scriptSuffixes are the argument extensions resolved against the working
// directory before launch.
var scriptSuffixes = map[string]bool{
	".py":    true,
	".sh":    true,
	".ipy":   true,
	".ipynb": true,
}

// PrependInterpreter prepends the interpreter implied by the first
// argument's extension: python for .py, ipython (falling back to python
// when not installed) for .ipy and .ipynb. Other commands pass through
// unchanged.
func PrependInterpreter(args []string) []string {
	if len(args) == 0 {
		return args
	}
	switch filepath.Ext(args[0]) {
	case ".py":
		return append([]string{pythonInterpreter()}, args...)
	case ".ipy", ".ipynb":
		return append([]string{ipythonInterpreter()}, args...)
	}
	return args
}

func pythonInterpreter() string {
	for _, name := range []string{"python3", "python"} {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	// Let the launch fail with a resolvable name rather than guessing here.
	return "python3"
}

func ipythonInterpreter() string {
	if path, err := lookPath("ipython"); err == nil {
		return path
	}
	return pythonInterpreter()
}

// resolveScriptPaths resolves script-like arguments (.py, .sh, .ipy, .ipynb)
// against cwd so a typo fails at submission time, not minutes later on the
// worker. Non-script arguments pass through untouched.
func resolveScriptPaths(args []string, cwd string) ([]string, error) {
	resolved := make([]string, 0, len(args))
	for _, arg := range args {
		if scriptSuffixes[filepath.Ext(arg)] {
			full := arg
			if !filepath.IsAbs(full) {
				full = filepath.Join(cwd, full)
			}
			info, err := os.Stat(full)
			if err != nil || info.IsDir() {
				return nil, errors.Wrapf(errors.ErrExecutableNotFound, "no such file %s", full)
			}
			arg = full
		}
		resolved = append(resolved, arg)
	}
	return resolved, nil
}

// ProcessExecutable runs a command as a subprocess, capturing stdout and
// stderr into files under its output directory.
type ProcessExecutable struct {
	args       []string
	workDir    string
	outputPath string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewProcessExecutable builds a process-backed executable. Script arguments
// are resolved against cwd up front; cwd defaults to the daemon's working
// directory and becomes the working directory of the launched process.
// outputPath may be empty, in which case output is discarded.
func NewProcessExecutable(args []string, cwd string, outputPath string) (*ProcessExecutable, error) {
	if len(args) == 0 {
		return nil, errors.New("executable requires at least one argument")
	}
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "resolve working directory")
		}
		cwd = wd
	}
	resolved, err := resolveScriptPaths(args, cwd)
	if err != nil {
		return nil, err
	}
	return &ProcessExecutable{args: resolved, workDir: cwd, outputPath: outputPath}, nil
}

// Args returns the fully resolved command line.
func (p *ProcessExecutable) Args() []string {
	out := make([]string, len(p.args))
	copy(out, p.args)
	return out
}

// WorkDir returns the directory the process runs in.
func (p *ProcessExecutable) WorkDir() string { return p.workDir }

func (p *ProcessExecutable) OutputPath() string { return p.outputPath }

func (p *ProcessExecutable) StdoutPath() string {
	if p.outputPath == "" {
		return ""
	}
	return filepath.Join(p.outputPath, StdoutFileName)
}

func (p *ProcessExecutable) StderrPath() string {
	if p.outputPath == "" {
		return ""
	}
	return filepath.Join(p.outputPath, StderrFileName)
}

// LaunchAndWait starts the subprocess and blocks until it exits. The output
// directory is created on demand. Called at most once per executable.
func (p *ProcessExecutable) LaunchAndWait() (int, error) {
	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.Dir = p.workDir

	if p.outputPath != "" {
		if err := os.MkdirAll(p.outputPath, config.DefaultDirPermissions); err != nil {
			return -1, errors.Wrapf(err, "create output directory %s", p.outputPath)
		}
		stdout, err := os.Create(p.StdoutPath())
		if err != nil {
			return -1, errors.Wrap(err, "open stdout capture")
		}
		defer stdout.Close()
		stderr, err := os.Create(p.StderrPath())
		if err != nil {
			return -1, errors.Wrap(err, "open stderr capture")
		}
		defer stderr.Close()
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}

	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return -1, errors.Newf("process already launched: %s", p)
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return -1, errors.Wrapf(err, "launch %s", p.args[0])
	}
	p.cmd = cmd
	p.mu.Unlock()

	err := cmd.Wait()

	p.mu.Lock()
	p.cmd = nil
	p.mu.Unlock()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitStatus(exitErr.ProcessState), nil
		}
		return -1, errors.Wrapf(err, "wait for %s", p.args[0])
	}
	return exitStatus(cmd.ProcessState), nil
}

// Terminate sends SIGTERM to the running process. Calling it before launch
// or after exit is a no-op.
func (p *ProcessExecutable) Terminate() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return errors.Wrap(err, "terminate process")
	}
	return nil
}

func (p *ProcessExecutable) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *ProcessExecutable) String() string {
	return shellquote.Join(p.args...)
}

// exitStatus maps a finished process state to the raw wait status: the exit
// code for normal exits, the negated signal number for signal deaths, so a
// SIGTERM'd process reports -15.
func exitStatus(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}

// ExternalExecutable stands in for a process the agent observes but did not
// launch. It carries the reported pid so scalar reports can be routed to the
// owning job; there is no process handle behind it.
type ExternalExecutable struct {
	pid int
}

// NewExternalExecutable wraps an externally-owned pid.
func NewExternalExecutable(pid int) *ExternalExecutable {
	return &ExternalExecutable{pid: pid}
}

// LaunchAndWait fails: external work is observed, never launched.
func (e *ExternalExecutable) LaunchAndWait() (int, error) {
	return -1, errors.Newf("external process %d is not launched by the agent", e.pid)
}

// Terminate is a no-op; there is no process handle to signal.
func (e *ExternalExecutable) Terminate() error { return nil }

func (e *ExternalExecutable) Pid() int { return e.pid }

func (e *ExternalExecutable) OutputPath() string { return "" }
func (e *ExternalExecutable) StdoutPath() string { return "" }
func (e *ExternalExecutable) StderrPath() string { return "" }

func (e *ExternalExecutable) String() string {
	return fmt.Sprintf("external process %d", e.pid)
}
