package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camfeed/internal/logging"
)

// ExitCodeKilled is returned when the process had to be force-killed.
const ExitCodeKilled = 137

// ErrEmptyCommand is returned by Start when no arguments are configured.
var ErrEmptyCommand = errors.New("empty command")

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, gstreamer, etc.)
type LogParser func(line string) (level, msg string)

// StdoutConsumer reads the subprocess stdout until EOF. It is called once
// per started process.
type StdoutConsumer func(r io.Reader) error

type exitReason int

const (
	exitReasonProcessExit exitReason = iota
	exitReasonShutdown
	exitReasonRestart
)

// Process manages the lifecycle of a subprocess.
type Process struct {
	id              string
	args            []string
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	stdoutConsumer  StdoutConsumer // nil = log stdout lines like stderr
	onStateChange   StateChangeFunc
	restartChan     chan []string
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu   sync.RWMutex
	cmd  *exec.Cmd
	info Info
}

// NewProcess creates a new process. args[0] is the executable.
func NewProcess(id string, args []string, logger logging.Logger) *Process {
	return &Process{
		id:              id,
		args:            slices.Clone(args),
		logger:          logger,
		restartChan:     make(chan []string, 1),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		info:            Info{ID: id, State: StateIdle},
	}
}

// Args returns the current command arguments.
func (p *Process) Args() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.args)
}

// Info returns a snapshot of the process state.
func (p *Process) Info() Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info
}

// SetLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="ffmpeg").
// The parser extracts log level from process-specific output formats.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetStdoutConsumer hands stdout to fn instead of logging it.
func (p *Process) SetStdoutConsumer(fn StdoutConsumer) {
	p.stdoutConsumer = fn
}

// OnStateChange registers a callback for state transitions.
// Must be called before Run.
func (p *Process) OnStateChange(fn StateChangeFunc) {
	p.onStateChange = fn
}

// SetTimeouts overrides the graceful shutdown and post-kill timeouts.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	p.gracefulTimeout = graceful
	p.killTimeout = kill
}

// RequestRestart requests a restart with new arguments.
// Non-blocking: if a restart is already pending, its arguments are replaced.
func (p *Process) RequestRestart(args []string) {
	args = slices.Clone(args)
	for {
		select {
		case p.restartChan <- args:
			p.logger.Info("Restart requested", "id", p.id)
			return
		default:
		}
		select {
		case <-p.restartChan:
			p.logger.Debug("Replacing pending restart", "id", p.id)
		default:
		}
	}
}

func (p *Process) setState(state State) {
	p.mu.Lock()
	old := p.info.State
	p.info.State = state
	p.mu.Unlock()

	if old != state && p.onStateChange != nil {
		p.onStateChange(p.id, old, state)
	}
}

// runningProcess holds channels for monitoring a running subprocess.
type runningProcess struct {
	cmd         *exec.Cmd
	processDone <-chan error
}

// startProcess starts the subprocess and returns a channel that receives
// the Wait result once all output has been consumed.
func (p *Process) startProcess(args []string) (*runningProcess, error) {
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.info.PID = cmd.Process.Pid
	p.info.StartedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "args", args)

	var output sync.WaitGroup
	output.Add(2)
	go func() {
		defer output.Done()
		p.consumeStdout(stdout)
	}()
	go func() {
		defer output.Done()
		p.streamOutput(stderr, "stderr")
	}()

	// Wait closes the pipes, so it must not run before the readers finish.
	processDone := make(chan error, 1)
	go func() {
		output.Wait()
		processDone <- cmd.Wait()
	}()

	return &runningProcess{cmd: cmd, processDone: processDone}, nil
}

func (p *Process) consumeStdout(r io.Reader) {
	if p.stdoutConsumer == nil {
		p.streamOutput(r, "stdout")
		return
	}
	if err := p.stdoutConsumer(r); err != nil {
		p.logger.Warn("Stdout consumer failed", "id", p.id, "error", err)
	}
	// Keep the pipe drained so the child never blocks on a full buffer.
	_, _ = io.Copy(io.Discard, r)
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// Run starts the subprocess and blocks until it exits or ctx is cancelled.
// Returns the exit code of the subprocess.
func (p *Process) Run(ctx context.Context) int {
	exitCode, _ := p.runOnce(ctx, nil)
	return exitCode
}

// RunWithRestart runs the subprocess and handles restart requests.
// It returns when ctx is cancelled or the process exits on its own.
func (p *Process) RunWithRestart(ctx context.Context) int {
	for {
		exitCode, reason := p.runOnce(ctx, p.restartChan)

		switch reason {
		case exitReasonShutdown:
			p.logger.Info("Shutdown complete", "id", p.id, "exit_code", exitCode)
			return exitCode
		case exitReasonRestart:
			p.mu.Lock()
			p.info.RestartCount++
			p.mu.Unlock()
			p.logger.Info("Restarting process", "id", p.id)
			continue
		case exitReasonProcessExit:
			p.logger.Warn("Process exited unexpectedly", "id", p.id, "exit_code", exitCode)
			return exitCode
		}
	}
}

// runOnce runs the process once and returns the exit code and reason for exit.
func (p *Process) runOnce(ctx context.Context, restart <-chan []string) (int, exitReason) {
	if ctx.Err() != nil {
		return 0, exitReasonShutdown
	}

	p.setState(StateStarting)
	rp, err := p.startProcess(p.Args())
	if err != nil {
		p.logger.Error("Failed to start process", "id", p.id, "error", err)
		p.finish(1, StateError)
		return 1, exitReasonProcessExit
	}
	p.setState(StateRunning)

	select {
	case <-ctx.Done():
		p.logger.Info("Context cancelled, shutting down process", "id", p.id)
		p.setState(StateStopping)
		p.sendStopSignal(rp.cmd)
		exitCode := p.waitForExit(rp, p.gracefulTimeout)
		p.finish(exitCode, StateIdle)
		return exitCode, exitReasonShutdown

	case args := <-restart:
		p.logger.Info("Received restart request", "id", p.id)
		p.setState(StateStopping)
		p.sendStopSignal(rp.cmd)
		p.mu.Lock()
		p.args = args
		p.mu.Unlock()
		exitCode := p.waitForExit(rp, p.gracefulTimeout)
		p.finish(exitCode, StateIdle)
		return exitCode, exitReasonRestart

	case processErr := <-rp.processDone:
		exitCode := exitCodeFromError(processErr)
		if processErr != nil && exitCode == 1 {
			p.logger.Error("Process exited with error", "id", p.id, "error", processErr)
		}
		p.logger.Info("Process exited", "id", p.id, "exit_code", exitCode)
		p.finish(exitCode, StateError)
		return exitCode, exitReasonProcessExit
	}
}

func (p *Process) finish(exitCode int, state State) {
	p.mu.Lock()
	p.info.PID = 0
	p.info.LastExitCode = exitCode
	p.mu.Unlock()
	p.setState(state)
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	p.logger.Debug("Sending SIGINT to process", "id", p.id, "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "id", p.id, "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing
// the process group if needed.
func (p *Process) waitForExit(rp *runningProcess, timeout time.Duration) int {
	select {
	case err := <-rp.processDone:
		return exitCodeFromError(err)
	case <-time.After(timeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", timeout)
	if err := syscall.Kill(-rp.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Error("Failed to kill process group", "id", p.id, "error", err)
	}

	select {
	case <-rp.processDone:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal", "id", p.id)
	}
	return ExitCodeKilled
}

// streamOutput logs each output line at the level reported by the parser.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg, "source", source)
		case "warning":
			logger.Warn(msg, "source", source)
		case "debug", "trace":
			logger.Debug(msg, "source", source)
		default:
			logger.Info(msg, "source", source)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "id", p.id, "source", source, "error", err)
		_, _ = io.Copy(io.Discard, reader)
	}
}
