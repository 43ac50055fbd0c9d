package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// DefaultGrace is how long a terminated process gets before it is killed.
const DefaultGrace = 5 * time.Second

// execCmd allows mocking exec.CommandContext in tests
var execCmd = exec.CommandContext

// Launcher starts and supervises external tools.
type Launcher struct {
	// Command builds the *exec.Cmd; tests swap it for a helper process.
	Command  func(ctx context.Context, name string, args ...string) *exec.Cmd
	LookPath func(file string) (string, error)
	Grace    time.Duration
}

// NewLauncher returns a launcher backed by os/exec.
func NewLauncher() *Launcher {
	return &Launcher{
		Command:  execCmd,
		LookPath: exec.LookPath,
		Grace:    DefaultGrace,
	}
}

// Require verifies every tool is on PATH.
func (l *Launcher) Require(tools ...string) error {
	for _, tool := range tools {
		if _, err := l.LookPath(tool); err != nil {
			return &domain.ToolUnavailableError{Tool: tool, Hint: "install aircrack-ng, reaver and wireless-tools"}
		}
	}
	return nil
}

// Output runs a command to completion with a bounded timeout and returns its
// combined output. Exceeding the bound yields a *domain.ProcessTimeoutError.
func (l *Launcher) Output(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := l.Command(runCtx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd, unix.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	out, err := cmd.CombinedOutput()
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return out, &domain.ProcessTimeoutError{Command: name, Timeout: timeout}
	}
	if err != nil && ctx.Err() != nil {
		return out, ctx.Err()
	}
	if err != nil {
		return out, fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Process is a long-running supervised tool.
type Process struct {
	Name   string
	cmd    *exec.Cmd
	grace  time.Duration
	output io.ReadCloser

	done    chan struct{}
	waitErr error
	stop    sync.Once
}

// Start launches a long-running process in its own process group.
// When piped is true the combined stdout/stderr is available from Output().
func (l *Launcher) Start(ctx context.Context, piped bool, name string, args ...string) (*Process, error) {
	cmd := l.Command(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd, unix.SIGKILL)
	}
	cmd.WaitDelay = l.Grace

	p := &Process{
		Name:  name,
		cmd:   cmd,
		grace: l.Grace,
		done:  make(chan struct{}),
	}

	var writer *os.File
	if piped {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, err
		}
		cmd.Stdout = w
		cmd.Stderr = w
		p.output = r
		writer = w
	}

	if err := cmd.Start(); err != nil {
		if writer != nil {
			writer.Close()
			p.output.Close()
		}
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	if writer != nil {
		// the child holds its own copy; closing ours lets readers see EOF on exit
		writer.Close()
	}

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// Pid returns the process id.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Output returns the combined output stream for piped processes.
func (p *Process) Output() io.Reader {
	return p.output
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Alive reports whether the process is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// Stop sends SIGTERM to the process group, waits for the grace period and
// falls back to SIGKILL. It is safe to call more than once.
func (p *Process) Stop() {
	p.stop.Do(func() {
		if !p.Alive() {
			p.closeOutput()
			return
		}
		if err := killGroup(p.cmd, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			log.Printf("Failed to terminate %s (pid %d): %v", p.Name, p.Pid(), err)
		}
		select {
		case <-p.done:
		case <-time.After(p.grace):
			log.Printf("%s (pid %d) ignored SIGTERM, killing", p.Name, p.Pid())
			_ = killGroup(p.cmd, unix.SIGKILL)
			<-p.done
		}
		p.closeOutput()
	})
}

func (p *Process) closeOutput() {
	if p.output != nil {
		p.output.Close()
	}
}

func killGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return nil
	}
	return unix.Kill(-cmd.Process.Pid, sig)
}

// ScanLines splits on both CR and LF so progress lines are seen as they are printed.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[0:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// NewLineScanner wraps r with the CR/LF splitter.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(ScanLines)
	return scanner
}
