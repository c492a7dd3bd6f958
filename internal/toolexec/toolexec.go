package toolexec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
)

var (
	ErrEmptyCommand  = errs.Kind(errs.ErrValidation, "toolexec: empty command")
	ErrParseFailed   = errs.Kind(errs.ErrValidation, "toolexec: cannot parse command line")
	ErrPipeFailed    = errs.Kind(errs.ErrExternalTool, "toolexec: pipe setup failed")
	ErrStartFailed   = errs.Kind(errs.ErrExternalTool, "toolexec: start failed")
	ErrCommandFailed = errs.Kind(errs.ErrExternalTool, "toolexec: command failed")
)

const tailLines = 20

// StopGrace is how long a cancelled command has to exit after the interrupt
// before it is killed.
const StopGrace = 10 * time.Second

type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

type RunnerFunc func(ctx context.Context, cmd Command) error

func (f RunnerFunc) Run(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) error {
	p, err := Start(ctx, c)
	if err != nil {
		return err
	}
	return p.Wait()
}

// Process is a started command whose output is being streamed to the logger.
type Process struct {
	cmd     *exec.Cmd
	command Command
	pipes   sync.WaitGroup
	tail    *tail
}

func Start(ctx context.Context, c Command) (*Process, error) {
	if c.Name == "" {
		return nil, ErrEmptyCommand
	}
	cmd := exec.CommandContext(ctx, resolve(c.Name, c.Env), c.Args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = StopGrace
	cmd.Dir = c.Dir
	cmd.Env = os.Environ()
	if c.Dir != "" {
		cmd.Env = append(cmd.Env, "PWD="+c.Dir)
	}
	cmd.Env = append(cmd.Env, c.Env...)

	p := &Process{cmd: cmd, command: c, tail: &tail{max: tailLines}}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.Wrap(ErrPipeFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errs.Wrap(ErrPipeFailed, err)
	}

	logger.Info(ctx, "running", "command", c.String(), "dir", c.Dir)
	if err := cmd.Start(); err != nil {
		return nil, errs.WrapMsgErr(ErrStartFailed, c.String(), err)
	}
	p.pipes.Add(2)
	go p.logPipe(ctx, stdout, slog.LevelInfo, nil)
	go p.logPipe(ctx, stderr, slog.LevelWarn, p.tail)
	return p, nil
}

func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the command exits. A non-zero exit carries the last
// lines the command wrote to stderr.
func (p *Process) Wait() error {
	p.pipes.Wait()
	if err := p.cmd.Wait(); err != nil {
		msg := fmt.Sprintf("%s: %v", p.command.String(), err)
		if t := p.tail.String(); t != "" {
			msg += "\n" + t
		}
		return errs.WrapMsg(ErrCommandFailed, msg)
	}
	return nil
}

func (p *Process) logPipe(ctx context.Context, rc io.Reader, level slog.Level, keep *tail) {
	defer p.pipes.Done()
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := scanner.Text()
		if keep != nil {
			keep.add(line)
		}
		logger.Log(ctx, level, line, "command", p.command.Name)
	}
}

type tail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

// resolve looks name up in a PATH override carried by env, so a toolchain
// prepended to PATH is used for the command itself too.
func resolve(name string, env []string) string {
	if strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	var dirs string
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			dirs = v
		}
	}
	for _, dir := range filepath.SplitList(dirs) {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			return p
		}
	}
	return name
}

// Parse splits a configured command line into words.
func Parse(line string) ([]string, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return nil, errs.WrapMsgErr(ErrParseFailed, line, err)
	}
	if len(words) == 0 {
		return nil, errs.WrapMsg(ErrEmptyCommand, fmt.Sprintf("%q", line))
	}
	return words, nil
}

// Split turns a word list into a Command with extra trailing arguments.
func Split(words []string, dir string, extra ...string) (Command, error) {
	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}
	args := append(append([]string{}, words[1:]...), extra...)
	return Command{Name: words[0], Args: args, Dir: dir}, nil
}
