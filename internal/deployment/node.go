package deployment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/toolexec"
)

type NodeDeployment struct {
	svc      defs.ServiceDescriptor
	opts     Options
	execPath string
	runner   toolexec.Runner

	mu   sync.Mutex
	proc *toolexec.Process
}

func NewNodeDeployment(svc defs.ServiceDescriptor, opts Options) *NodeDeployment {
	return &NodeDeployment{
		svc:      svc,
		opts:     opts,
		execPath: filepath.Join(opts.RootDir, filepath.FromSlash(svc.Approot)),
		runner:   toolexec.ExecRunner{},
	}
}

func (d *NodeDeployment) Install(ctx context.Context) error {
	manager := d.detectManager()
	logger.Info(ctx, "installing dependencies", "manager", manager)
	return d.runner.Run(ctx, toolexec.Command{Name: manager, Args: []string{"install"}, Dir: d.execPath, Env: d.buildEnv()})
}

func (d *NodeDeployment) Start(ctx context.Context) error {
	cmd, err := d.command()
	if err != nil {
		return err
	}
	proc, err := toolexec.Start(ctx, cmd)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.proc = proc
	d.mu.Unlock()
	logger.Info(ctx, "process started", "pid", proc.Pid(), "port", d.opts.Port)
	return nil
}

func (d *NodeDeployment) Wait() error {
	d.mu.Lock()
	proc := d.proc
	d.mu.Unlock()
	if proc == nil {
		return ErrNotStarted
	}
	return proc.Wait()
}

// command parses the service's process line, defaulting to "<manager> start".
func (d *NodeDeployment) command() (toolexec.Command, error) {
	words := []string{d.detectManager(), "start"}
	if d.svc.Process != "" {
		parsed, err := toolexec.Parse(d.svc.Process)
		if err != nil {
			return toolexec.Command{}, err
		}
		words = parsed
	}
	cmd, err := toolexec.Split(words, d.execPath)
	if err != nil {
		return toolexec.Command{}, err
	}
	cmd.Env = d.buildEnv()
	return cmd, nil
}

func (d *NodeDeployment) buildEnv() []string {
	var env []string
	if d.opts.BinDir != "" {
		env = append(env, fmt.Sprintf("PATH=%s%c%s", d.opts.BinDir, os.PathListSeparator, os.Getenv("PATH")))
	}
	if d.opts.Port > 0 {
		env = append(env, "PORT="+strconv.Itoa(d.opts.Port))
	}
	return append(env, d.opts.Env...)
}

func (d *NodeDeployment) detectManager() string {
	checks := []struct{ file, name string }{
		{"pnpm-lock.yaml", "pnpm"},
		{"yarn.lock", "yarn"},
		{"package-lock.json", "npm"},
	}
	for _, m := range checks {
		if _, err := os.Stat(filepath.Join(d.execPath, m.file)); err == nil {
			return m.name
		}
	}
	return "npm"
}
