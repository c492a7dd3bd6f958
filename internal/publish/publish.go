package publish

import (
	"context"

	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/toolexec"
)

var (
	ErrNoCommand = errs.Kind(errs.ErrValidation, "publish: no push command configured")
)

var DefaultCommand = []string{"dotcloud", "push"}

type Publisher struct {
	Command []string
	Runner  toolexec.Runner
}

// Publish pushes the tree rooted at dir to the hosting platform.
func (p *Publisher) Publish(ctx context.Context, dir string) error {
	if len(p.Command) == 0 {
		return ErrNoCommand
	}
	cmd, err := toolexec.Split(p.Command, dir)
	if err != nil {
		return err
	}
	runner := p.Runner
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	logger.Info(ctx, "publishing", "dir", dir, "command", cmd.String())
	if err := runner.Run(ctx, cmd); err != nil {
		return err
	}
	logger.Info(ctx, "published", "dir", dir)
	return nil
}
