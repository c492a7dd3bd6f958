// Package pipeline sequences the deploy stages. Each stage consumes the state
// left by the previous one; the first error aborts the run. Nothing is
// retried and nothing already written is rolled back.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"vinr.eu/launchpad/internal/credentials"
	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/defs/v1"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/overlay"
	"vinr.eu/launchpad/internal/provision"
	"vinr.eu/launchpad/internal/publish"
	"vinr.eu/launchpad/internal/source"
	"vinr.eu/launchpad/internal/workspace"
)

// Context holds everything a run needs. It is built once and only read by
// the stages.
type Context struct {
	Paths   workspace.Paths
	Program *v1.Program

	Resolver      *defs.Resolver
	Exporter      source.Exporter
	ExportOptions source.Options
	Merger        *overlay.Merger
	Namespace     []string
	Fetch         credentials.FetchFunc
	Gate          *provision.Gate
	Publisher     *publish.Publisher
}

// State is threaded from stage to stage.
type State struct {
	Config defs.DeploymentConfig
	Output string
}

type Stage struct {
	Name string
	Run  func(ctx context.Context, pc *Context, st State) (State, error)
}

// Run executes stages in order and returns the final state.
func Run(ctx context.Context, pc *Context, stages []Stage) (State, error) {
	var st State
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("%s: %w", stage.Name, err)
		}
		start := time.Now()
		logger.Info(ctx, "stage started", "stage", stage.Name)
		next, err := stage.Run(ctx, pc, st)
		if err != nil {
			logger.Error(ctx, "stage failed", "stage", stage.Name, "error", err)
			return st, fmt.Errorf("%s: %w", stage.Name, err)
		}
		st = next
		logger.Debug(ctx, "stage finished", "stage", stage.Name, "elapsed", time.Since(start))
	}
	return st, nil
}

// DeclaredName is the application name the program declares, or "test".
func DeclaredName(ctx context.Context, prog *v1.Program) string {
	if prog != nil && prog.Name != "" {
		return prog.Name
	}
	logger.Warn(ctx, "program declares no name, using default", "name", provision.DefaultName)
	return provision.DefaultName
}
