package pipeline

import (
	"context"
	"path/filepath"

	"vinr.eu/launchpad/internal/credentials"
	"vinr.eu/launchpad/internal/jsonstore"
	"vinr.eu/launchpad/internal/overlay"
	"vinr.eu/launchpad/internal/scaffold"
	"vinr.eu/launchpad/internal/source"
	"vinr.eu/launchpad/internal/workspace"
)

const (
	StageResolve     = "resolve"
	StageExport      = "export"
	StageOverlay     = "overlay"
	StageCredentials = "credentials"
	StageLink        = "link"
	StageProvision   = "provision"
	StagePublish     = "publish"
)

// DeployStages resolves before exporting so an invalid descriptor fails
// before anything is written.
func DeployStages() []Stage {
	return []Stage{
		{Name: StageResolve, Run: resolve},
		{Name: StageExport, Run: export},
		{Name: StageOverlay, Run: applyOverlay},
		{Name: StageCredentials, Run: injectCredentials},
		{Name: StageLink, Run: link},
		{Name: StageProvision, Run: ensureProvisioned},
		{Name: StagePublish, Run: publishOutput},
	}
}

func resolve(_ context.Context, pc *Context, st State) (State, error) {
	cfg, err := pc.Resolver.Resolve(pc.Program.Services)
	if err != nil {
		return st, err
	}
	st.Config = cfg
	return st, nil
}

func export(ctx context.Context, pc *Context, st State) (State, error) {
	if err := source.Snapshot(ctx, pc.Exporter, pc.Paths, pc.ExportOptions); err != nil {
		return st, err
	}
	st.Output = pc.Paths.OutputDir()
	return st, nil
}

func applyOverlay(ctx context.Context, pc *Context, st State) (State, error) {
	if err := pc.Merger.Apply(ctx, st.Output, st.Config); err != nil {
		return st, err
	}
	if err := overlay.EnsureDependencies(ctx, st.Output, pc.Program.Options.RuntimeDependencies); err != nil {
		return st, err
	}
	if len(pc.Program.Config) == 0 {
		return st, nil
	}
	store := jsonstore.Open(filepath.Join(st.Output, scaffold.ProgramFile))
	current, _, err := store.Get([]string{"config"})
	if err != nil {
		return st, err
	}
	base, _ := current.(map[string]any)
	if base == nil {
		base = map[string]any{}
	}
	return st, store.Set([]string{"config"}, overlay.DeepMerge(base, pc.Program.Config))
}

func injectCredentials(ctx context.Context, pc *Context, st State) (State, error) {
	store := jsonstore.Open(filepath.Join(st.Output, scaffold.ProgramFile))
	return st, credentials.Ensure(ctx, store, pc.Namespace, pc.Fetch)
}

func link(ctx context.Context, pc *Context, st State) (State, error) {
	return st, workspace.Link(ctx, pc.Paths)
}

func ensureProvisioned(ctx context.Context, pc *Context, st State) (State, error) {
	return st, pc.Gate.Ensure(ctx, DeclaredName(ctx, pc.Program), pc.Program.Flavor)
}

func publishOutput(ctx context.Context, pc *Context, st State) (State, error) {
	return st, pc.Publisher.Publish(ctx, st.Output)
}
