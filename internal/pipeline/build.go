package pipeline

import (
	"errors"

	"vinr.eu/launchpad/internal/config"
	"vinr.eu/launchpad/internal/credentials"
	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/defs/v1"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/overlay"
	"vinr.eu/launchpad/internal/provision"
	"vinr.eu/launchpad/internal/publish"
	"vinr.eu/launchpad/internal/scaffold"
	"vinr.eu/launchpad/internal/source"
	"vinr.eu/launchpad/internal/toolexec"
	"vinr.eu/launchpad/internal/workspace"
)

var (
	ErrScaffoldInvalid = errs.Kind(errs.ErrIO, "pipeline: scaffold has no deployment descriptor")
)

// LoadProgram reads the program descriptor, treating a missing one as an
// empty program.
func LoadProgram(dir string) (*v1.Program, error) {
	prog, err := defs.LoadProgram(dir)
	if errors.Is(err, defs.ErrNoProgram) {
		return &v1.Program{}, nil
	}
	return prog, err
}

// NewContext wires the deploy collaborators from configuration.
func NewContext(cfg *config.Config, prog *v1.Program, runner toolexec.Runner) (*Context, error) {
	paths := workspace.Paths{ProgramDir: cfg.ProgramDir, DistDir: cfg.DistDir, BaseDir: cfg.BaseDir}

	fsys := scaffold.Load(cfg.ScaffoldDir)
	tmpl, err := scaffold.Template(fsys)
	if err != nil {
		return nil, errs.WrapMsgErr(ErrScaffoldInvalid, cfg.ScaffoldDir, err)
	}
	exporter, err := source.New(cfg.Exporter)
	if err != nil {
		return nil, err
	}
	fetch, err := credentials.Select(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	return &Context{
		Paths:    paths,
		Program:  prog,
		Resolver: &defs.Resolver{ProgramDir: cfg.ProgramDir, Template: tmpl},
		Exporter: exporter,
		ExportOptions: source.Options{
			IncludeDependencies: cfg.IncludeDependencies || prog.Options.PushDependencies,
		},
		Merger:    overlay.New(fsys),
		Namespace: credentials.DefaultNamespace,
		Fetch:     fetch,
		Gate: &provision.Gate{
			RecordPath: paths.RecordPath(),
			Dir:        paths.OutputDir(),
			Command:    cfg.ProvisionCommand,
			Runner:     runner,
		},
		Publisher: &publish.Publisher{Command: cfg.PushCommand, Runner: runner},
	}, nil
}
