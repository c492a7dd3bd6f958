package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vinr.eu/launchpad/internal/config"
	"vinr.eu/launchpad/internal/credentials"
	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/defs/v1"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/jsonstore"
	"vinr.eu/launchpad/internal/overlay"
	"vinr.eu/launchpad/internal/provision"
	"vinr.eu/launchpad/internal/publish"
	"vinr.eu/launchpad/internal/scaffold"
	"vinr.eu/launchpad/internal/source"
	"vinr.eu/launchpad/internal/toolexec"
	"vinr.eu/launchpad/internal/workspace"
)

type countingExporter struct {
	calls int
	inner source.Exporter
}

func (e *countingExporter) Export(ctx context.Context, programDir, dest string, opts source.Options) error {
	e.calls++
	if e.inner == nil {
		return nil
	}
	return e.inner.Export(ctx, programDir, dest, opts)
}

type recordingRunner struct {
	mu    sync.Mutex
	calls []toolexec.Command
}

func (r *recordingRunner) Run(_ context.Context, cmd toolexec.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)
	return nil
}

func newTestContext(t *testing.T, prog *v1.Program, exp source.Exporter, runner toolexec.Runner) *Context {
	t.Helper()
	program := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(program, "server.js"), []byte("require('http')\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(program, "package.json"), []byte(`{"name": "acme"}`), 0o644))
	paths := workspace.Paths{ProgramDir: program, DistDir: filepath.Join(program, "dist"), BaseDir: program}

	tmpl, err := scaffold.Template(scaffold.Default())
	require.NoError(t, err)
	return &Context{
		Paths:     paths,
		Program:   prog,
		Resolver:  &defs.Resolver{ProgramDir: program, Template: tmpl},
		Exporter:  exp,
		Merger:    overlay.New(scaffold.Default()),
		Namespace: credentials.DefaultNamespace,
		Fetch: func(context.Context) (any, error) {
			return map[string]any{"token": "abc"}, nil
		},
		Gate:      &provision.Gate{RecordPath: paths.RecordPath(), Dir: paths.OutputDir(), Command: provision.DefaultCommand, Runner: runner},
		Publisher: &publish.Publisher{Command: publish.DefaultCommand, Runner: runner},
	}
}

func TestUnsupportedTypeFailsBeforeAnyWrite(t *testing.T) {
	prog := &v1.Program{Name: "acme", Services: v1.Services{
		{Name: "web", Service: v1.Service{Type: "python", Approot: "."}},
	}}
	exp := &countingExporter{}
	runner := &recordingRunner{}
	pc := newTestContext(t, prog, exp, runner)

	_, err := Run(context.Background(), pc, DeployStages())
	require.Error(t, err)
	assert.ErrorIs(t, err, defs.ErrUnsupportedType)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "resolve: ")
	assert.Contains(t, err.Error(), "python")

	assert.Zero(t, exp.calls)
	assert.Empty(t, runner.calls)
	_, statErr := os.Stat(pc.Paths.DistDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeployEndToEnd(t *testing.T) {
	prog := &v1.Program{
		Name:    "acme",
		Options: v1.Options{RuntimeDependencies: map[string]string{"launchpad-runtime": "0.1.x"}},
		Config:  map[string]any{"region": "eu"},
	}
	runner := &recordingRunner{}
	pc := newTestContext(t, prog, &countingExporter{inner: source.DirExporter{}}, runner)

	st, err := Run(context.Background(), pc, DeployStages())
	require.NoError(t, err)

	out := pc.Paths.OutputDir()
	assert.Equal(t, out, st.Output)
	require.Len(t, st.Config, 1)
	assert.Equal(t, "www", st.Config[0].Name)

	require.Len(t, runner.calls, 2)
	provisionCmd := runner.calls[0]
	assert.Equal(t, "dotcloud", provisionCmd.Name)
	assert.Equal(t, out, provisionCmd.Dir)
	assert.Equal(t, []string{"sandbox", "acme"}, provisionCmd.Args[len(provisionCmd.Args)-2:])
	assert.Equal(t, toolexec.Command{Name: "dotcloud", Args: []string{"push"}, Dir: out}, runner.calls[1])

	desc, err := jsonstore.Open(pc.Paths.DescriptorPath()).Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"github.com": map[string]any{"api": map[string]any{"token": "abc"}}}, desc["credentials"])
	assert.Equal(t, "eu", desc["config"].(map[string]any)["region"])

	pkg, err := jsonstore.Open(filepath.Join(out, scaffold.PackageFile)).Load()
	require.NoError(t, err)
	assert.Equal(t, "acme", pkg["name"])
	assert.Equal(t, "0.1.x", pkg["dependencies"].(map[string]any)["launchpad-runtime"])

	for _, name := range []string{scaffold.DescriptorFile, scaffold.BuildControlFile, "server.js"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
	target, err := os.Readlink(pc.Paths.LinkPath())
	require.NoError(t, err)
	assert.False(t, filepath.IsAbs(target))
}

func TestDeployStopsOnNameMismatch(t *testing.T) {
	runner := &recordingRunner{}
	pc := newTestContext(t, &v1.Program{Name: "bar"}, &countingExporter{inner: source.DirExporter{}}, runner)
	require.NoError(t, os.MkdirAll(pc.Paths.SharedConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(pc.Paths.RecordPath(), []byte(`{"application": "foo"}`), 0o644))

	_, err := Run(context.Background(), pc, DeployStages())
	assert.ErrorIs(t, err, provision.ErrNameMismatch)
	assert.Contains(t, err.Error(), "provision: ")
	assert.Empty(t, runner.calls)
}

func TestRunWrapsStageErrorsAndStops(t *testing.T) {
	boom := errs.WrapMsg(errs.ErrIO, "disk full")
	var ran []string
	stage := func(name string, err error) Stage {
		return Stage{Name: name, Run: func(_ context.Context, _ *Context, st State) (State, error) {
			ran = append(ran, name)
			return st, err
		}}
	}

	_, err := Run(context.Background(), &Context{}, []Stage{stage("a", nil), stage("b", boom), stage("c", nil)})
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.ErrorIs(t, err, errs.ErrIO)
	assert.Equal(t, "b: io error: disk full", err.Error())
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, &Context{}, []Stage{{Name: "a", Run: func(context.Context, *Context, State) (State, error) {
		return State{}, errors.New("must not run")
	}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeclaredNameDefault(t *testing.T) {
	assert.Equal(t, "test", DeclaredName(context.Background(), &v1.Program{}))
	assert.Equal(t, "acme", DeclaredName(context.Background(), &v1.Program{Name: "acme"}))
}

func TestNewContextFromConfig(t *testing.T) {
	program := t.TempDir()
	v := config.New()
	v.Set(config.KeyProgram, program)
	v.Set(config.KeyExporter, source.ExporterDir)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	prog, err := LoadProgram(program)
	require.NoError(t, err)
	pc, err := NewContext(cfg, prog, &recordingRunner{})
	require.NoError(t, err)

	assert.IsType(t, source.DirExporter{}, pc.Exporter)
	assert.Equal(t, filepath.Join(program, ".dotcloud", "config"), pc.Gate.RecordPath)
	assert.Equal(t, filepath.Join(program, "dist", "dotcloud"), pc.Gate.Dir)
	assert.Equal(t, []string{"dotcloud", "push"}, pc.Publisher.Command)
	assert.NotNil(t, pc.Fetch)
}
