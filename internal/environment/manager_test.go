package environment

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/deployment"
	"vinr.eu/launchpad/internal/toolchain"
)

type fakeDeployment struct {
	ctx     context.Context
	name    string
	failure error
	block   bool
	events  *events
}

type events struct {
	mu   sync.Mutex
	log  []string
	opts map[string]deployment.Options
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (d *fakeDeployment) Install(context.Context) error {
	d.events.add("install " + d.name)
	return nil
}

func (d *fakeDeployment) Start(ctx context.Context) error {
	d.ctx = ctx
	d.events.add("start " + d.name)
	return nil
}

func (d *fakeDeployment) Wait() error {
	if d.block {
		<-d.ctx.Done()
		return d.ctx.Err()
	}
	return d.failure
}

type fakeToolchain struct{ versions []string }

func (f *fakeToolchain) Provision(_ context.Context, version string) (string, error) {
	f.versions = append(f.versions, version)
	return "/cache/node/" + version + "/bin", nil
}

func factory(ev *events, failing map[string]error, blocking bool) DeploymentFactory {
	return func(svc defs.ServiceDescriptor, opts deployment.Options) (deployment.Deployment, error) {
		ev.mu.Lock()
		ev.opts[svc.Name] = opts
		ev.mu.Unlock()
		return &fakeDeployment{name: svc.Name, failure: failing[svc.Name], block: blocking && failing[svc.Name] == nil, events: ev}, nil
	}
}

func testConfig() defs.DeploymentConfig {
	return defs.DeploymentConfig{
		{Name: "www", Type: defs.TypeNodeJS, Approot: ".", Config: map[string]any{"node_version": "v0.8.x"}},
		{Name: "api", Type: defs.TypeNodeJS, Approot: "api", Config: map[string]any{"node_version": "v18.20.4"}},
	}
}

func TestRunLaunchesEveryService(t *testing.T) {
	ev := &events{opts: map[string]deployment.Options{}}
	tc := &fakeToolchain{}
	m := NewManager("/srv/app", "/cache",
		WithBasePort(4000),
		WithDeploymentFactory(factory(ev, nil, false)),
		WithToolchainFactory(func(defs.ServiceType, string) (toolchain.Toolchain, error) { return tc, nil }),
	)

	require.NoError(t, m.Run(context.Background(), testConfig()))

	assert.ElementsMatch(t, []string{"install www", "start www", "install api", "start api"}, ev.log)
	assert.Equal(t, deployment.Options{RootDir: "/srv/app", Port: 4000}, ev.opts["www"])
	assert.Equal(t, deployment.Options{RootDir: "/srv/app", Port: 4001, BinDir: "/cache/node/v18.20.4/bin"}, ev.opts["api"])
	assert.Equal(t, []string{"v18.20.4"}, tc.versions)
}

func TestRunFirstFailureCancelsOthers(t *testing.T) {
	ev := &events{opts: map[string]deployment.Options{}}
	boom := errors.New("crashed")
	m := NewManager("/srv/app", "/cache",
		WithoutInstall(),
		WithDeploymentFactory(factory(ev, map[string]error{"api": boom}, true)),
		WithToolchainFactory(func(defs.ServiceType, string) (toolchain.Toolchain, error) { return &fakeToolchain{}, nil }),
	)

	err := m.Run(context.Background(), testConfig())
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, ev.log, "install www")
}

func TestRunWithProxy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ev := &events{opts: map[string]deployment.Options{}}
	m := NewManager("/srv/app", "/cache",
		WithProxy(addr),
		WithDeploymentFactory(factory(ev, nil, false)),
		WithToolchainFactory(func(defs.ServiceType, string) (toolchain.Toolchain, error) { return &fakeToolchain{}, nil }),
	)
	assert.NoError(t, m.Run(context.Background(), testConfig()))
}

func TestRunWithoutServices(t *testing.T) {
	assert.ErrorIs(t, NewManager("/", "/").Run(context.Background(), nil), ErrNoServices)
}

func TestPorts(t *testing.T) {
	m := NewManager("/", "/")
	assert.Equal(t, map[string]int{"www": 3000, "api": 3001}, m.Ports(testConfig()))
}
