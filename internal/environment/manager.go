package environment

import (
	"context"

	"golang.org/x/sync/errgroup"
	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/deployment"
	"vinr.eu/launchpad/internal/devproxy"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/toolchain"
)

var (
	ErrNoServices = errs.Kind(errs.ErrValidation, "environment: no runnable services")
)

const DefaultBasePort = 3000

type ToolchainFactory func(t defs.ServiceType, cacheDir string) (toolchain.Toolchain, error)

type DeploymentFactory func(svc defs.ServiceDescriptor, opts deployment.Options) (deployment.Deployment, error)

// Manager runs every service of a program locally.
type Manager struct {
	rootDir   string
	cacheDir  string
	basePort  int
	proxyAddr string
	install   bool

	newToolchain  ToolchainFactory
	newDeployment DeploymentFactory
}

type Option func(*Manager)

func WithBasePort(port int) Option {
	return func(m *Manager) { m.basePort = port }
}

// WithProxy serves the dev proxy on addr while services run.
func WithProxy(addr string) Option {
	return func(m *Manager) { m.proxyAddr = addr }
}

func WithoutInstall() Option {
	return func(m *Manager) { m.install = false }
}

func WithToolchainFactory(f ToolchainFactory) Option {
	return func(m *Manager) { m.newToolchain = f }
}

func WithDeploymentFactory(f DeploymentFactory) Option {
	return func(m *Manager) { m.newDeployment = f }
}

func NewManager(rootDir, cacheDir string, opts ...Option) *Manager {
	m := &Manager{
		rootDir:       rootDir,
		cacheDir:      cacheDir,
		basePort:      DefaultBasePort,
		install:       true,
		newToolchain:  toolchain.New,
		newDeployment: deployment.New,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ports assigns consecutive ports from the base port in service order.
func (m *Manager) Ports(cfg defs.DeploymentConfig) map[string]int {
	ports := make(map[string]int, len(cfg))
	for i, svc := range cfg {
		ports[svc.Name] = m.basePort + i
	}
	return ports
}

// Run launches every service and blocks until all exit or one fails; the
// first failure cancels the others.
func (m *Manager) Run(ctx context.Context, cfg defs.DeploymentConfig) error {
	if len(cfg) == 0 {
		return ErrNoServices
	}
	ports := m.Ports(cfg)
	g, gctx := errgroup.WithContext(ctx)
	services, sctx := errgroup.WithContext(gctx)
	for _, svc := range cfg {
		services.Go(func() error {
			ctx := logger.WithService(sctx, svc.Name)
			if err := m.launch(ctx, svc, ports[svc.Name]); err != nil {
				logger.Error(ctx, "service failed", "error", err)
				return err
			}
			return nil
		})
	}

	if m.proxyAddr == "" {
		g.Go(services.Wait)
		return g.Wait()
	}
	routes := make([]devproxy.Route, 0, len(cfg))
	for _, svc := range cfg {
		routes = append(routes, devproxy.Route{Service: svc.Name, Port: ports[svc.Name]})
	}
	proxyCtx, stopProxy := context.WithCancel(gctx)
	defer stopProxy()
	g.Go(func() error { return devproxy.New(routes).Serve(proxyCtx, m.proxyAddr) })
	g.Go(func() error {
		defer stopProxy()
		return services.Wait()
	})
	return g.Wait()
}

func (m *Manager) launch(ctx context.Context, svc defs.ServiceDescriptor, port int) error {
	opts := deployment.Options{RootDir: m.rootDir, Port: port}
	if version, ok := svc.Config["node_version"].(string); ok {
		if _, exact := toolchain.ExactVersion(version); exact {
			tc, err := m.newToolchain(svc.Type, m.cacheDir)
			if err != nil {
				return err
			}
			binDir, err := tc.Provision(ctx, version)
			if err != nil {
				return err
			}
			opts.BinDir = binDir
		} else {
			logger.Debug(ctx, "node version is a range, using host toolchain", "node_version", version)
		}
	}

	d, err := m.newDeployment(svc, opts)
	if err != nil {
		return err
	}
	if m.install {
		if err := d.Install(ctx); err != nil {
			return err
		}
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	return d.Wait()
}
