// Package overlay merges the platform scaffold onto an exported program tree.
//
// Every leaf file of the scaffold is applied with one of five rules: the
// deployment descriptor is regenerated from the resolved configuration, the
// build-control file is rewritten with host environment substitutions, absent
// files are copied, existing JSON files are deep-merged with the scaffold
// winning, and any other existing file is left alone. Re-applying the same
// scaffold to the same tree produces identical bytes.
package overlay

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/jsonstore"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/scaffold"
)

const (
	DependencyDir         = "node_modules"
	ReservedDependencyDir = "_node_modules"
)

type Merger struct {
	Scaffold      fs.FS
	LookupEnv     func(key string) (string, bool)
	Substitutions []Substitution
}

func New(scaffoldFS fs.FS) *Merger {
	return &Merger{
		Scaffold:      scaffoldFS,
		LookupEnv:     os.LookupEnv,
		Substitutions: DefaultSubstitutions,
	}
}

func (m *Merger) lookupEnv(key string) (string, bool) {
	if m.LookupEnv == nil {
		return os.LookupEnv(key)
	}
	return m.LookupEnv(key)
}

func (m *Merger) substitutions() []Substitution {
	if m.Substitutions == nil {
		return DefaultSubstitutions
	}
	return m.Substitutions
}

// Apply overlays the scaffold onto dest, then each service's application
// template onto its approot.
func (m *Merger) Apply(ctx context.Context, dest string, cfg defs.DeploymentConfig) error {
	logger.Info(ctx, "overlaying scaffold", "destination", dest, "services", len(cfg))
	if err := m.overlayTree(ctx, ".", dest, cfg, true); err != nil {
		return err
	}
	if len(cfg) == 0 {
		return nil
	}

	// Shared ancestors are created here, once, before the fan-out.
	for _, svc := range cfg {
		dir := filepath.Join(dest, filepath.FromSlash(svc.Approot))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.WrapMsgErr(ErrWriteFailed, dir, err)
		}
	}

	limit := len(cfg)
	if !disjoint(cfg) {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, svc := range cfg {
		g.Go(func() error {
			return m.applyService(logger.WithService(gctx, svc.Name), dest, svc)
		})
	}
	return g.Wait()
}

func (m *Merger) applyService(ctx context.Context, dest string, svc defs.ServiceDescriptor) error {
	root := filepath.Join(dest, filepath.FromSlash(svc.Approot))
	tmpl := scaffold.AppTemplate(svc.RawType)
	if _, err := fs.Stat(m.Scaffold, tmpl); errors.Is(err, fs.ErrNotExist) {
		logger.Debug(ctx, "no application template", "template", tmpl)
	} else if err := m.overlayTree(ctx, tmpl, root, nil, false); err != nil {
		return err
	}

	if svc.Depth() > 0 {
		extends := strings.Repeat("../", svc.Depth()) + scaffold.ProgramFile
		store := jsonstore.Open(filepath.Join(root, scaffold.ProgramFile))
		if err := store.Set([]string{"extends"}, []any{extends}); err != nil {
			return err
		}
	}

	return renameDependencies(ctx, root)
}

// renameDependencies moves an exported node_modules out of the way so the
// platform's own install does not replace it.
func renameDependencies(ctx context.Context, root string) error {
	from := filepath.Join(root, DependencyDir)
	info, err := os.Lstat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errs.WrapMsgErr(ErrRenameFailed, from, err)
	}
	if !info.IsDir() {
		return nil
	}
	to := filepath.Join(root, ReservedDependencyDir)
	if err := os.RemoveAll(to); err != nil {
		return errs.WrapMsgErr(ErrRenameFailed, to, err)
	}
	if err := os.Rename(from, to); err != nil {
		return errs.WrapMsgErr(ErrRenameFailed, from, err)
	}
	logger.Info(ctx, "renamed embedded dependencies", "from", from, "to", to)
	return nil
}

// disjoint reports whether no approot contains another.
func disjoint(cfg defs.DeploymentConfig) bool {
	for i := range cfg {
		for j := i + 1; j < len(cfg); j++ {
			if nested(cfg[i].Approot, cfg[j].Approot) || nested(cfg[j].Approot, cfg[i].Approot) {
				return false
			}
		}
	}
	return true
}

func nested(parent, child string) bool {
	return parent == "." || parent == child || strings.HasPrefix(child, parent+"/")
}

// EnsureDependencies declares each runtime dependency in dest/package.json
// unless the program already declares it.
func EnsureDependencies(ctx context.Context, dest string, deps map[string]string) error {
	if len(deps) == 0 {
		return nil
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	store := jsonstore.Open(filepath.Join(dest, scaffold.PackageFile))
	for _, name := range names {
		ns := []string{"dependencies", name}
		ok, err := store.Has(ns)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := store.Set(ns, deps[name]); err != nil {
			return err
		}
		logger.Info(ctx, "added runtime dependency", "name", name, "version", deps[name])
	}
	return nil
}
