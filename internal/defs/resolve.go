package defs

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"vinr.eu/launchpad/internal/defs/v1"
	"vinr.eu/launchpad/internal/errs"
)

var (
	ErrApprootMissing  = errs.Kind(errs.ErrValidation, "defs: `approot` must be set")
	ErrApprootOutside  = errs.Kind(errs.ErrValidation, "defs: `approot` must be within the program")
	ErrUnsupportedType = errs.Kind(errs.ErrValidation, "defs: service type not yet supported")
)

// Resolver turns a raw services map into a DeploymentConfig.
type Resolver struct {
	// ProgramDir is the absolute program root approots are normalized against.
	ProgramDir string
	// Template is the built-in descriptor used when no services are declared.
	Template []byte
}

func (r *Resolver) Resolve(services v1.Services) (DeploymentConfig, error) {
	if len(services) == 0 {
		return r.defaults()
	}
	cfg := make(DeploymentConfig, 0, len(services))
	for _, ns := range services {
		svc, err := r.resolveService(ns)
		if err != nil {
			return nil, err
		}
		cfg = append(cfg, svc)
	}
	return cfg, nil
}

func (r *Resolver) resolveService(ns v1.NamedService) (ServiceDescriptor, error) {
	raw, ok := ns.Service.Approot.(string)
	if !ok || raw == "" {
		return ServiceDescriptor{}, errs.WrapMsg(ErrApprootMissing, fmt.Sprintf("service '%s'", ns.Name))
	}
	approot, err := NormalizeApproot(r.ProgramDir, raw)
	if err != nil {
		return ServiceDescriptor{}, err
	}
	svc := mapServiceV1(ns.Name, ns.Service)
	svc.Approot = approot
	switch svc.Type {
	case TypeNodeJS:
		if svc.Config == nil {
			svc.Config = defaultConfig(svc.Type)
		}
	case TypeUnsupported:
		return ServiceDescriptor{}, errs.WrapMsg(ErrUnsupportedType, fmt.Sprintf("'%s' (service '%s')", svc.RawType, ns.Name))
	}
	return svc, nil
}

func (r *Resolver) defaults() (DeploymentConfig, error) {
	services, err := DecodeServices(r.Template)
	if err != nil {
		return nil, err
	}
	cfg := make(DeploymentConfig, 0, len(services))
	for _, ns := range services {
		cfg = append(cfg, mapServiceV1(ns.Name, ns.Service))
	}
	return cfg, nil
}

// NormalizeApproot returns p relative to programDir in slash form. Absolute
// paths must lie inside programDir and relative paths may not climb out of it.
func NormalizeApproot(programDir, p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(filepath.Clean(programDir), filepath.Clean(p))
		if err != nil || escapes(filepath.ToSlash(rel)) {
			return "", errs.WrapMsg(ErrApprootOutside, fmt.Sprintf("path '%s' is outside program '%s'", p, programDir))
		}
		p = rel
	}
	clean := path.Clean(filepath.ToSlash(p))
	if escapes(clean) {
		return "", errs.WrapMsg(ErrApprootOutside, fmt.Sprintf("path '%s' is outside program '%s'", p, programDir))
	}
	return clean, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel)
}
