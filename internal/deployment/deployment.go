package deployment

import (
	"context"

	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/errs"
)

var (
	ErrUnsupportedType = errs.Kind(errs.ErrValidation, "deployment: unsupported service type")
	ErrNotStarted      = errs.Kind(errs.ErrValidation, "deployment: process not started")
)

// Deployment controls one locally running service. Cancelling the context
// given to Start interrupts the process; Wait then returns.
type Deployment interface {
	Install(ctx context.Context) error
	Start(ctx context.Context) error
	Wait() error
}

type Options struct {
	// RootDir is the program root that approots are relative to.
	RootDir string
	// BinDir is prepended to PATH when set.
	BinDir string
	Port   int
	Env    []string
}

func New(svc defs.ServiceDescriptor, opts Options) (Deployment, error) {
	switch svc.Type {
	case defs.TypeNodeJS:
		return NewNodeDeployment(svc, opts), nil
	default:
		return nil, errs.WrapMsg(ErrUnsupportedType, svc.RawType)
	}
}
