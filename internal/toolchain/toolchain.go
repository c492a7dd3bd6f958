package toolchain

import (
	"context"
	"regexp"
	"strings"

	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/errs"
)

var (
	ErrUnsupportedType = errs.Kind(errs.ErrValidation, "toolchain: unsupported service type")
	ErrProvisionFailed = errs.Kind(errs.ErrIO, "toolchain: provision failed")
)

var exactVersion = regexp.MustCompile(`^v?(\d+\.\d+\.\d+)$`)

type Toolchain interface {
	// Provision installs version into the cache when missing and returns
	// the directory holding its executables.
	Provision(ctx context.Context, version string) (string, error)
}

func New(t defs.ServiceType, cacheDir string) (Toolchain, error) {
	switch t {
	case defs.TypeNodeJS:
		return NewNodeToolchain(cacheDir), nil
	default:
		return nil, errs.WrapMsg(ErrUnsupportedType, t.String())
	}
}

// ExactVersion reports the bare version for a pinned "vX.Y.Z" value. Ranges
// such as "v0.8.x" are not pinned and leave the host toolchain in use.
func ExactVersion(v string) (string, bool) {
	m := exactVersion.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return "", false
	}
	return m[1], true
}
