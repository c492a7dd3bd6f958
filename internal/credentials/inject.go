package credentials

import (
	"context"
	"strings"

	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
)

var (
	ErrFetchFailed = errs.Kind(errs.ErrCredentialFetch, "credentials: fetch failed")
)

// DefaultNamespace is where the platform API token lives in the output descriptor.
var DefaultNamespace = []string{"credentials", "github.com", "api"}

// Descriptor is a path-addressed JSON document.
type Descriptor interface {
	Has(keyPath []string) (bool, error)
	Set(keyPath []string, value any) error
}

// FetchFunc obtains a credential value. It is called at most once per Ensure.
type FetchFunc func(ctx context.Context) (any, error)

// Ensure stores the fetched credential under namespace unless a value is
// already present there.
func Ensure(ctx context.Context, d Descriptor, namespace []string, fetch FetchFunc) error {
	ns := strings.Join(namespace, ".")
	ok, err := d.Has(namespace)
	if err != nil {
		return err
	}
	if ok {
		logger.Debug(ctx, "credential already present", "namespace", ns)
		return nil
	}
	logger.Info(ctx, "fetching credential", "namespace", ns)
	value, err := fetch(ctx)
	if err != nil {
		return errs.WrapMsgErr(ErrFetchFailed, ns, err)
	}
	return d.Set(namespace, value)
}
