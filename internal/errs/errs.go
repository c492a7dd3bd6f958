package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Every sentinel declared by a package wraps exactly one of
// these, so callers can branch on the kind with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrIO              = errors.New("io error")
	ErrExternalTool    = errors.New("external tool error")
	ErrCredentialFetch = errors.New("credential fetch error")
)

// Kind declares a package sentinel belonging to kind.
func Kind(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

func Wrap(sentinel, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func WrapMsg(sentinel error, msg string) error {
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func WrapMsgErr(sentinel error, msg string, err error) error {
	if err == nil {
		return WrapMsg(sentinel, msg)
	}
	return fmt.Errorf("%w: %s: %v", sentinel, msg, err)
}
