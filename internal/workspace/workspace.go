package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/scaffold"
)

var (
	ErrLinkFailed = errs.Kind(errs.ErrIO, "workspace: cannot link shared configuration")
)

const (
	SourceDirName = "source"
	OutputDirName = "dotcloud"
	SharedDirName = ".dotcloud"
	RecordName    = "config"
)

// Paths is the directory layout of one deployment.
type Paths struct {
	ProgramDir string
	DistDir    string
	BaseDir    string
}

func (p Paths) SourceDir() string {
	return filepath.Join(p.DistDir, SourceDirName)
}

func (p Paths) OutputDir() string {
	return filepath.Join(p.DistDir, OutputDirName)
}

func (p Paths) SharedConfigDir() string {
	return filepath.Join(p.BaseDir, SharedDirName)
}

func (p Paths) RecordPath() string {
	return filepath.Join(p.SharedConfigDir(), RecordName)
}

func (p Paths) DescriptorPath() string {
	return filepath.Join(p.OutputDir(), scaffold.ProgramFile)
}

func (p Paths) LinkPath() string {
	return filepath.Join(p.OutputDir(), SharedDirName)
}

// Link points <output>/.dotcloud at the shared configuration directory so
// the platform tooling finds the provisioning record from the output tree.
func Link(ctx context.Context, p Paths) error {
	shared := p.SharedConfigDir()
	if err := os.MkdirAll(shared, 0o755); err != nil {
		return errs.WrapMsgErr(ErrLinkFailed, shared, err)
	}
	link := p.LinkPath()
	target, err := filepath.Rel(filepath.Dir(link), shared)
	if err != nil {
		target = shared
	}

	if current, err := os.Readlink(link); err == nil && current == target {
		return nil
	}
	if err := os.RemoveAll(link); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.WrapMsgErr(ErrLinkFailed, link, err)
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return errs.WrapMsgErr(ErrLinkFailed, link, err)
	}
	if err := os.Symlink(target, link); err != nil {
		return errs.WrapMsgErr(ErrLinkFailed, link, err)
	}
	logger.Info(ctx, "linked shared configuration", "link", link, "target", target)
	return nil
}
