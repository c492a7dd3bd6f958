// Package source exports a clean snapshot of a program tree.
package source

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/workspace"
)

var (
	ErrUnsupportedExporter = errs.Kind(errs.ErrValidation, "source: unsupported exporter")
	ErrExportFailed        = errs.Kind(errs.ErrIO, "source: export failed")
	ErrCopyFailed          = errs.Kind(errs.ErrIO, "source: copy failed")
)

const (
	ExporterGit = "git"
	ExporterDir = "dir"

	DependencyDir = "node_modules"
)

type Options struct {
	// IncludeDependencies copies the working-tree node_modules as well.
	IncludeDependencies bool
	// Exclude lists absolute paths never exported, such as the dist directory.
	Exclude []string
}

type Exporter interface {
	Export(ctx context.Context, programDir, dest string, opts Options) error
}

func New(kind string) (Exporter, error) {
	switch kind {
	case ExporterGit, "":
		return GitExporter{}, nil
	case ExporterDir:
		return DirExporter{}, nil
	default:
		return nil, errs.WrapMsg(ErrUnsupportedExporter, kind)
	}
}

// Snapshot exports the program into <dist>/source and copies that tree to
// <dist>/dotcloud, replacing any previous output.
func Snapshot(ctx context.Context, exp Exporter, p workspace.Paths, opts Options) error {
	src, out := p.SourceDir(), p.OutputDir()
	opts.Exclude = append(opts.Exclude, p.DistDir)
	for _, dir := range []string{out, src} {
		if err := os.RemoveAll(dir); err != nil {
			return errs.WrapMsgErr(ErrExportFailed, dir, err)
		}
	}
	if err := os.MkdirAll(src, 0o755); err != nil {
		return errs.WrapMsgErr(ErrExportFailed, src, err)
	}
	logger.Info(ctx, "exporting program", "program", p.ProgramDir, "destination", src)
	if err := exp.Export(ctx, p.ProgramDir, src, opts); err != nil {
		return err
	}
	return CopyTree(src, out)
}

// CopyTree copies src to dst preserving file modes and symlinks.
func CopyTree(src, dst string) error {
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			return writeFile(target, f, info.Mode().Perm())
		}
		return nil
	})
	if err != nil {
		return errs.WrapMsgErr(ErrCopyFailed, src, err)
	}
	return nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	_, err = io.Copy(f, r)
	return err
}

func excluded(path string, exclude []string) bool {
	for _, e := range exclude {
		if path == e {
			return true
		}
	}
	return false
}
