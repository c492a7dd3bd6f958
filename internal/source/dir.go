package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
)

const ignoreFile = ".gitignore"

// DirExporter copies the working tree, honouring the program's .gitignore.
type DirExporter struct{}

func (DirExporter) Export(ctx context.Context, programDir, dest string, opts Options) error {
	programDir, err := filepath.Abs(programDir)
	if err != nil {
		return errs.WrapMsgErr(ErrExportFailed, programDir, err)
	}
	ignore, err := loadIgnore(programDir)
	if err != nil {
		return err
	}

	count := 0
	err = filepath.WalkDir(programDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == programDir {
			return nil
		}
		if skip(p, d, programDir, ignore, opts) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(programDir, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
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
			count++
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			count++
			return writeFile(target, f, info.Mode().Perm())
		}
		return nil
	})
	if err != nil {
		return errs.WrapMsgErr(ErrExportFailed, programDir, err)
	}
	logger.Info(ctx, "exported working tree", "files", count)
	return nil
}

func skip(p string, d fs.DirEntry, programDir string, ignore gitignore.IgnoreMatcher, opts Options) bool {
	name := d.Name()
	if name == ".git" || excluded(p, opts.Exclude) {
		return true
	}
	deps := filepath.Join(programDir, DependencyDir)
	if p == deps || strings.HasPrefix(p, deps+string(filepath.Separator)) {
		return !opts.IncludeDependencies
	}
	return ignore != nil && ignore.Match(p, d.IsDir())
}

func loadIgnore(programDir string) (gitignore.IgnoreMatcher, error) {
	path := filepath.Join(programDir, ignoreFile)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsgErr(ErrExportFailed, path, err)
	}
	defer f.Close()
	return gitignore.NewGitIgnoreFromReader(programDir, f), nil
}
