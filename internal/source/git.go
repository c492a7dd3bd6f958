package source

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
)

var (
	ErrRepoInvalid = errs.Kind(errs.ErrIO, "source: not inside a git repository")
	ErrNoHead      = errs.Kind(errs.ErrIO, "source: cannot resolve HEAD commit")
)

// GitExporter writes the files committed at HEAD that live under the program
// directory. Uncommitted changes are not exported.
type GitExporter struct{}

func (GitExporter) Export(ctx context.Context, programDir, dest string, opts Options) error {
	programDir, err := filepath.Abs(programDir)
	if err != nil {
		return errs.WrapMsgErr(ErrExportFailed, programDir, err)
	}
	repo, err := git.PlainOpenWithOptions(programDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return errs.WrapMsgErr(ErrRepoInvalid, programDir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errs.WrapMsgErr(ErrRepoInvalid, programDir, err)
	}
	prefix, err := filepath.Rel(wt.Filesystem.Root(), programDir)
	if err != nil {
		return errs.WrapMsgErr(ErrRepoInvalid, programDir, err)
	}
	prefix = filepath.ToSlash(prefix)

	head, err := repo.Head()
	if err != nil {
		return errs.Wrap(ErrNoHead, err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return errs.Wrap(ErrNoHead, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return errs.Wrap(ErrNoHead, err)
	}
	logger.Info(ctx, "exporting git tree", "commit", head.Hash().String()[:12], "prefix", prefix)

	count := 0
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, ok := underPrefix(f.Name, prefix)
		if !ok {
			return nil
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if excluded(filepath.Join(programDir, filepath.FromSlash(rel)), opts.Exclude) {
			return nil
		}
		if err := exportFile(f, target); err != nil {
			return errs.WrapMsgErr(ErrExportFailed, f.Name, err)
		}
		count++
		return nil
	})
	if err != nil {
		return errs.Wrap(ErrExportFailed, err)
	}
	logger.Debug(ctx, "exported files", "count", count)

	if opts.IncludeDependencies {
		deps := filepath.Join(programDir, DependencyDir)
		if _, err := os.Stat(deps); err == nil {
			logger.Info(ctx, "copying installed dependencies", "path", deps)
			return CopyTree(deps, filepath.Join(dest, DependencyDir))
		}
	}
	return nil
}

func underPrefix(name, prefix string) (string, bool) {
	if prefix == "." || prefix == "" {
		return name, true
	}
	if !strings.HasPrefix(name, prefix+"/") {
		return "", false
	}
	return path.Clean(strings.TrimPrefix(name, prefix+"/")), true
}

func exportFile(f *object.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if f.Mode == filemode.Symlink {
		link, err := f.Contents()
		if err != nil {
			return err
		}
		return os.Symlink(link, target)
	}
	mode, err := f.Mode.ToOSFileMode()
	if err != nil {
		return err
	}
	r, err := f.Reader()
	if err != nil {
		return err
	}
	defer r.Close()
	return writeFile(target, r, mode.Perm())
}
