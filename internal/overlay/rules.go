package overlay

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/jsonstore"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/scaffold"
)

var (
	ErrWalkFailed   = errs.Kind(errs.ErrIO, "overlay: walk failed")
	ErrCopyFailed   = errs.Kind(errs.ErrIO, "overlay: copy failed")
	ErrMergeFailed  = errs.Kind(errs.ErrIO, "overlay: json merge failed")
	ErrWriteFailed  = errs.Kind(errs.ErrIO, "overlay: write failed")
	ErrRenameFailed = errs.Kind(errs.ErrIO, "overlay: rename failed")
)

// Substitution fills an empty `Placeholder` line of the build-control file
// with the value of the host environment variable Env.
type Substitution struct {
	Env         string
	Placeholder string
}

var DefaultSubstitutions = []Substitution{
	{Env: "LAUNCHPAD_DEBUG", Placeholder: "export LAUNCHPAD_DEBUG:="},
	{Env: "LAUNCHPAD_VERBOSE", Placeholder: "export LAUNCHPAD_VERBOSE:="},
}

// overlayTree applies the scaffold files under root onto destRoot. cfg is
// non-nil only for the top-level pass, where the deployment descriptor is
// regenerated.
func (m *Merger) overlayTree(ctx context.Context, root, destRoot string, cfg defs.DeploymentConfig, skipTemplates bool) error {
	err := fs.WalkDir(m.Scaffold, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if skipTemplates && p == scaffold.AppTemplatesDir {
				return fs.SkipDir
			}
			return nil
		}
		rel := p
		if root != "." {
			rel = strings.TrimPrefix(p, root+"/")
		}
		return m.overlayFile(ctx, p, destRoot, rel, cfg)
	})
	if err != nil && !errors.Is(err, errs.ErrIO) {
		return errs.WrapMsgErr(ErrWalkFailed, root, err)
	}
	return err
}

func (m *Merger) overlayFile(ctx context.Context, srcPath, destRoot, rel string, cfg defs.DeploymentConfig) error {
	dest := filepath.Join(destRoot, filepath.FromSlash(rel))
	switch {
	case rel == scaffold.DescriptorFile && cfg != nil:
		data, err := defs.Encode(cfg)
		if err != nil {
			return errs.WrapMsgErr(ErrWriteFailed, dest, err)
		}
		logger.Debug(ctx, "regenerating descriptor", "path", dest)
		return writeFile(dest, data, 0o644)

	case rel == scaffold.BuildControlFile:
		data, err := fs.ReadFile(m.Scaffold, srcPath)
		if err != nil {
			return errs.WrapMsgErr(ErrCopyFailed, srcPath, err)
		}
		logger.Debug(ctx, "writing build-control file", "path", dest)
		return writeFile(dest, []byte(m.substitute(string(data))), 0o644)
	}

	_, err := os.Lstat(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return m.copyFile(srcPath, dest)
	case err != nil:
		return errs.WrapMsgErr(ErrCopyFailed, dest, err)
	case strings.HasSuffix(rel, ".json"):
		return m.mergeJSON(ctx, srcPath, dest)
	default:
		logger.Debug(ctx, "keeping existing file", "path", dest)
		return nil
	}
}

func (m *Merger) copyFile(srcPath, dest string) error {
	data, err := fs.ReadFile(m.Scaffold, srcPath)
	if err != nil {
		return errs.WrapMsgErr(ErrCopyFailed, srcPath, err)
	}
	perm := fs.FileMode(0o644)
	if info, err := fs.Stat(m.Scaffold, srcPath); err == nil {
		// embedded files report 0444; keep the owner able to rewrite them
		perm = info.Mode().Perm() | 0o600
	}
	if strings.HasSuffix(dest, ".json") {
		// written in merged form so the next run's merge leaves it untouched
		doc, err := jsonstore.Decode(data)
		if err != nil {
			return errs.WrapMsgErr(ErrCopyFailed, srcPath, err)
		}
		if data, err = jsonstore.Marshal(doc); err != nil {
			return errs.WrapMsgErr(ErrCopyFailed, srcPath, err)
		}
	}
	return writeFile(dest, data, perm)
}

func (m *Merger) mergeJSON(ctx context.Context, srcPath, dest string) error {
	destData, err := os.ReadFile(dest)
	if err != nil {
		return errs.WrapMsgErr(ErrMergeFailed, dest, err)
	}
	srcData, err := fs.ReadFile(m.Scaffold, srcPath)
	if err != nil {
		return errs.WrapMsgErr(ErrMergeFailed, srcPath, err)
	}
	destDoc, err := jsonstore.Decode(destData)
	if err != nil {
		return errs.WrapMsgErr(ErrMergeFailed, dest, err)
	}
	srcDoc, err := jsonstore.Decode(srcData)
	if err != nil {
		return errs.WrapMsgErr(ErrMergeFailed, srcPath, err)
	}
	out, err := jsonstore.Marshal(DeepMerge(destDoc, srcDoc))
	if err != nil {
		return errs.WrapMsgErr(ErrMergeFailed, dest, err)
	}
	if bytes.Equal(out, destData) {
		return nil
	}
	logger.Debug(ctx, "merged json", "path", dest)
	return writeFile(dest, out, 0o644)
}

func (m *Merger) substitute(content string) string {
	for _, s := range m.substitutions() {
		val, ok := m.lookupEnv(s.Env)
		if !ok || val == "" {
			continue
		}
		re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(s.Placeholder) + `$`)
		content = re.ReplaceAllLiteralString(content, s.Placeholder+val)
	}
	return content
}

func writeFile(dest string, data []byte, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errs.WrapMsgErr(ErrWriteFailed, filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, data, perm); err != nil {
		return errs.WrapMsgErr(ErrWriteFailed, dest, err)
	}
	return nil
}
