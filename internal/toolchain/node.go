package toolchain

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
)

const DefaultNodeDistURL = "https://nodejs.org/dist"

type NodeToolchain struct {
	cacheDir string
	distURL  string
	client   *http.Client
}

type Option func(*NodeToolchain)

func WithDistURL(u string) Option {
	return func(t *NodeToolchain) { t.distURL = strings.TrimSuffix(u, "/") }
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *NodeToolchain) { t.client = c }
}

func NewNodeToolchain(cacheDir string, opts ...Option) *NodeToolchain {
	t := &NodeToolchain{cacheDir: cacheDir, distURL: DefaultNodeDistURL, client: http.DefaultClient}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *NodeToolchain) Provision(ctx context.Context, version string) (string, error) {
	if v, ok := ExactVersion(version); ok {
		version = v
	} else {
		return "", errs.WrapMsg(ErrProvisionFailed, "node version must be exact, got "+version)
	}
	installDir := filepath.Join(t.cacheDir, "toolchains", "node", version)
	binDir := filepath.Join(installDir, "bin")
	exe := filepath.Join(binDir, "node")
	if runtime.GOOS == "windows" {
		binDir = installDir
		exe += ".exe"
	}
	if _, err := os.Stat(exe); err == nil {
		return binDir, nil
	}
	logger.Info(ctx, "provisioning node", "version", version, "dir", installDir)
	tmpDir := installDir + ".tmp"
	defer os.RemoveAll(tmpDir)
	if err := t.downloadAndExtract(ctx, version, tmpDir); err != nil {
		return "", errs.WrapMsgErr(ErrProvisionFailed, "node:"+version, err)
	}
	_ = os.RemoveAll(installDir)
	if err := os.Rename(tmpDir, installDir); err != nil {
		return "", errs.Wrap(ErrProvisionFailed, err)
	}
	return binDir, nil
}

func (t *NodeToolchain) downloadAndExtract(ctx context.Context, version, dest string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.getURL(version), nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, resp.Body.Close()) }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %s", resp.Status)
	}
	gzr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, gzr.Close()) }()
	return extract(tar.NewReader(gzr), dest)
}

// extract unpacks a node release archive, dropping its top-level directory.
func extract(tr *tar.Reader, dest string) error {
	root := filepath.Clean(dest) + string(os.PathSeparator)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		_, rel, ok := strings.Cut(hdr.Name, "/")
		if !ok || rel == "" {
			continue
		}
		target := filepath.Join(dest, rel)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry escapes destination: %s", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(target, 0o755)
		case tar.TypeReg:
			err = writeFile(target, tr, hdr.FileInfo().Mode())
		case tar.TypeSymlink:
			if err = os.MkdirAll(filepath.Dir(target), 0o755); err == nil {
				_ = os.Remove(target)
				err = os.Symlink(hdr.Linkname, target)
			}
		}
		if err != nil {
			return err
		}
	}
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

func (t *NodeToolchain) getURL(v string) string {
	arch := runtime.GOARCH
	if arch == "amd64" {
		arch = "x64"
	}
	return fmt.Sprintf("%s/v%s/node-v%s-%s-%s.tar.gz", t.distURL, v, v, runtime.GOOS, arch)
}
