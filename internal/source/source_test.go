package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/workspace"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func commitAll(t *testing.T, root string) {
	t.Helper()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "launchpad", Email: "launchpad@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	require.NoError(t, filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	}))
	return out
}

func TestGitExporterExportsProgramSubtreeAtHead(t *testing.T) {
	repo := t.TempDir()
	writeFiles(t, repo, map[string]string{
		"README.md":             "repo\n",
		"apps/web/server.js":    "require('http')\n",
		"apps/web/lib/util.js":  "module.exports = {}\n",
		"apps/other/index.js":   "other\n",
		"apps/web/package.json": `{"name": "web"}`,
	})
	require.NoError(t, os.WriteFile(filepath.Join(repo, "apps/web/run.sh"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.Symlink("server.js", filepath.Join(repo, "apps/web/main.js")))
	commitAll(t, repo)

	writeFiles(t, repo, map[string]string{
		"apps/web/uncommitted.js":              "draft\n",
		"apps/web/node_modules/dep/index.js": "dep\n",
	})

	dest := t.TempDir()
	program := filepath.Join(repo, "apps", "web")
	require.NoError(t, GitExporter{}.Export(context.Background(), program, dest, Options{}))

	assert.ElementsMatch(t, []string{"server.js", "lib/util.js", "package.json", "run.sh", "main.js"}, listFiles(t, dest))

	info, err := os.Stat(filepath.Join(dest, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dest, "main.js"))
	require.NoError(t, err)
	assert.Equal(t, "server.js", link)
}

func TestGitExporterIncludesDependencies(t *testing.T) {
	repo := t.TempDir()
	writeFiles(t, repo, map[string]string{"server.js": "x\n", ".gitignore": "node_modules/\n"})
	commitAll(t, repo)
	writeFiles(t, repo, map[string]string{"node_modules/dep/index.js": "dep\n"})

	dest := t.TempDir()
	require.NoError(t, GitExporter{}.Export(context.Background(), repo, dest, Options{IncludeDependencies: true}))

	_, err := os.Stat(filepath.Join(dest, "node_modules", "dep", "index.js"))
	assert.NoError(t, err)
}

func TestGitExporterOutsideRepository(t *testing.T) {
	err := GitExporter{}.Export(context.Background(), t.TempDir(), t.TempDir(), Options{})
	assert.ErrorIs(t, err, ErrRepoInvalid)
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestDirExporterHonoursIgnoreRules(t *testing.T) {
	program := t.TempDir()
	writeFiles(t, program, map[string]string{
		".gitignore":                "*.log\ntmp/\n",
		"server.js":                 "x\n",
		"debug.log":                 "noise\n",
		"tmp/cache":                 "c\n",
		".git/HEAD":                 "ref: refs/heads/main\n",
		"node_modules/dep/index.js": "dep\n",
		"dist/dotcloud/old.js":      "old\n",
		"lib/a.js":                  "a\n",
	})

	dest := t.TempDir()
	opts := Options{Exclude: []string{filepath.Join(program, "dist")}}
	require.NoError(t, DirExporter{}.Export(context.Background(), program, dest, opts))
	assert.ElementsMatch(t, []string{".gitignore", "server.js", "lib/a.js"}, listFiles(t, dest))

	dest = t.TempDir()
	opts.IncludeDependencies = true
	require.NoError(t, DirExporter{}.Export(context.Background(), program, dest, opts))
	assert.Contains(t, listFiles(t, dest), "node_modules/dep/index.js")
}

func TestSnapshotReplacesOutput(t *testing.T) {
	program := t.TempDir()
	writeFiles(t, program, map[string]string{"server.js": "v2\n"})
	p := workspace.Paths{ProgramDir: program, DistDir: filepath.Join(program, "dist"), BaseDir: program}
	writeFiles(t, p.OutputDir(), map[string]string{"stale.js": "old\n"})

	require.NoError(t, Snapshot(context.Background(), DirExporter{}, p, Options{}))

	assert.Equal(t, []string{"server.js"}, listFiles(t, p.SourceDir()))
	assert.Equal(t, []string{"server.js"}, listFiles(t, p.OutputDir()))
	data, err := os.ReadFile(filepath.Join(p.OutputDir(), "server.js"))
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(data))
}

func TestNew(t *testing.T) {
	exp, err := New("")
	require.NoError(t, err)
	assert.IsType(t, GitExporter{}, exp)

	exp, err = New(ExporterDir)
	require.NoError(t, err)
	assert.IsType(t, DirExporter{}, exp)

	_, err = New("svn")
	assert.ErrorIs(t, err, ErrUnsupportedExporter)
}

func TestUnderPrefix(t *testing.T) {
	rel, ok := underPrefix("apps/web/a.js", "apps/web")
	assert.True(t, ok)
	assert.Equal(t, "a.js", rel)

	_, ok = underPrefix("apps/webapp/a.js", "apps/web")
	assert.False(t, ok)

	rel, ok = underPrefix("a.js", ".")
	assert.True(t, ok)
	assert.Equal(t, "a.js", rel)
}
