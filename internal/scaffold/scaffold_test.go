package scaffold

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultContainsPlatformFiles(t *testing.T) {
	fsys := Default()
	for _, name := range []string{DescriptorFile, BuildControlFile, ProgramFile, PackageFile} {
		_, err := fs.Stat(fsys, name)
		assert.NoError(t, err, name)
	}
	_, err := fs.Stat(fsys, AppTemplate("nodejs")+"/package.json")
	assert.NoError(t, err)
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), []byte("api:\n  type: nodejs\n"), 0o644))

	data, err := Template(Load(dir))
	require.NoError(t, err)
	assert.Equal(t, "api:\n  type: nodejs\n", string(data))
}
