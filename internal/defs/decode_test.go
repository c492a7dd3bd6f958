package defs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProgramJSONKeepsServiceOrder(t *testing.T) {
	dir := t.TempDir()
	data := `{
    "name": "acme",
    "flavor": "live",
    "options": {"pushDependencies": true, "runtimeDependencies": {"express": "4.x"}},
    "services": {
        "zeta": {"type": "nodejs", "approot": "z"},
        "alpha": {"type": "nodejs", "approot": "a", "process": "node app.js"}
    }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "program.json"), []byte(data), 0o644))

	prog, err := LoadProgram(dir)
	require.NoError(t, err)
	assert.Equal(t, "acme", prog.Name)
	assert.Equal(t, "live", prog.Flavor)
	assert.True(t, prog.Options.PushDependencies)
	assert.Equal(t, map[string]string{"express": "4.x"}, prog.Options.RuntimeDependencies)
	require.Len(t, prog.Services, 2)
	assert.Equal(t, "zeta", prog.Services[0].Name)
	assert.Equal(t, "alpha", prog.Services[1].Name)
	assert.Equal(t, "node app.js", prog.Services[1].Service.Process)
}

func TestLoadProgramYAMLWithoutServices(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "program.yml"), []byte("name: acme\n"), 0o644))

	prog, err := LoadProgram(dir)
	require.NoError(t, err)
	assert.Equal(t, "acme", prog.Name)
	assert.Empty(t, prog.Services)
}

func TestLoadProgramMissing(t *testing.T) {
	_, err := LoadProgram(t.TempDir())
	assert.ErrorIs(t, err, ErrNoProgram)
}

func TestEncodeIsStable(t *testing.T) {
	cfg := DeploymentConfig{
		{Name: "www", RawType: "nodejs", Type: TypeNodeJS, Approot: "web", Config: map[string]any{"node_version": "v0.8.x", "a": 1}},
		{Name: "api", RawType: "nodejs", Type: TypeNodeJS, Approot: ".", Process: "node api.js"},
	}
	first, err := Encode(cfg)
	require.NoError(t, err)
	second, err := Encode(cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	services, err := DecodeServices(first)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "www", services[0].Name)
	assert.Equal(t, "web", services[0].Service.Approot)
	assert.Equal(t, "v0.8.x", services[0].Service.Config["node_version"])
	assert.Equal(t, "api", services[1].Name)
	assert.Equal(t, "node api.js", services[1].Service.Process)
}
