package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vinr.eu/launchpad/internal/errs"
)

func TestLoadDefaults(t *testing.T) {
	program := t.TempDir()
	v := New()
	v.Set(KeyProgram, program)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, program, cfg.ProgramDir)
	assert.Equal(t, filepath.Join(program, "dist"), cfg.DistDir)
	assert.Equal(t, program, cfg.BaseDir)
	assert.Empty(t, cfg.ScaffoldDir)
	assert.Equal(t, "git", cfg.Exporter)
	assert.Equal(t, []string{"dotcloud", "create", "-f"}, cfg.ProvisionCommand)
	assert.Equal(t, []string{"dotcloud", "push"}, cfg.PushCommand)
	assert.Equal(t, "env", cfg.Credentials.Source)
	assert.Equal(t, "GITHUB_TOKEN", cfg.Credentials.EnvVar)
	assert.Equal(t, 3000, cfg.Run.BasePort)
	assert.True(t, cfg.Run.Install)
	assert.True(t, filepath.IsAbs(cfg.Run.CacheDir))
	assert.Contains(t, cfg.String(), "PushCommand=\"dotcloud push\"")
}

func TestLoadFromEnvironment(t *testing.T) {
	program := t.TempDir()
	t.Setenv("LAUNCHPAD_PUSH_COMMAND", `dotcloud push --message "ci deploy"`)
	t.Setenv("LAUNCHPAD_CREDENTIALS_SOURCE", "vault")
	t.Setenv("LAUNCHPAD_CREDENTIALS_VAULT_PATH", "launchpad/github")
	t.Setenv("LAUNCHPAD_RUN_BASE_PORT", "8000")
	v := New()
	v.Set(KeyProgram, program)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"dotcloud", "push", "--message", "ci deploy"}, cfg.PushCommand)
	assert.Equal(t, "vault", cfg.Credentials.Source)
	assert.Equal(t, "launchpad/github", cfg.Credentials.VaultPath)
	assert.Equal(t, 8000, cfg.Run.BasePort)
}

func TestLoadConfigFileInProgramDir(t *testing.T) {
	program := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(program, "launchpad.yaml"), []byte(
		"exporter: dir\nbase: ..\ncredentials:\n  source: keyring\n  keyring-service: launchpad\n  keyring-user: ci\n"), 0o644))
	v := New()
	v.Set(KeyProgram, program)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "dir", cfg.Exporter)
	assert.Equal(t, "keyring", cfg.Credentials.Source)
	assert.Equal(t, "ci", cfg.Credentials.KeyringUser)
	assert.True(t, filepath.IsAbs(cfg.BaseDir))
}

func TestLoadExplicitConfigMustExist(t *testing.T) {
	v := New()
	v.Set(KeyProgram, t.TempDir())
	v.Set(KeyConfig, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load(v)
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]struct{ key, value string }{
		"exporter":  {KeyExporter, "svn"},
		"source":    {KeyCredSource, "ldap"},
		"log level": {KeyLogLevel, "loud"},
		"push":      {KeyPushCommand, "  "},
		"provision": {KeyProvisionCommand, `create "oops`},
		"base port": {KeyRunBasePort, "0"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v := New()
			v.Set(KeyProgram, t.TempDir())
			v.Set(tc.key, tc.value)

			_, err := Load(v)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}
