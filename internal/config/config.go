package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"vinr.eu/launchpad/internal/credentials"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/provision"
	"vinr.eu/launchpad/internal/publish"
	"vinr.eu/launchpad/internal/source"
	"vinr.eu/launchpad/internal/toolexec"
)

var (
	ErrInvalid    = errs.Kind(errs.ErrValidation, "config: invalid configuration")
	ErrReadFailed = errs.Kind(errs.ErrIO, "config: cannot read configuration file")
)

const (
	EnvPrefix  = "LAUNCHPAD"
	ConfigName = "launchpad"
)

// Keys. Nested keys map to LAUNCHPAD_<SECTION>_<KEY> environment variables.
const (
	KeyConfig              = "config"
	KeyProgram             = "program"
	KeyDist                = "dist"
	KeyBase                = "base"
	KeyScaffold            = "scaffold"
	KeyLogLevel            = "log-level"
	KeyExporter            = "exporter"
	KeyIncludeDependencies = "include-dependencies"
	KeyProvisionCommand    = "provision-command"
	KeyPushCommand         = "push-command"

	KeyCredSource         = "credentials.source"
	KeyCredEnvVar         = "credentials.env-var"
	KeyCredSecretName     = "credentials.secret-name"
	KeyCredAWSMode        = "credentials.aws-mode"
	KeyCredVaultAddress   = "credentials.vault-address"
	KeyCredVaultToken     = "credentials.vault-token"
	KeyCredVaultMount     = "credentials.vault-mount"
	KeyCredVaultPath      = "credentials.vault-path"
	KeyCredKeyringService = "credentials.keyring-service"
	KeyCredKeyringUser    = "credentials.keyring-user"
	KeyCredVerifyGitHub   = "credentials.verify-github"
	KeyCredGitHubAPIURL   = "credentials.github-api-url"

	KeyRunBasePort = "run.base-port"
	KeyRunProxy    = "run.proxy"
	KeyRunCacheDir = "run.cache-dir"
	KeyRunInstall  = "run.install"
)

type RunConfig struct {
	BasePort  int
	ProxyAddr string
	CacheDir  string
	Install   bool
}

type Config struct {
	ProgramDir  string
	DistDir     string
	BaseDir     string
	ScaffoldDir string
	LogLevel    string

	Exporter            string
	IncludeDependencies bool
	ProvisionCommand    []string
	PushCommand         []string

	Credentials credentials.Settings
	Run         RunConfig
}

// New returns a viper instance with defaults and LAUNCHPAD_* environment
// binding. Flags are bound onto it by the caller.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyProgram, ".")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyExporter, source.ExporterGit)
	v.SetDefault(KeyProvisionCommand, strings.Join(provision.DefaultCommand, " "))
	v.SetDefault(KeyPushCommand, strings.Join(publish.DefaultCommand, " "))
	v.SetDefault(KeyCredSource, credentials.SourceEnv)
	v.SetDefault(KeyCredEnvVar, credentials.DefaultEnvVar)
	v.SetDefault(KeyCredAWSMode, "remote")
	v.SetDefault(KeyCredVaultMount, "secret")
	v.SetDefault(KeyRunBasePort, 3000)
	v.SetDefault(KeyRunCacheDir, "~/.cache/launchpad")
	v.SetDefault(KeyRunInstall, true)
	return v
}

// Load reads the optional configuration file and resolves v into a Config.
// An explicit --config file must exist; otherwise launchpad.{yaml,json,toml}
// is looked up in the program directory.
func Load(v *viper.Viper) (*Config, error) {
	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	cfg := &Config{
		ProgramDir:          v.GetString(KeyProgram),
		DistDir:             v.GetString(KeyDist),
		BaseDir:             v.GetString(KeyBase),
		ScaffoldDir:         v.GetString(KeyScaffold),
		LogLevel:            v.GetString(KeyLogLevel),
		Exporter:            v.GetString(KeyExporter),
		IncludeDependencies: v.GetBool(KeyIncludeDependencies),
		Credentials: credentials.Settings{
			Source:         v.GetString(KeyCredSource),
			EnvVar:         v.GetString(KeyCredEnvVar),
			SecretName:     v.GetString(KeyCredSecretName),
			AWSMode:        v.GetString(KeyCredAWSMode),
			VaultAddress:   v.GetString(KeyCredVaultAddress),
			VaultToken:     v.GetString(KeyCredVaultToken),
			VaultMount:     v.GetString(KeyCredVaultMount),
			VaultPath:      v.GetString(KeyCredVaultPath),
			KeyringService: v.GetString(KeyCredKeyringService),
			KeyringUser:    v.GetString(KeyCredKeyringUser),
			VerifyGitHub:   v.GetBool(KeyCredVerifyGitHub),
			GitHubAPIURL:   v.GetString(KeyCredGitHubAPIURL),
		},
		Run: RunConfig{
			BasePort:  v.GetInt(KeyRunBasePort),
			ProxyAddr: v.GetString(KeyRunProxy),
			CacheDir:  v.GetString(KeyRunCacheDir),
			Install:   v.GetBool(KeyRunInstall),
		},
	}
	if err := cfg.applyDefaultsAndValidate(v.GetString(KeyProvisionCommand), v.GetString(KeyPushCommand)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper) error {
	explicit := v.GetString(KeyConfig)
	if explicit != "" {
		path, err := homedir.Expand(explicit)
		if err != nil {
			return errs.WrapMsgErr(ErrReadFailed, explicit, err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(v.GetString(KeyProgram))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit == "" && errors.As(err, &notFound) {
			return nil
		}
		return errs.WrapMsgErr(ErrReadFailed, explicit, err)
	}
	return nil
}

func (c *Config) applyDefaultsAndValidate(provisionCmd, pushCmd string) error {
	var err error
	if c.ProgramDir, err = absPath(c.ProgramDir); err != nil {
		return err
	}
	if c.DistDir == "" {
		c.DistDir = filepath.Join(c.ProgramDir, "dist")
	} else if c.DistDir, err = absPath(c.DistDir); err != nil {
		return err
	}
	if c.BaseDir == "" {
		c.BaseDir = c.ProgramDir
	} else if c.BaseDir, err = absPath(c.BaseDir); err != nil {
		return err
	}
	if c.ScaffoldDir != "" {
		if c.ScaffoldDir, err = absPath(c.ScaffoldDir); err != nil {
			return err
		}
	}
	if c.Run.CacheDir, err = absPath(c.Run.CacheDir); err != nil {
		return err
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errs.WrapMsg(ErrInvalid, err.Error())
	}
	if _, err := source.New(c.Exporter); err != nil {
		return errs.WrapMsg(ErrInvalid, fmt.Sprintf("exporter must be %q or %q, got %q", source.ExporterGit, source.ExporterDir, c.Exporter))
	}
	switch c.Credentials.Source {
	case credentials.SourceEnv, credentials.SourceAWS, credentials.SourceVault, credentials.SourceKeyring:
	default:
		return errs.WrapMsg(ErrInvalid, fmt.Sprintf("credentials.source must be env, aws, vault or keyring, got %q", c.Credentials.Source))
	}
	if c.Run.BasePort <= 0 || c.Run.BasePort > 65535 {
		return errs.WrapMsg(ErrInvalid, fmt.Sprintf("run.base-port out of range: %d", c.Run.BasePort))
	}

	if c.ProvisionCommand, err = toolexec.Parse(provisionCmd); err != nil {
		return errs.WrapMsg(ErrInvalid, KeyProvisionCommand+": "+err.Error())
	}
	if c.PushCommand, err = toolexec.Parse(pushCmd); err != nil {
		return errs.WrapMsg(ErrInvalid, KeyPushCommand+": "+err.Error())
	}
	return nil
}

func absPath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", errs.WrapMsgErr(ErrInvalid, p, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errs.WrapMsgErr(ErrInvalid, p, err)
	}
	return abs, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"ProgramDir=%s DistDir=%s BaseDir=%s ScaffoldDir=%s Exporter=%s CredentialSource=%s ProvisionCommand=%q PushCommand=%q",
		c.ProgramDir, c.DistDir, c.BaseDir, c.ScaffoldDir, c.Exporter, c.Credentials.Source,
		strings.Join(c.ProvisionCommand, " "), strings.Join(c.PushCommand, " "),
	)
}
