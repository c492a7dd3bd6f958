package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"vinr.eu/launchpad/internal/config"
	"vinr.eu/launchpad/internal/logger"
)

func newRootCommand() *cobra.Command {
	v := config.New()
	cmd := &cobra.Command{
		Use:           "launchpad",
		Short:         "Deploy a program to a managed hosting platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String(config.KeyConfig, "", "Path to a configuration file (default: launchpad.yaml in the program directory)")
	flags.String(config.KeyProgram, ".", "Program root directory")
	flags.String(config.KeyDist, "", "Dist directory (default: <program>/dist)")
	flags.String(config.KeyBase, "", "Directory holding the shared .dotcloud configuration (default: <program>)")
	flags.String(config.KeyScaffold, "", "Scaffold directory overriding the built-in one")
	flags.String(config.KeyLogLevel, "info", "Log level: debug, info, warn or error")
	flags.String(config.KeyExporter, "git", "Source exporter: git (HEAD snapshot) or dir (working tree)")
	bindFlags(v, flags, config.KeyConfig, config.KeyProgram, config.KeyDist, config.KeyBase, config.KeyScaffold, config.KeyLogLevel, config.KeyExporter)

	cmd.AddCommand(newDeployCommand(v), newRunCommand(v))
	return cmd
}

// bindFlags makes each flag the highest-priority source for the viper key of
// the same name.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		cobra.CheckErr(v.BindPFlag(name, fs.Lookup(name)))
	}
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}
