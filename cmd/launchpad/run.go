package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"vinr.eu/launchpad/internal/config"
	"vinr.eu/launchpad/internal/defs"
	"vinr.eu/launchpad/internal/environment"
	"vinr.eu/launchpad/internal/pipeline"
	"vinr.eu/launchpad/internal/scaffold"
)

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every service of the program locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			prog, err := pipeline.LoadProgram(cfg.ProgramDir)
			if err != nil {
				return err
			}
			tmpl, err := scaffold.Template(scaffold.Load(cfg.ScaffoldDir))
			if err != nil {
				return err
			}
			resolver := &defs.Resolver{ProgramDir: cfg.ProgramDir, Template: tmpl}
			services, err := resolver.Resolve(prog.Services)
			if err != nil {
				return err
			}

			opts := []environment.Option{environment.WithBasePort(cfg.Run.BasePort)}
			if cfg.Run.ProxyAddr != "" {
				opts = append(opts, environment.WithProxy(cfg.Run.ProxyAddr))
			}
			if !cfg.Run.Install {
				opts = append(opts, environment.WithoutInstall())
			}
			return environment.NewManager(cfg.ProgramDir, cfg.Run.CacheDir, opts...).Run(cmd.Context(), services)
		},
	}
	flags := cmd.Flags()
	flags.String("proxy", "", "Serve a host-routed proxy on this address, e.g. 127.0.0.1:8080")
	flags.Int("base-port", environment.DefaultBasePort, "First PORT assigned to services, in descriptor order")
	flags.Bool("install", true, "Install dependencies before starting each service")
	cobra.CheckErr(v.BindPFlag(config.KeyRunProxy, flags.Lookup("proxy")))
	cobra.CheckErr(v.BindPFlag(config.KeyRunBasePort, flags.Lookup("base-port")))
	cobra.CheckErr(v.BindPFlag(config.KeyRunInstall, flags.Lookup("install")))
	return cmd
}
