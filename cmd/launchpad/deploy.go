package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"vinr.eu/launchpad/internal/config"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/pipeline"
	"vinr.eu/launchpad/internal/toolexec"
)

func newDeployCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Export, overlay, provision and publish the program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger.Debug(ctx, "configuration loaded", "config", cfg.String())

			prog, err := pipeline.LoadProgram(cfg.ProgramDir)
			if err != nil {
				return err
			}
			pc, err := pipeline.NewContext(cfg, prog, toolexec.ExecRunner{})
			if err != nil {
				return err
			}
			st, err := pipeline.Run(ctx, pc, pipeline.DeployStages())
			if err != nil {
				return err
			}
			logger.Info(ctx, "deployed", "application", pipeline.DeclaredName(ctx, prog), "services", st.Config.Names())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Bool(config.KeyIncludeDependencies, false, "Push the working-tree node_modules along with the source")
	flags.String(config.KeyProvisionCommand, "", "Command creating the remote application; flavor and name are appended")
	flags.String(config.KeyPushCommand, "", "Command publishing the output tree")
	flags.String("credential-source", "", "Credential source: env, aws, vault or keyring")
	bindFlags(v, flags, config.KeyIncludeDependencies, config.KeyProvisionCommand, config.KeyPushCommand)
	cobra.CheckErr(v.BindPFlag(config.KeyCredSource, flags.Lookup("credential-source")))
	return cmd
}
