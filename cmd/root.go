package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/printprob/bookdb/cmd/seed"
	"github.com/printprob/bookdb/cmd/serve"
	"github.com/printprob/bookdb/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bookdb",
		Short: "Book segmentation metadata service",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		serve.Command(settings),
		seed.Command(settings),
		configCommand(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// configCommand prints the effective configuration after defaults, file and
// environment overrides are applied.
func configCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("error marshaling configuration: %w", err)
			}
			cmd.Print(string(out))
			return nil
		},
	}
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(fmt.Errorf("error binding flags: %w", err))
	}
}
