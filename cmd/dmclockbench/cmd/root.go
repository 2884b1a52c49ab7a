// Package cmd implements the dmclockbench demo binary's command tree.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/foodotbar/dmclock/internal/dmclockconfig"
)

const customConfigLocation = "config"

// RootCmd builds the dmclockbench command tree.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dmclockbench",
		SilenceUsage: true,
		Short:        "Drives a synthetic multi-client workload against the dmClock scheduler",
	}

	cmd.PersistentFlags().StringSlice(
		customConfigLocation,
		[]string{},
		"fully qualified path to a config file (repeat or comma-separate for multiple)")
	_ = viper.BindPFlag(customConfigLocation, cmd.PersistentFlags().Lookup(customConfigLocation))

	cmd.AddCommand(runCmd())
	return cmd
}

func loadConfig() (dmclockconfig.Configuration, error) {
	userSpecifiedConfigs := viper.GetStringSlice(customConfigLocation)
	return dmclockconfig.Load("./config/dmclockbench", userSpecifiedConfigs)
}
