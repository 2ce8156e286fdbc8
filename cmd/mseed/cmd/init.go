/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/mseedkit/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default mseedkit configuration. Without --config the file is
written to the platform default location.

Examples:
  mseed init
  mseed init --config ./mseedkit.yaml --archive-dir ./archive`,
	Args: cobra.NoArgs,
	// the configuration may not exist yet
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		archiveDir, _ := cmd.Flags().GetString("archive-dir")
		force, _ := cmd.Flags().GetBool("force")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
			return nil
		}
		if _, err := config.BootstrapConfig(configPath, archiveDir); err != nil {
			return err
		}
		cmd.Printf("Configuration written to %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("archive-dir", "", "Archive directory to record in the configuration")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
