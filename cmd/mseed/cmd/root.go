/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/mseedkit/pkg/config"
	"github.com/ssargent/mseedkit/pkg/di"
	"github.com/ssargent/mseedkit/pkg/mseed"
)

var container *di.Container

// SetContainer injects the dependency container. Commands build one from
// the configuration when none was set.
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mseed",
	Short: "mseedkit - MiniSEED record toolkit",
	Long: `mseedkit reads, repairs, splits, deduplicates and archives MiniSEED
seismic data records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if container != nil {
			return nil
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := di.NewContainer(cfg, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to build container: %w", err)
		}
		container = c
		return nil
	},
}

// loadConfig reads the config file named by --config, or the default path
// when it exists, and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg := config.DefaultConfig()
	switch {
	case configPath != "":
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case config.ConfigExists(config.GetDefaultConfigPath()):
		loaded, err := config.LoadConfig(config.GetDefaultConfigPath())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("strict") {
		cfg.Engine.Strict, _ = cmd.Flags().GetBool("strict")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// forEachRecord streams the records of path through fn. Records come from
// alloc and are only valid until fn returns unless alloc hands out owned
// records.
func forEachRecord(path string, alloc mseed.Allocator, fn func(*mseed.Record) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cfg := container.GetConfig()
	rd := mseed.NewReader(f, mseed.ReaderConfig{
		DefaultLength: cfg.Engine.DefaultRecordLength,
		Alloc:         alloc,
		Options:       container.RecordOptions(),
	})
	m := container.GetMetrics()
	for rd.Next() {
		m.RecordRead()
		if err := fn(rd.Record()); err != nil {
			return rd.Skipped(), err
		}
	}
	m.RecordsSkipped(rd.Skipped())
	if err := rd.Err(); err != nil {
		return rd.Skipped(), fmt.Errorf("%s: %w", path, err)
	}
	return rd.Skipped(), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("strict", false, "Reject records with malformed names")
}
