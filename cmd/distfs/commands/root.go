// Package commands implements the distfs command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/distfs/internal/cli/output"
	"github.com/marmos91/distfs/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile      string
	devicePath   string
	outputFormat string
	verbose      bool

	// cfg is loaded before any command that is not annotated skipConfig.
	cfg *config.Config
)

// Command annotations.
const (
	skipConfig   = "skip-config"
	configLogs   = "config-logs"
	annotationOn = "true"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "distfs",
	Short: "distfs - raw device blob store",
	Long: `distfs stores files directly on a raw block device or image file, behind a
fixed-size metadata table, and serves them over UART, SPI, I2C or TCP with a
small framed packet protocol.

Use "distfs [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/distfs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "device or image path, overrides device.path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(echoCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig reads the configuration (defaults when no file exists), applies
// flag overrides and sets up logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfig] == annotationOn {
		return nil
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if devicePath != "" {
		c.Device.Path = devicePath
	}
	cfg = c

	// Only long running commands log where the config says; one-shot
	// commands keep stdout for their results.
	return InitLogger(cfg, cmd.Annotations[configLogs] != annotationOn)
}

// printer returns a Printer for the --output flag.
func printer() (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.StdoutPrinter(format), nil
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

func configSource() string {
	if cfgFile != "" {
		return cfgFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
