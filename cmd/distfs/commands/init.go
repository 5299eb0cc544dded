package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/distfs/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with every default spelled out.

Without --config the file goes to $XDG_CONFIG_HOME/distfs/config.yaml.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfig: annotationOn},
	RunE:        runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		p, err := config.InitConfig(initForce)
		if err != nil {
			return err
		}
		path = p
	} else if err := config.InitConfigToPath(path, initForce); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit device.path before running distfs against real hardware.")
	return nil
}
