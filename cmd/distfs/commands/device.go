package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/distfs/internal/cli/output"
	"github.com/marmos91/distfs/internal/cli/prompt"
)

var (
	resetYes  bool
	formatYes bool
)

var echoCmd = &cobra.Command{
	Use:   "echo <hex pattern>",
	Short: "Write a pattern at offset 0 and read it back",
	Long: `Write a byte pattern at offset 0 of the device, sync, and read it back.

Offset 0 is the first metadata table slot: running this on a device that
holds files damages the head of table entry 0.

Examples:
  distfs echo DEADBEEF`,
	Args: cobra.ExactArgs(1),
	RunE: runEcho,
}

var resetCmd = &cobra.Command{
	Use:   "reset <offset hex> <size>",
	Short: "Zero a region of the device",
	Long: `Zero size bytes starting at a hexadecimal offset. The metadata table is not
updated.

Examples:
  distfs reset 0x1000 6472 --yes`,
	Args: cobra.ExactArgs(2),
	RunE: runReset,
}

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Clear the metadata table",
	Args:  cobra.NoArgs,
	RunE:  runFormat,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip confirmation")
	formatCmd.Flags().BoolVarP(&formatYes, "yes", "y", false, "skip confirmation")
}

func runEcho(cmd *cobra.Command, args []string) error {
	pattern, err := parseHexBytes(args[0])
	if err != nil {
		return err
	}

	s, err := openStore(nil)
	if err != nil {
		return err
	}
	res, err := s.Echo(cmd.Context(), pattern)
	if err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		if err := p.Print(res); err != nil {
			return err
		}
	} else if err := output.PrintPairs(p.Writer(), output.Pairs{
		{"Written", spacedHex(res.Written)},
		{"Read back", spacedHex(res.ReadBack)},
		{"Match", strconv.FormatBool(res.Match)},
	}); err != nil {
		return err
	}

	if !res.Match {
		return fmt.Errorf("echo test failed: read back differs from pattern")
	}
	return nil
}

func spacedHex(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(parts, " ")
}

func runReset(cmd *cobra.Command, args []string) error {
	offset, err := parseHexUint(args[0])
	if err != nil {
		return err
	}
	size, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || size <= 0 {
		return fmt.Errorf("invalid size %q: want a positive decimal byte count", args[1])
	}

	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Zero %d bytes at 0x%08X on %s?", size, offset, cfg.Device.Path), resetYes)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reset cancelled")
	}

	s, err := openStore(nil)
	if err != nil {
		return err
	}
	if err := s.Reset(cmd.Context(), int64(offset), size); err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success(fmt.Sprintf("Zeroed %d bytes at 0x%08X", size, offset))
	return nil
}

func runFormat(cmd *cobra.Command, args []string) error {
	if !formatYes {
		ok, err := prompt.ConfirmDanger(
			fmt.Sprintf("Every file on %s will be lost", cfg.Device.Path), "format")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("format cancelled")
		}
	}

	s, err := openStore(nil)
	if err != nil {
		return err
	}
	if err := s.Format(cmd.Context()); err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success("Metadata table cleared on " + cfg.Device.Path)
	return nil
}
