package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/distfs/internal/cli/output"
	"github.com/marmos91/distfs/internal/cli/timeutil"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy stored files to the backup target",
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backup now",
	Long: `Copy every stored file that the manifest does not record yet to the
configured backup target: backup.s3.bucket when set, backup.directory
otherwise. backup.enabled only controls the scheduler in serve.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	backupCmd.AddCommand(backupRunCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	if cfg.Backup.Directory == "" && cfg.Backup.S3.Bucket == "" {
		return fmt.Errorf("no backup target: set backup.directory or backup.s3.bucket")
	}

	st, err := openStore(nil)
	if err != nil {
		return err
	}
	runner, closeRunner, err := newBackupRunner(cmd.Context(), st, nil)
	if err != nil {
		return err
	}
	defer closeRunner()

	rep, runErr := runner.Run(cmd.Context())

	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		if err := p.Print(rep); err != nil {
			return err
		}
	} else if err := output.PrintPairs(p.Writer(), output.Pairs{
		{"Run", rep.RunID},
		{"Target", rep.Target},
		{"Copied", strconv.Itoa(rep.Copied)},
		{"Skipped", strconv.Itoa(rep.Skipped)},
		{"Failed", strconv.Itoa(rep.Failed)},
		{"Bytes", strconv.FormatUint(rep.Bytes, 10)},
		{"Duration", timeutil.FormatDuration(rep.Duration)},
	}); err != nil {
		return err
	}
	return runErr
}
