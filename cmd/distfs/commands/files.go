package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/distfs/internal/cli/output"
	"github.com/marmos91/distfs/internal/cli/prompt"
	"github.com/marmos91/distfs/pkg/store"
)

var (
	uploadName  string
	downloadDir string
	deleteYes   bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Store local files on the device",
	Long: `Store one or more local files on the device. Each file is appended after
the furthest stored blob and recorded in the first free table slot.

Examples:
  distfs upload CantinaBand3.wav
  distfs upload --name intro.wav ./tracks/01.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var downloadCmd = &cobra.Command{
	Use:   "download <name>",
	Short: "Copy a stored file to a local directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored file and compact the device",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored files",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "store under this name (single file only)")
	downloadCmd.Flags().StringVar(&downloadDir, "dir", ".", "destination directory")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip confirmation")
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadName != "" && len(args) > 1 {
		return fmt.Errorf("--name needs exactly one file, got %d", len(args))
	}

	s, err := openStore(nil)
	if err != nil {
		return err
	}
	p, err := printer()
	if err != nil {
		return err
	}

	var stored []store.Entry
	for _, path := range args {
		var opts []store.UploadOption
		if uploadName != "" {
			opts = append(opts, store.WithName(uploadName))
		}
		e, err := s.Upload(cmd.Context(), path, opts...)
		if err != nil {
			return err
		}
		stored = append(stored, e)
	}

	if p.Format() != output.FormatTable {
		return p.Print(stored)
	}
	for _, e := range stored {
		p.Success(fmt.Sprintf("Stored %s at 0x%08X (%d bytes, slot %d)", e.Name, e.StartOffset, e.Size, e.Index))
	}
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	s, err := openStore(nil)
	if err != nil {
		return err
	}

	dst, err := s.DownloadToDir(cmd.Context(), args[0], downloadDir, stderrProgress())
	if err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(map[string]string{"name": args[0], "path": dst})
	}
	p.Success("Saved " + filepath.Clean(dst))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s and compact the device?", args[0]), deleteYes)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete cancelled")
	}

	s, err := openStore(nil)
	if err != nil {
		return err
	}
	if err := s.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success("Deleted " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openStore(nil)
	if err != nil {
		return err
	}
	entries, err := s.List(cmd.Context())
	if err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		return store.PrintTable(p.Writer(), entries)
	}
	return p.Print(entries)
}
