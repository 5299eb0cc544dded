package commands

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/distfs/internal/cli/output"
	"github.com/marmos91/distfs/pkg/server"
	"github.com/marmos91/distfs/pkg/store"
	"github.com/marmos91/distfs/pkg/transport"
)

var (
	remoteAddr      string
	remoteTransport string
	remoteLink      string
	remoteChunk     int
	remoteName      string
	remoteDir       string
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Talk to a running distfs server over a transport",
	Long: `Send LIST, UPLOAD, DOWNLOAD and DELETE requests to a distfs command server.

The transport comes from server.transport in the config file. For the network
transport, --addr overrides server.network.host and port.

Examples:
  distfs remote list --addr 10.0.0.5:9000
  distfs remote upload CantinaBand3.wav --transport uart --link /dev/ttyUSB0`,
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List files on the server",
	Args:  cobra.NoArgs,
	RunE:  runRemoteList,
}

var remoteUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a local file to the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteUpload,
}

var remoteDownloadCmd = &cobra.Command{
	Use:   "download <name>",
	Short: "Download a file from the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteDownload,
}

var remoteDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a file on the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteDelete,
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "", "server host:port for the network transport")
	remoteCmd.PersistentFlags().StringVar(&remoteTransport, "transport", "", "transport type, overrides server.transport.type")
	remoteCmd.PersistentFlags().StringVar(&remoteLink, "link", "", "uart, spi or i2c device node, overrides server.transport.device")
	remoteCmd.PersistentFlags().IntVar(&remoteChunk, "chunk", server.DefaultUploadChunk, "upload chunk size in bytes")
	remoteUploadCmd.Flags().StringVar(&remoteName, "name", "", "store under this name instead of the file's base name")
	remoteDownloadCmd.Flags().StringVar(&remoteDir, "dir", ".", "destination directory")

	remoteCmd.AddCommand(remoteListCmd)
	remoteCmd.AddCommand(remoteUploadCmd)
	remoteCmd.AddCommand(remoteDownloadCmd)
	remoteCmd.AddCommand(remoteDeleteCmd)
}

// dialServer opens the client side of the configured transport.
func dialServer(cmd *cobra.Command) (*server.Client, error) {
	if remoteTransport != "" {
		cfg.Server.Transport.Type = remoteTransport
	}
	if remoteLink != "" {
		cfg.Server.Transport.Device = remoteLink
	}
	tcfg, err := transportConfig(false)
	if err != nil {
		return nil, err
	}

	if remoteAddr != "" {
		host, port, err := net.SplitHostPort(remoteAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid --addr: %w", err)
		}
		tcfg.Host = host
		if tcfg.Port, err = strconv.Atoi(port); err != nil {
			return nil, fmt.Errorf("invalid --addr port %q", port)
		}
	}
	if tcfg.Type == transport.TypeNetwork && (tcfg.Host == "" || tcfg.Host == "0.0.0.0") {
		tcfg.Host = "127.0.0.1"
	}

	t, err := transport.DefaultRegistry().Open(cmd.Context(), tcfg)
	if err != nil {
		return nil, err
	}
	return server.NewClient(t, server.ClientConfig{
		Timeout:   cfg.Server.IOTimeout,
		ChunkSize: remoteChunk,
	}), nil
}

func runRemoteList(cmd *cobra.Command, args []string) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.List(cmd.Context())
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

func runRemoteUpload(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	name := remoteName
	if name == "" {
		name = filepath.Base(args[0])
	}

	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Upload(cmd.Context(), name, f)
	if err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success(fmt.Sprintf("Uploaded %s (%d bytes)", name, n))
	return nil
}

func runRemoteDownload(cmd *cobra.Command, args []string) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	dst := filepath.Join(remoteDir, filepath.Base(args[0]))
	f, err := os.Create(dst)
	if err != nil {
		return err
	}

	n, err := c.Download(cmd.Context(), args[0], f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success(fmt.Sprintf("Saved %s (%d bytes)", dst, n))
	return nil
}

func runRemoteDelete(cmd *cobra.Command, args []string) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success("Deleted " + args[0])
	return nil
}
