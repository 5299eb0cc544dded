package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/distfs/pkg/protocol"
	"github.com/marmos91/distfs/pkg/store"
	"github.com/marmos91/distfs/pkg/transport"
)

// DefaultUploadChunk is the chunk size a Client sends per UPLOAD packet.
const DefaultUploadChunk = 4 << 10

// ErrUnexpectedReply means the server answered with a packet the exchange
// does not allow.
var ErrUnexpectedReply = errors.New("unexpected reply")

// ClientConfig configures a Client.
type ClientConfig struct {
	// Timeout bounds each transport read and write.
	Timeout time.Duration

	// ChunkSize is the upload chunk size, capped by what fits one packet.
	ChunkSize int
}

// Client issues requests over a transport. It is not safe for concurrent use.
type Client struct {
	t    transport.Transport
	cfg  ClientConfig
	recv *protocol.Receiver
}

// NewClient returns a Client speaking over t.
func NewClient(t transport.Transport, cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultIOTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultUploadChunk
	}
	return &Client{
		t:    t,
		cfg:  cfg,
		recv: protocol.NewReceiver(t, protocol.ReceiverConfig{Timeout: cfg.Timeout}),
	}
}

// Close releases the client and closes its transport.
func (c *Client) Close() error {
	c.recv.Release()
	return c.t.Close()
}

func (c *Client) send(req protocol.Request) error {
	p, err := req.Packet()
	if err != nil {
		return err
	}
	return protocol.WritePacket(c.t, p, c.cfg.Timeout, nil)
}

// reply reads the next packet, turning ERROR replies into *protocol.RemoteError.
func (c *Client) reply(ctx context.Context) (protocol.Packet, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Packet{}, err
	}
	p, err := c.recv.Next()
	if err != nil {
		return protocol.Packet{}, err
	}
	if p.Command == protocol.CmdError {
		return p, protocol.ParseError(p.Payload)
	}
	return p, nil
}

func (c *Client) expectOK(ctx context.Context) error {
	p, err := c.reply(ctx)
	if err != nil {
		return err
	}
	if p.Command != protocol.CmdOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, p.Command)
	}
	return nil
}

// List returns the remote table.
func (c *Client) List(ctx context.Context) ([]store.Entry, error) {
	if err := c.send(protocol.ListRequest{}); err != nil {
		return nil, err
	}

	entries := []store.Entry{}
	for {
		p, err := c.reply(ctx)
		if err != nil {
			return nil, err
		}
		switch p.Command {
		case protocol.CmdOK:
			return entries, nil
		case protocol.CmdData:
			var e store.Entry
			if err := e.UnmarshalBinary(p.Payload); err != nil {
				return nil, err
			}
			entries = append(entries, e)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedReply, p.Command)
		}
	}
}

// Upload sends r under name and returns the number of bytes sent. The server
// commits the file once the last chunk arrives.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (uint64, error) {
	chunk := min(c.cfg.ChunkSize, protocol.MaxUploadChunk(name))
	if chunk <= 0 {
		return 0, fmt.Errorf("%w: name too long", protocol.ErrMalformed)
	}

	br := bufio.NewReaderSize(r, chunk)
	buf := make([]byte, chunk)
	var sent uint64

	for {
		n, err := io.ReadFull(br, buf)
		last := false
		switch {
		case err == nil:
			if _, perr := br.Peek(1); perr == io.EOF {
				last = true
			} else if perr != nil {
				return sent, perr
			}
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			last = true
		default:
			return sent, err
		}

		if err := c.send(protocol.UploadRequest{Name: name, Last: last, Chunk: buf[:n]}); err != nil {
			return sent, err
		}
		if err := c.expectOK(ctx); err != nil {
			return sent, err
		}
		sent += uint64(n)

		if last {
			return sent, nil
		}
	}
}

// Download writes the remote payload of name to w and returns its length.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) (uint64, error) {
	if err := c.send(protocol.DownloadRequest{Name: name}); err != nil {
		return 0, err
	}

	var got uint64
	for {
		p, err := c.reply(ctx)
		if err != nil {
			return got, err
		}
		switch p.Command {
		case protocol.CmdOK:
			return got, nil
		case protocol.CmdData:
			if _, err := w.Write(p.Payload); err != nil {
				return got, err
			}
			got += uint64(len(p.Payload))
		default:
			return got, fmt.Errorf("%w: %s", ErrUnexpectedReply, p.Command)
		}
	}
}

// Delete removes name on the server.
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.send(protocol.DeleteRequest{Name: name}); err != nil {
		return err
	}
	return c.expectOK(ctx)
}

// IsRemoteCode reports whether err is an ERROR reply carrying code.
func IsRemoteCode(err error, code protocol.ErrorCode) bool {
	var re *protocol.RemoteError
	return errors.As(err, &re) && re.Code == code
}
