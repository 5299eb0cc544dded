package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/internal/telemetry"
	"github.com/marmos91/distfs/pkg/metrics"
	"github.com/marmos91/distfs/pkg/protocol"
	"github.com/marmos91/distfs/pkg/store"
	"github.com/marmos91/distfs/pkg/transport"
)

// session is the state of one transport being served.
type session struct {
	srv  *Server
	id   string
	t    transport.Transport
	recv *protocol.Receiver

	// uploads in progress, keyed by file name
	spools map[string]*spool
}

// spool collects upload chunks until the last one arrives.
type spool struct {
	f     *os.File
	bytes uint64
}

// ServeTransport runs a session on t until the peer disconnects or ctx is
// cancelled. t is closed on return.
func (s *Server) ServeTransport(ctx context.Context, t transport.Transport, peer string) error {
	sess := &session{
		srv:    s,
		id:     uuid.NewString(),
		t:      t,
		spools: make(map[string]*spool),
	}
	sess.recv = protocol.NewReceiver(t, protocol.ReceiverConfig{
		Timeout: s.cfg.IOTimeout,
		Metrics: s.cfg.Metrics,
	})

	kind := string(t.Type())
	ctx = logger.WithContext(ctx, logger.NewLogContext(sess.id, kind, peer))

	s.active.Add(1)
	metrics.SessionStarted(s.cfg.Metrics, kind)
	logger.InfoCtx(ctx, "Session started")

	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer func() {
		stop()
		sess.close()
		_ = t.Close()
		s.active.Add(-1)
		metrics.SessionEnded(s.cfg.Metrics, kind)
		logger.InfoCtx(ctx, "Session ended")
	}()

	for {
		p, err := sess.recv.Next()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case transport.IsTimeout(err):
				continue
			case errors.Is(err, io.EOF), errors.Is(err, transport.ErrClosed):
				return nil
			default:
				return err
			}
		}

		if err := sess.handle(ctx, p); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reply to %s: %w", p.Command, err)
		}
	}
}

func (sess *session) close() {
	sess.recv.Release()
	for name, sp := range sess.spools {
		sp.discard()
		delete(sess.spools, name)
	}
}

// handle runs one request and writes its replies. Only transport failures
// are returned; request failures become ERROR packets.
func (sess *session) handle(ctx context.Context, p protocol.Packet) error {
	start := time.Now()
	cmd := p.Command.String()

	lc := logger.FromContext(ctx).WithCommand(cmd)
	ctx = logger.WithContext(ctx, lc)
	ctx, span := telemetry.StartRequestSpan(ctx, cmd,
		telemetry.SessionID(sess.id),
		telemetry.Transport(string(sess.t.Type())),
		telemetry.PacketLen(len(p.Payload)))
	defer span.End()

	req, err := protocol.ParseRequest(p)
	if err == nil {
		err = sess.dispatch(ctx, req)
	}

	outcome := metrics.OutcomeOK
	if err != nil {
		var werr *writeError
		if errors.As(err, &werr) {
			telemetry.RecordError(ctx, werr.err)
			metrics.RecordRequest(sess.srv.cfg.Metrics, cmd, time.Since(start), "transport")
			return werr.err
		}

		code := codeFor(err)
		outcome = code.String()
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Request failed", logger.KeyErrorCode, code.String(), logger.Err(err))
		if werr := sess.write(protocol.ErrorPacket(code, err.Error())); werr != nil {
			return werr
		}
	}

	metrics.RecordRequest(sess.srv.cfg.Metrics, cmd, time.Since(start), outcome)
	logger.DebugCtx(ctx, "Request complete", logger.DurationMs(start))
	return nil
}

// writeError marks a failure to reach the peer, as opposed to a request
// failure that can be reported back.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

func (sess *session) write(p protocol.Packet) error {
	return protocol.WritePacket(sess.t, p, sess.srv.cfg.IOTimeout, sess.srv.cfg.Metrics)
}

// send writes p and tags failures as writeErrors.
func (sess *session) send(p protocol.Packet) error {
	if err := sess.write(p); err != nil {
		return &writeError{err: err}
	}
	return nil
}

func (sess *session) dispatch(ctx context.Context, req protocol.Request) error {
	switch r := req.(type) {
	case protocol.ListRequest:
		return sess.list(ctx)
	case protocol.UploadRequest:
		return sess.upload(ctx, r)
	case protocol.DownloadRequest:
		return sess.download(ctx, r)
	case protocol.DeleteRequest:
		return sess.delete(ctx, r)
	default:
		return fmt.Errorf("%w: %T", protocol.ErrUnknownCommand, req)
	}
}

func (sess *session) list(ctx context.Context) error {
	entries, err := sess.srv.backend.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		rec, err := e.MarshalBinary()
		if err != nil {
			return err
		}
		if err := sess.send(protocol.DataPacket(rec)); err != nil {
			return err
		}
	}
	return sess.send(protocol.OKPacket())
}

func (sess *session) upload(ctx context.Context, r protocol.UploadRequest) error {
	sp, ok := sess.spools[r.Name]
	if !ok {
		f, err := os.CreateTemp(sess.srv.cfg.SpoolDir, "distfs-upload-*")
		if err != nil {
			return &store.StoreError{Code: store.CodeWriteFailed, Message: "cannot spool upload", Name: r.Name, Err: err}
		}
		sp = &spool{f: f}
		sess.spools[r.Name] = sp
	}

	if _, err := sp.f.Write(r.Chunk); err != nil {
		sp.discard()
		delete(sess.spools, r.Name)
		return &store.StoreError{Code: store.CodeWriteFailed, Message: "cannot spool upload", Name: r.Name, Err: err}
	}
	sp.bytes += uint64(len(r.Chunk))

	if !r.Last {
		return sess.send(protocol.OKPacket())
	}

	delete(sess.spools, r.Name)
	defer sp.discard()
	if err := sp.f.Close(); err != nil {
		return &store.StoreError{Code: store.CodeWriteFailed, Message: "cannot spool upload", Name: r.Name, Err: err}
	}

	entry, err := sess.srv.backend.Upload(ctx, sp.f.Name(), store.WithName(r.Name))
	if err != nil {
		return err
	}
	logger.InfoCtx(ctx, "Upload committed",
		logger.Filename(entry.Name), logger.Offset(entry.StartOffset), logger.Size(entry.Size))
	return sess.send(protocol.OKPacket())
}

func (sess *session) download(ctx context.Context, r protocol.DownloadRequest) error {
	w := &packetWriter{sess: sess}
	if _, err := sess.srv.backend.Download(ctx, r.Name, w, nil); err != nil {
		return err
	}
	return sess.send(protocol.OKPacket())
}

func (sess *session) delete(ctx context.Context, r protocol.DeleteRequest) error {
	if err := sess.srv.backend.Delete(ctx, r.Name); err != nil {
		return err
	}
	return sess.send(protocol.OKPacket())
}

func (sp *spool) discard() {
	_ = sp.f.Close()
	_ = os.Remove(sp.f.Name())
}

// packetWriter turns writes into DATA packets of at most DataChunkSize bytes.
type packetWriter struct {
	sess *session
}

func (w *packetWriter) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		n := min(len(b), DataChunkSize)
		if err := w.sess.send(protocol.DataPacket(b[:n])); err != nil {
			return written, err
		}
		written += n
		b = b[n:]
	}
	return written, nil
}
