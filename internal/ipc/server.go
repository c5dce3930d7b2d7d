package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"printlapse/internal/daemon"
	"printlapse/internal/history"
	"printlapse/internal/logging"
)

// Server exposes daemon state via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "ipc"))

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Printlapse", &service{daemon: d}); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("remove socket", logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
}

// Status reports combined daemon state.
func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(context.Background())
	snap := status.Capture

	*resp = StatusResponse{
		Running:         status.Running,
		PID:             status.PID,
		PrinterState:    string(snap.Printer.State),
		PrinterProgress: snap.Printer.Progress,
		JobName:         snap.Printer.JobName,
		SessionID:       snap.SessionID,
		SessionManual:   snap.Manual,
		Frames:          snap.Frames,
		IntervalSeconds: snap.Interval.Seconds(),
		Finishing:       snap.Finishing,
		Burst:           snap.Burst,
		StorageRoot:     status.StorageRoot,
		StorageHealthy:  status.Storage.Healthy,
		StorageFreeMB:   status.Storage.FreeMB,
		StorageError:    status.Storage.Err,
		PendingCount:    status.PendingCount,
		LockPath:        status.LockPath,
	}
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus(dep))
	}
	return nil
}

// Sessions lists every session directory under the storage root.
func (s *service) Sessions(_ SessionsRequest, resp *SessionsResponse) error {
	infos, err := s.daemon.Sessions(context.Background())
	if err != nil {
		return err
	}
	for _, info := range infos {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			ID:         info.ID,
			Phase:      string(info.Phase),
			FrameCount: info.FrameCount,
			VideoBytes: info.VideoSize,
			Dir:        info.Dir,
		})
	}
	return nil
}

// History returns recent encode outcomes, newest first.
func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(context.Background(), req.Limit)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, HistoryEntry{
			SessionID:  entry.SessionID,
			Title:      history.DisplayTitle(entry.SessionID),
			Frames:     entry.Frames,
			VideoPath:  entry.VideoPath,
			VideoBytes: entry.VideoBytes,
			DurationMS: entry.Duration.Milliseconds(),
			Error:      entry.Error,
			CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil
}

// Encode runs one encoding scan immediately.
func (s *service) Encode(_ EncodeRequest, resp *EncodeResponse) error {
	encoded, err := s.daemon.EncodeNow(context.Background())
	if err != nil {
		return err
	}
	resp.Encoded = encoded
	return nil
}
