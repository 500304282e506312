package daemonrpc

import (
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"
)

// Server serves the daemon RPC surface on a unix socket with 0600
// permissions. Shutdown unlinks the socket file.
type Server struct {
	socketPath string
	listener   net.Listener
	grpcServer *grpc.Server
}

// NewServer binds the unix socket. A live socket at the path means
// another daemon owns it and binding fails; a dead socket file from a
// crashed run is removed.
func NewServer(service DaemonService, socketPath string) (*Server, error) {
	if _, err := os.Stat(socketPath); err == nil {
		conn, dialErr := net.Dial("unix", socketPath)
		if dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("socket %s is already in use by another daemon", socketPath)
		}
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to bind unix socket %s: %w", socketPath, err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		listener.Close()
		os.Remove(socketPath)
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	grpcServer := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	grpcServer.RegisterService(&serviceDesc, service)

	return &Server{
		socketPath: socketPath,
		listener:   listener,
		grpcServer: grpcServer,
	}, nil
}

// SocketPath reports where the server is listening
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve accepts connections until Shutdown is called
func (s *Server) Serve() error {
	if err := s.grpcServer.Serve(s.listener); err != nil {
		return fmt.Errorf("rpc server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and unlinks the socket file
func (s *Server) Shutdown() {
	s.grpcServer.GracefulStop()
	os.Remove(s.socketPath)
}
