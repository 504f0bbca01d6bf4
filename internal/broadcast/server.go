package broadcast

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Defaults for the embedded broker.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 5555
)

// ServerOptions configures the embedded broker.
type ServerOptions struct {
	Host   string
	Port   int
	Name   string
	Logger *slog.Logger

	// MaxPending bounds the bytes queued for one subscriber before the broker
	// treats it as a slow consumer and drops it.
	MaxPending int64
}

// Server is the embedded NATS broker subscribers connect to.
type Server struct {
	ns     *server.Server
	opts   ServerOptions
	logger *slog.Logger
}

// NewServer creates a broker that is not yet listening.
func NewServer(opts ServerOptions) *Server {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Name == "" {
		opts.Name = "camwatch"
	}
	if opts.MaxPending == 0 {
		opts.MaxPending = 8 * 1024 * 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger.With("component", "broker")}
}

// Start binds the port and waits until the broker accepts connections.
func (s *Server) Start() error {
	ns, err := server.NewServer(&server.Options{
		Host:           s.opts.Host,
		Port:           s.opts.Port,
		ServerName:     s.opts.Name,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
		MaxPayload:     4 * 1024 * 1024, // snapshots ride inside events
		MaxPending:     s.opts.MaxPending,
		WriteDeadline:  2 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create broker: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return fmt.Errorf("broker failed to listen on %s within 5 seconds", s.Addr())
	}

	s.ns = ns
	s.logger.Info("Broker listening", "addr", s.Addr(), "url", s.ClientURL())
	return nil
}

// Stop shuts the broker down, disconnecting all subscribers.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping broker")
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// ClientURL is the URL in-process clients should dial.
func (s *Server) ClientURL() string {
	if s.ns == nil {
		host := s.opts.Host
		if host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		return "nats://" + net.JoinHostPort(host, strconv.Itoa(s.opts.Port))
	}
	return s.ns.ClientURL()
}

// IsRunning reports whether the broker accepts connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// NumClients returns the number of connected clients, the publisher included.
func (s *Server) NumClients() int {
	if s.ns == nil {
		return 0
	}
	return s.ns.NumClients()
}

// NumSubscriptions returns the number of subscriptions on the broker,
// including the broker's internal ones.
func (s *Server) NumSubscriptions() int {
	if s.ns == nil {
		return 0
	}
	return int(s.ns.NumSubscriptions())
}
