package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/astra-nvim/astra/internal/controlplane/handlers"
	"github.com/astra-nvim/astra/internal/controlplane/middleware"
)

// Server exposes the task manager over HTTP on a loopback address.
type Server struct {
	config *Config
	server *http.Server
}

func NewServer(config *Config, svc handlers.TaskService) *Server {
	config = config.withDefaults()

	routes := SetupRoutes(svc, &RouteConfig{
		Auth:      middleware.TokenAuthConfig{Token: config.AuthToken},
		RateLimit: config.RateLimit,
	})

	httpServer := &http.Server{
		Addr:              config.Addr,
		Handler:           routes,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	return &Server{config: config, server: httpServer}
}

func (s *Server) Addr() string {
	return s.config.Addr
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", ln.Addr()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control plane: %w", err)
	}
	return nil
}

// Start listens on the configured address and blocks until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("control plane listen %s: %w", s.config.Addr, err)
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		return err
	}
	return <-errc
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
