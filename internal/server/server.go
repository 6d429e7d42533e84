package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Server struct {
	srv *http.Server
	log *slog.Logger
}

type Options struct {
	serverAddr string
	log        *slog.Logger
}

func NewServer(handler http.Handler, opts ...Option) *Server {
	srvOpts := Options{
		serverAddr: "0.0.0.0:8080",
		log:        slog.New(&slog.JSONHandler{}),
	}

	for _, opt := range opts {
		opt(&srvOpts)
	}

	srv := &http.Server{
		Addr:              srvOpts.serverAddr,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return &Server{
		srv: srv,
		log: srvOpts.log,
	}
}

func (s *Server) Start() error {
	s.log.Info(fmt.Sprintf("Starting server on %s", s.srv.Addr))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}

	return nil
}

type Option func(s *Options)

func WithServerAddr(addr string) Option {
	return func(o *Options) {
		o.serverAddr = addr
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.log = logger
	}
}
