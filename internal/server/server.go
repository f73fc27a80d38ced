package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/job"
)

type Server struct {
	srv *http.Server
}

// New creates a server. baseCtx is the base context of every request, so
// cancelling it stops synchronous searches during shutdown.
func New(baseCtx context.Context, port string, jobSvc *job.Service, corsOrigins []string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: newMux(jobSvc, corsOrigins),
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadTimeout: 15 * time.Second,
			// synchronous searches over many channels take minutes
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}
