package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server is the HTTP front end for the toolchain: assemble and run HOIL
// programs over JSON, with a websocket endpoint for streamed execution.
type Server struct {
	port    int
	httpSrv *http.Server

	version string
	commit  string
	date    string
}

// NewServer creates a server listening on the given port
func NewServer(port int) *Server {
	return NewServerWithVersion(port, "dev", "unknown", "unknown")
}

// NewServerWithVersion creates a server carrying build information
func NewServerWithVersion(port int, version, commit, date string) *Server {
	s := &Server{
		port:    port,
		version: version,
		commit:  commit,
		date:    date,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/assemble", s.handleAssemble)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/ws/run", s.handleRunStream)

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the route table for tests
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start runs the server until Shutdown or a listener error
func (s *Server) Start() error {
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
