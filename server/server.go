// Package server exposes the browser session controller over HTTP: command
// endpoints, a health projection, the screenshot file, an SSE state stream,
// and the two collaborator services (chat proxy, mock session tracker).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	sloghttp "github.com/samber/slog-http"

	"github.com/Viraaj141413/browse-chat-buddy-main/browser"
	"github.com/Viraaj141413/browse-chat-buddy-main/subpub"
	"github.com/Viraaj141413/browse-chat-buddy-main/tracker"
)

// Controller is the browser session controller surface the HTTP layer
// drives. *browser.Controller implements it; handler tests substitute a stub.
type Controller interface {
	Status() browser.Snapshot
	Navigate(ctx context.Context, url string) (browser.Result, error)
	Search(ctx context.Context, query string) (browser.Result, error)
	Command(ctx context.Context, prompt string) (browser.Result, string, error)
	Screenshot(ctx context.Context) (browser.Result, error)
}

// ChatService generates prose responses for the chat proxy endpoint.
type ChatService interface {
	Respond(ctx context.Context, message, context_ string) (string, error)
}

// Server wires the controller and its collaborators to HTTP routes.
type Server struct {
	ctrl      Controller
	chat      ChatService // nil when no API key is configured
	tracker   *tracker.Store
	logger    *slog.Logger
	publicDir string

	stream *subpub.SubPub[browser.Snapshot]
	seq    atomic.Int64
}

// New creates a server. chat may be nil; its endpoint then reports an error
// without calling out.
func New(ctrl Controller, chat ChatService, logger *slog.Logger, publicDir string) *Server {
	return &Server{
		ctrl:      ctrl,
		chat:      chat,
		tracker:   tracker.NewStore(),
		logger:    logger,
		publicDir: publicDir,
		stream:    subpub.New[browser.Snapshot](),
	}
}

// PublishSnapshot feeds a session state change to SSE subscribers. Wired as
// the controller's OnChange hook; must not block, and subpub doesn't.
func (s *Server) PublishSnapshot(snap browser.Snapshot) {
	s.stream.Publish(s.seq.Add(1), snap)
}

// RegisterRoutes registers HTTP routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/screenshot", s.handleScreenshot) // POST or GET
	mux.HandleFunc("POST /navigate", s.handleNavigate)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /gemini", s.handleGemini)
	mux.HandleFunc("POST /api/gemini-chat", s.handleChat)
	mux.HandleFunc("POST /api/browser-automation", s.handleTracker)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET "+browser.ScreenshotPath, s.handleScreenshotFile)
}

// Start starts the HTTP server and handles the complete lifecycle.
func (s *Server) Start(port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		s.logger.Error("Failed to create listener", "error", err, "port", port)
		return err
	}
	return s.StartWithListener(listener)
}

// StartWithListener serves on the provided listener until SIGINT/SIGTERM,
// then shuts down gracefully. Blocks for the server's whole life.
func (s *Server) StartWithListener(listener net.Listener) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	// Applied in reverse order: last added = first executed.
	handler := sloghttp.New(s.logger)(mux)
	handler = corsMiddleware(handler)

	httpServer := &http.Server{Handler: handler}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	serverErrCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", "port", actualPort, "url", fmt.Sprintf("http://localhost:%d", actualPort))
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrCh:
		s.logger.Error("Server failed", "error", err)
		return err
	case <-quit:
		s.logger.Info("Shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return err
	}

	s.logger.Info("Server exited")
	return nil
}

// corsMiddleware mirrors the original deployment: the front-end is served
// from a different origin and polls these endpoints directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, content-type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
