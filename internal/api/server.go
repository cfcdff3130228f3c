package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camfeed/internal/broadcast"
	"github.com/smazurov/camfeed/internal/camera"
	"github.com/smazurov/camfeed/internal/events"
	"github.com/smazurov/camfeed/internal/logging"
	"github.com/smazurov/camfeed/internal/mjpeg"
	"github.com/smazurov/camfeed/internal/process"
	"github.com/smazurov/camfeed/internal/version"
)

// FrameStore is the part of the broadcaster the HTTP layer reads from.
type FrameStore interface {
	mjpeg.FrameWaiter
	Latest() (*broadcast.Frame, bool)
	Generation() uint64
}

// SourceStatus reports the state of the frame source.
type SourceStatus interface {
	Name() string
	Info() process.Info
	Settings() camera.Settings
	LastFrameAt() time.Time
}

// Options configures the API server.
type Options struct {
	Frames            FrameStore
	Source            SourceStatus
	EventBus          *events.Bus
	FirstFrameTimeout time.Duration
	WriteTimeout      time.Duration
	// SessionObserver receives per-frame callbacks from every stream session.
	SessionObserver mjpeg.Observer
	// PrometheusHandler is mounted at /metrics when non-nil.
	PrometheusHandler http.Handler
	// OnSessionStart and OnSessionEnd hook metrics into the session lifecycle.
	OnSessionStart func()
	OnSessionEnd   func(reason string)
}

// Server serves the MJPEG stream and the status API.
type Server struct {
	api      huma.API
	mux      *http.ServeMux
	opts     Options
	frames   FrameStore
	eventBus *events.Bus
	logger   *slog.Logger

	sessionsMu sync.Mutex
	sessions   map[string]*mjpeg.Session
	active     atomic.Int64
}

// NewServer creates a server with all routes registered.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camfeed API", version.Get().Version)
	config.Info.Description = "Live MJPEG camera stream with status and events"
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	s := &Server{
		api:      api,
		mux:      mux,
		opts:     *opts,
		frames:   opts.Frames,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
		sessions: make(map[string]*mjpeg.Session),
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s.registerRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the huma API for registering additional routes.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// ActiveSessions returns the number of clients currently streaming.
func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

// Run serves on addr until ctx is done. Closing the server cancels every
// request context, which ends open stream sessions.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithValue(ctx, serverContextKey{}, ctx)
		},
	}

	s.logger.Info("Starting camfeed API server", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Stopping API server")
	if err := httpServer.Close(); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type serverContextKey struct{}

// shuttingDown reports whether the server that accepted the request behind
// ctx is stopping. Requests served outside Serve never are.
func shuttingDown(ctx context.Context) bool {
	base, ok := ctx.Value(serverContextKey{}).(context.Context)
	return ok && base.Err() != nil
}

func (s *Server) registerRoutes() {
	s.registerPageRoutes()
	s.registerStreamRoutes()
	s.registerStatusRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}

func (s *Server) addSession(sess *mjpeg.Session) {
	s.sessionsMu.Lock()
	s.sessions[sess.ID()] = sess
	s.sessionsMu.Unlock()
	s.active.Add(1)
}

func (s *Server) removeSession(sess *mjpeg.Session) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.ID())
	s.sessionsMu.Unlock()
	s.active.Add(-1)
}

func (s *Server) sessionStats() []mjpeg.Stats {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	stats := make([]mjpeg.Stats, 0, len(s.sessions))
	for _, sess := range s.sessions {
		stats = append(stats, sess.Stats())
	}
	return stats
}

func (s *Server) publish(ev events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ev)
	}
}
