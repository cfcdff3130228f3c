package mjpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/camfeed/internal/broadcast"
	"github.com/smazurov/camfeed/internal/logging"
)

var (
	// ErrClientGone is returned by Run when writing to the client fails.
	ErrClientGone = errors.New("client disconnected")
	// ErrNoFrame is returned by Run when no first frame arrives within the
	// configured first-frame timeout.
	ErrNoFrame = errors.New("no frame available")
)

// FrameWaiter is the part of the broadcaster a session consumes.
type FrameWaiter interface {
	WaitForNext(ctx context.Context, lastSeen uint64) (*broadcast.Frame, error)
}

// Observer receives per-frame notifications from a session.
type Observer interface {
	FrameSent(sessionID string, bytes int, skipped uint64)
}

// Stats is a point-in-time copy of a session's counters.
type Stats struct {
	ID            string    `json:"id"`
	RemoteAddr    string    `json:"remote_addr"`
	StartedAt     time.Time `json:"started_at"`
	LastSeq       uint64    `json:"last_seq"`
	FramesSent    uint64    `json:"frames_sent"`
	FramesSkipped uint64    `json:"frames_skipped"`
	BytesSent     uint64    `json:"bytes_sent"`
}

// Session drives one client's MJPEG stream.
type Session struct {
	id                string
	remoteAddr        string
	source            FrameWaiter
	w                 io.Writer
	firstFrameTimeout time.Duration
	writeTimeout      time.Duration
	observer          Observer
	logger            logging.Logger
	startedAt         time.Time

	lastSeen      atomic.Uint64
	framesSent    atomic.Uint64
	framesSkipped atomic.Uint64
	bytesSent     atomic.Uint64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRemoteAddr records the client address for logs and stats.
func WithRemoteAddr(addr string) SessionOption {
	return func(s *Session) {
		s.remoteAddr = addr
	}
}

// WithFirstFrameTimeout ends the session with ErrNoFrame if nothing is
// published within d. Zero waits forever.
func WithFirstFrameTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.firstFrameTimeout = d
	}
}

// WithWriteTimeout sets a per-part write deadline when the sink is an
// http.ResponseWriter. Zero disables it.
func WithWriteTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.writeTimeout = d
	}
}

// WithObserver registers an observer for sent frames.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observer = o
	}
}

// WithLogger overrides the session logger.
func WithLogger(l logging.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates a session that reads from source and writes multipart
// chunks to w.
func NewSession(source FrameWaiter, w io.Writer, opts ...SessionOption) *Session {
	s := &Session{
		id:        uuid.NewString(),
		source:    source,
		w:         w,
		logger:    logging.GetLogger("mjpeg"),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		ID:            s.id,
		RemoteAddr:    s.remoteAddr,
		StartedAt:     s.startedAt,
		LastSeq:       s.lastSeen.Load(),
		FramesSent:    s.framesSent.Load(),
		FramesSkipped: s.framesSkipped.Load(),
		BytesSent:     s.bytesSent.Load(),
	}
}

// Run streams frames until ctx is done or the client write fails.
// It returns nil on cancellation, ErrClientGone on a failed write and
// ErrNoFrame when the first-frame timeout expires.
func (s *Session) Run(ctx context.Context) error {
	var rc *http.ResponseController
	if rw, ok := s.w.(http.ResponseWriter); ok {
		rc = http.NewResponseController(rw)
	}

	for {
		frame, err := s.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		last := s.lastSeen.Load()
		var skipped uint64
		if last > 0 {
			skipped = frame.Seq - last - 1
		}
		s.lastSeen.Store(frame.Seq)

		if rc != nil && s.writeTimeout > 0 {
			_ = rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}

		n, err := WritePart(s.w, frame.Data)
		if err == nil && rc != nil {
			if flushErr := rc.Flush(); flushErr != nil && !errors.Is(flushErr, http.ErrNotSupported) {
				err = flushErr
			}
		}
		if err != nil {
			s.logger.Debug("Write failed", "session_id", s.id, "error", err)
			return fmt.Errorf("%w: %w", ErrClientGone, err)
		}

		s.framesSent.Add(1)
		s.framesSkipped.Add(skipped)
		s.bytesSent.Add(uint64(n))
		if s.observer != nil {
			s.observer.FrameSent(s.id, n, skipped)
		}
	}
}

// next waits for the next frame, applying the first-frame timeout when no
// frame has been sent yet.
func (s *Session) next(ctx context.Context) (*broadcast.Frame, error) {
	last := s.lastSeen.Load()
	if last > 0 || s.firstFrameTimeout <= 0 {
		return s.source.WaitForNext(ctx, last)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.firstFrameTimeout)
	defer cancel()

	frame, err := s.source.WaitForNext(waitCtx, last)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrNoFrame
	}
	return frame, err
}
