package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camfeed/internal/api/models"
	"github.com/smazurov/camfeed/internal/events"
	"github.com/smazurov/camfeed/internal/mjpeg"
	"github.com/smazurov/camfeed/ui"
)

// Reasons a stream session ended.
const (
	EndReasonCancelled  = "cancelled"
	EndReasonClientGone = "client_gone"
	EndReasonNoFrame    = "no_frame"
)

func (s *Server) registerPageRoutes() {
	s.mux.Handle("GET /{$}", ui.Handler())
}

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "video-feed",
		Method:      http.MethodGet,
		Path:        "/video_feed",
		Summary:     "Live MJPEG stream",
		Description: "Endless multipart/x-mixed-replace stream of JPEG frames. Each client always receives the latest frame; slow clients skip frames.",
		Tags:        []string{"stream"},
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		return &huma.StreamResponse{
			Body: s.serveVideoFeed,
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/snapshot.jpg",
		Summary:     "Snapshot",
		Description: "Latest published frame as a single JPEG",
		Tags:        []string{"stream"},
		Errors:      []int{503},
	}, func(ctx context.Context, input *struct{}) (*models.SnapshotResponse, error) {
		frame, ok := s.frames.Latest()
		if !ok {
			return nil, huma.Error503ServiceUnavailable("No frame available yet")
		}
		return &models.SnapshotResponse{
			ContentType:  "image/jpeg",
			CacheControl: "no-cache",
			Body:         frame.Data,
		}, nil
	})
}

func (s *Server) serveVideoFeed(hctx huma.Context) {
	hctx.SetHeader("Content-Type", mjpeg.ContentType)
	hctx.SetHeader("Cache-Control", "no-cache")
	hctx.SetHeader("Pragma", "no-cache")
	hctx.SetHeader("Connection", "close")
	hctx.SetStatus(http.StatusOK)

	w := hctx.BodyWriter()
	if rw, ok := w.(http.ResponseWriter); ok {
		// Send headers now so the client sees the stream open before the first frame.
		_ = http.NewResponseController(rw).Flush()
	}

	opts := []mjpeg.SessionOption{
		mjpeg.WithRemoteAddr(hctx.RemoteAddr()),
		mjpeg.WithFirstFrameTimeout(s.opts.FirstFrameTimeout),
		mjpeg.WithWriteTimeout(s.opts.WriteTimeout),
	}
	if s.opts.SessionObserver != nil {
		opts = append(opts, mjpeg.WithObserver(s.opts.SessionObserver))
	}
	sess := mjpeg.NewSession(s.frames, w, opts...)

	s.addSession(sess)
	if s.opts.OnSessionStart != nil {
		s.opts.OnSessionStart()
	}
	s.publish(events.SessionStartedEvent{
		SessionID:  sess.ID(),
		RemoteAddr: hctx.RemoteAddr(),
		Timestamp:  events.Now(),
	})
	s.logger.Info("Stream session started", "session_id", sess.ID(), "remote_addr", hctx.RemoteAddr())

	err := sess.Run(hctx.Context())
	reason := endReason(err, shuttingDown(hctx.Context()))

	s.removeSession(sess)
	if s.opts.OnSessionEnd != nil {
		s.opts.OnSessionEnd(reason)
	}

	stats := sess.Stats()
	s.publish(events.SessionEndedEvent{
		SessionID:     stats.ID,
		RemoteAddr:    stats.RemoteAddr,
		Reason:        reason,
		FramesSent:    stats.FramesSent,
		FramesSkipped: stats.FramesSkipped,
		BytesSent:     stats.BytesSent,
		DurationSec:   time.Since(stats.StartedAt).Seconds(),
		Timestamp:     events.Now(),
	})
	s.logger.Info("Stream session ended",
		"session_id", stats.ID,
		"remote_addr", stats.RemoteAddr,
		"reason", reason,
		"frames_sent", stats.FramesSent,
		"frames_skipped", stats.FramesSkipped)
}

// endReason classifies how a session ended. A nil error means the request
// context was cancelled, which is a shutdown only when the server is stopping.
func endReason(err error, shutdown bool) string {
	switch {
	case errors.Is(err, mjpeg.ErrNoFrame):
		return EndReasonNoFrame
	case shutdown:
		return EndReasonCancelled
	default:
		return EndReasonClientGone
	}
}
