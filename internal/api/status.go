package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camfeed/internal/api/models"
	"github.com/smazurov/camfeed/internal/mjpeg"
	"github.com/smazurov/camfeed/internal/process"
	"github.com/smazurov/camfeed/internal/version"
)

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check service health and capture status",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{Body: s.health()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/stream",
		Summary:     "Stream status",
		Description: "Broadcaster generation, latest frame, connected clients and capture settings",
		Tags:        []string{"stream"},
	}, func(ctx context.Context, input *struct{}) (*models.StreamResponse, error) {
		return &models.StreamResponse{Body: s.streamStatus()}, nil
	})
}

func (s *Server) health() models.HealthData {
	data := models.HealthData{
		Status:         "ok",
		Message:        "Streaming",
		Generation:     s.frames.Generation(),
		ActiveSessions: s.active.Load(),
		SourceState:    string(process.StateIdle),
	}
	if s.opts.Source != nil {
		data.SourceState = string(s.opts.Source.Info().State)
	}

	switch {
	case data.SourceState == string(process.StateError):
		data.Status = "degraded"
		data.Message = "Capture process failed"
	case data.Generation == 0:
		data.Status = "waiting"
		data.Message = "Waiting for the first frame"
	}
	return data
}

func (s *Server) streamStatus() models.StreamData {
	data := models.StreamData{
		Generation:     s.frames.Generation(),
		ActiveSessions: s.active.Load(),
		Sessions:       s.sessionStats(),
	}
	slices.SortFunc(data.Sessions, func(a, b mjpeg.Stats) int {
		return a.StartedAt.Compare(b.StartedAt)
	})

	if frame, ok := s.frames.Latest(); ok {
		data.HasFrame = true
		data.LastFrameSize = len(frame.Data)
		data.LastFrameAgeMs = time.Since(frame.CapturedAt).Milliseconds()
	}

	if src := s.opts.Source; src != nil {
		info := src.Info()
		settings := src.Settings()
		data.Source = &models.SourceData{
			Name:         src.Name(),
			State:        string(info.State),
			PID:          info.PID,
			StartedAt:    info.StartedAt,
			RestartCount: info.RestartCount,
			Resolution:   settings.Resolution(),
			Framerate:    settings.Framerate,
			Quality:      settings.Quality,
			Saturation:   settings.Saturation,
			TestPattern:  settings.TestPattern,
		}
	}
	return data
}
