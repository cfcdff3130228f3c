package camera

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/camfeed/internal/ffmpeg"
	"github.com/smazurov/camfeed/internal/logging"
	"github.com/smazurov/camfeed/internal/mjpeg"
	"github.com/smazurov/camfeed/internal/process"
)

// StateFunc is called when the capture process changes state.
type StateFunc func(source string, oldState, newState process.State)

// FrameFunc is called after every published frame.
type FrameFunc func(seq uint64, size int)

// FFmpegSource captures frames with an ffmpeg subprocess writing a JPEG
// stream to stdout.
type FFmpegSource struct {
	logger    logging.Logger
	probe     ProbeFunc
	onState   StateFunc
	onFrame   FrameFunc
	graceful  time.Duration
	killAfter time.Duration
	// removalGrace is how long an ffmpeg exit waits for the matching
	// unplug notice before it counts as a capture failure.
	removalGrace time.Duration

	mu          sync.Mutex
	settings    Settings
	inputFormat string
	proc        *process.Process

	lastFrame  atomic.Int64
	deviceGone atomic.Bool
	removed    chan struct{}
	reattach   chan struct{}
}

// Option configures an FFmpegSource.
type Option func(*FFmpegSource)

// WithLogger overrides the source logger.
func WithLogger(l logging.Logger) Option {
	return func(s *FFmpegSource) {
		s.logger = l
	}
}

// WithProbe replaces the device probe.
func WithProbe(p ProbeFunc) Option {
	return func(s *FFmpegSource) {
		s.probe = p
	}
}

// WithStateObserver registers a process state callback.
func WithStateObserver(fn StateFunc) Option {
	return func(s *FFmpegSource) {
		s.onState = fn
	}
}

// WithFrameObserver registers a per-frame callback.
func WithFrameObserver(fn FrameFunc) Option {
	return func(s *FFmpegSource) {
		s.onFrame = fn
	}
}

// WithShutdownTimeouts sets how long ffmpeg gets to exit after SIGINT and
// after SIGKILL.
func WithShutdownTimeouts(graceful, kill time.Duration) Option {
	return func(s *FFmpegSource) {
		s.graceful = graceful
		s.killAfter = kill
	}
}

// WithRemovalGrace sets how long an unexpected ffmpeg exit waits for a
// device removal notice. Zero treats every exit as a failure unless the
// removal was already reported.
func WithRemovalGrace(d time.Duration) Option {
	return func(s *FFmpegSource) {
		s.removalGrace = d
	}
}

// NewFFmpegSource validates settings and creates a source.
func NewFFmpegSource(settings Settings, opts ...Option) (*FFmpegSource, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s := &FFmpegSource{
		logger:    logging.GetLogger("camera"),
		probe:     ProbeDevice,
		settings:  settings,
		graceful:     5 * time.Second,
		killAfter:    5 * time.Second,
		removalGrace: 2 * time.Second,
		removed:      make(chan struct{}, 1),
		reattach:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name identifies the source in logs, metrics and events.
func (s *FFmpegSource) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sourceName(s.settings)
}

func sourceName(settings Settings) string {
	if settings.TestPattern {
		return "testsrc"
	}
	return "v4l2:" + settings.Device
}

// Settings returns the active settings.
func (s *FFmpegSource) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Info returns the capture process state.
func (s *FFmpegSource) Info() process.Info {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return process.Info{ID: "camera", State: process.StateIdle}
	}
	return proc.Info()
}

// LastFrameAt returns when the last frame was published, or the zero time.
func (s *FFmpegSource) LastFrameAt() time.Time {
	if ns := s.lastFrame.Load(); ns > 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

func (s *FFmpegSource) resolveInput(settings Settings) (string, error) {
	if settings.TestPattern {
		return "", nil
	}
	return s.probe(settings.Device)
}

// Run starts ffmpeg and publishes every frame it produces until ctx is
// cancelled, the process exits or capture stalls.
func (s *FFmpegSource) Run(ctx context.Context, pub Publisher) error {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()

	inputFormat, err := s.resolveInput(settings)
	if err != nil {
		return err
	}

	args := ffmpeg.BuildArgs(settings.params(inputFormat))
	proc := process.NewProcess("camera", args, s.logger)
	proc.SetTimeouts(s.graceful, s.killAfter)
	proc.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
	proc.SetStdoutConsumer(func(r io.Reader) error {
		return s.consume(r, pub)
	})
	name := sourceName(settings)
	proc.OnStateChange(func(_ string, oldState, newState process.State) {
		s.logger.Debug("Capture state changed", "source", name, "from", oldState, "to", newState)
		if s.onState != nil {
			s.onState(name, oldState, newState)
		}
	})

	s.mu.Lock()
	s.inputFormat = inputFormat
	s.proc = proc
	s.mu.Unlock()

	s.logger.Info("Starting capture", "source", name, "input_format", inputFormat,
		"resolution", settings.Resolution(), "framerate", settings.Framerate, "command", ffmpeg.BuildCommand(settings.params(inputFormat)))

	s.lastFrame.Store(time.Now().UnixNano())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			exitCode := proc.RunWithRestart(gctx)
			if gctx.Err() != nil {
				return nil
			}
			if s.Settings().TestPattern || !s.awaitDevice(gctx) {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: exit code %d", ErrProducerExited, exitCode)
			}
			s.lastFrame.Store(time.Now().UnixNano())
			s.logger.Info("Capture device is back, restarting capture", "source", sourceName(s.Settings()))
		}
	})

	g.Go(func() error {
		return s.watchdog(gctx)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// consume splits stdout into frames and publishes each one.
func (s *FFmpegSource) consume(r io.Reader, pub Publisher) error {
	s.lastFrame.Store(time.Now().UnixNano())

	scanner := mjpeg.NewFrameScanner(r)
	for scanner.Scan() {
		// The scanner reuses its buffer; the broadcaster keeps the frame.
		frame := bytes.Clone(scanner.Bytes())
		seq := pub.Publish(frame)
		s.lastFrame.Store(time.Now().UnixNano())
		if s.onFrame != nil {
			s.onFrame(seq, len(frame))
		}
	}
	return scanner.Err()
}

// watchdog fails capture when no frame arrives within the stall timeout.
// The timeout is re-read on every tick so reloads apply to running capture.
func (s *FFmpegSource) watchdog(ctx context.Context) error {
	stall := s.Settings().StallTimeout
	ticker := time.NewTicker(watchdogInterval(stall))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if current := s.Settings().StallTimeout; current != stall {
				stall = current
				ticker.Reset(watchdogInterval(stall))
			}
			if stall <= 0 || s.deviceGone.Load() {
				continue
			}
			if idle := time.Since(s.LastFrameAt()); idle > stall {
				s.logger.Error("No frames from capture process", "idle", idle.Round(time.Millisecond), "stall_timeout", stall)
				return fmt.Errorf("%w: no frame for %s", ErrStalled, idle.Round(time.Millisecond))
			}
		}
	}
}

func watchdogInterval(stall time.Duration) time.Duration {
	if stall <= 0 {
		return 250 * time.Millisecond
	}
	return max(stall/4, 10*time.Millisecond)
}

// DeviceRemoved marks the capture device as unplugged. While it is gone an
// ffmpeg exit parks capture until DeviceAdded instead of failing it.
func (s *FFmpegSource) DeviceRemoved(device string) {
	if s.Settings().TestPattern {
		return
	}
	drain(s.reattach)
	s.deviceGone.Store(true)
	select {
	case s.removed <- struct{}{}:
	default:
	}
	s.logger.Warn("Capture device unplugged, waiting for it to return", "device", device)
}

// DeviceAdded resumes capture parked by DeviceRemoved. It reports false
// when the device was not marked as gone.
func (s *FFmpegSource) DeviceAdded(device string) bool {
	if !s.deviceGone.CompareAndSwap(true, false) {
		return false
	}
	select {
	case s.reattach <- struct{}{}:
	default:
	}
	s.logger.Info("Capture device plugged back in", "device", device)
	return true
}

// DeviceMissing reports whether the capture device is unplugged.
func (s *FFmpegSource) DeviceMissing() bool {
	return s.deviceGone.Load()
}

// awaitDevice decides what an unexpected ffmpeg exit means. It returns true
// once an unplugged device is back and false when the exit is a failure.
func (s *FFmpegSource) awaitDevice(ctx context.Context) bool {
	if !s.deviceGone.Load() {
		if s.removalGrace <= 0 {
			return false
		}
		// ffmpeg usually sees the unplug before the uevent arrives.
		timer := time.NewTimer(s.removalGrace)
		select {
		case <-s.removed:
			timer.Stop()
		case <-timer.C:
			return false
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}

	select {
	case <-s.reattach:
	case <-ctx.Done():
		return false
	}
	drain(s.removed)
	return true
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

// Reconfigure applies new settings. When capture is running and a setting
// that affects the ffmpeg command changed, the process is restarted with
// the new command. It reports whether a restart was requested.
func (s *FFmpegSource) Reconfigure(settings Settings) (bool, error) {
	if err := settings.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	old := s.settings
	inputFormat := s.inputFormat
	proc := s.proc
	s.mu.Unlock()

	changed := old.Diff(settings)
	if len(changed) == 0 {
		return false, nil
	}

	if settings.Device != old.Device || settings.TestPattern != old.TestPattern {
		var err error
		if inputFormat, err = s.resolveInput(settings); err != nil {
			return false, err
		}
	}

	oldArgs := ffmpeg.BuildArgs(old.params(inputFormat))
	newArgs := ffmpeg.BuildArgs(settings.params(inputFormat))

	s.mu.Lock()
	s.settings = settings
	s.inputFormat = inputFormat
	s.mu.Unlock()

	s.logger.Info("Camera settings changed", "changed", changed)

	if proc == nil || slices.Equal(oldArgs, newArgs) {
		return false, nil
	}
	proc.RequestRestart(newArgs)
	return true, nil
}

// Restart asks the running capture process to start over with its current
// command. It reports false when capture has not started.
func (s *FFmpegSource) Restart(reason string) bool {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return false
	}
	s.logger.Info("Capture restart requested", "reason", reason)
	proc.RequestRestart(proc.Args())
	return true
}
