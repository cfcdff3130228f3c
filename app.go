package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/camfeed/internal/api"
	"github.com/smazurov/camfeed/internal/broadcast"
	"github.com/smazurov/camfeed/internal/camera"
	"github.com/smazurov/camfeed/internal/config"
	"github.com/smazurov/camfeed/internal/events"
	"github.com/smazurov/camfeed/internal/logging"
	"github.com/smazurov/camfeed/internal/metrics"
	"github.com/smazurov/camfeed/internal/metrics/exporters"
	"github.com/smazurov/camfeed/internal/monitoring"
	"github.com/smazurov/camfeed/internal/nats"
	"github.com/smazurov/camfeed/internal/process"
	"github.com/smazurov/camfeed/internal/systemd"
)

// app owns the lifetime of the streaming service.
type app struct {
	opts   *Options
	root   *cobra.Command
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// reloadedConfig is what the config watcher hands to reload handlers.
type reloadedConfig struct {
	camera  camera.Settings
	logging logging.Config
}

func newApp(opts *Options, root *cobra.Command) *app {
	ctx, cancel := context.WithCancel(context.Background())
	return &app{
		opts:   opts,
		root:   root,
		logger: logging.GetLogger("main"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// stop cancels the service and waits up to timeout for capture to exit.
func (a *app) stop(timeout time.Duration) {
	a.cancel()
	select {
	case <-a.done:
	case <-time.After(timeout):
		a.logger.Warn("Shutdown timed out", "timeout", timeout)
	}
}

// run starts capture, the HTTP server and the optional integrations, and
// blocks until the app is stopped or capture fails.
func (a *app) run() error {
	defer close(a.done)

	settings, err := settingsFromOptions(a.opts)
	if err != nil {
		return err
	}
	streamOpts, err := streamOptionsFromOptions(a.opts)
	if err != nil {
		return err
	}

	notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
	frames := broadcast.New()
	eventBus := events.New()
	defer func() { _ = eventBus.Close() }()

	var logSeq atomic.Uint64
	logging.SetLogCallback(func(e logging.LogEntry) {
		eventBus.Publish(events.LogEntryEvent{
			Seq:        logSeq.Add(1),
			Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
			Level:      e.Level,
			Module:     e.Module,
			Message:    e.Message,
			Attributes: e.Attributes,
		})
	})
	defer logging.SetLogCallback(nil)

	source, err := camera.NewFFmpegSource(settings,
		camera.WithLogger(logging.GetLogger("camera")),
		camera.WithStateObserver(func(name string, oldState, newState process.State) {
			metrics.SetSourceState(name, string(newState))
			eventBus.Publish(events.SourceStateChangedEvent{
				Source:    name,
				OldState:  string(oldState),
				State:     string(newState),
				Timestamp: events.Now(),
			})
		}),
		camera.WithFrameObserver(metrics.FramePublished),
	)
	if err != nil {
		return err
	}
	metrics.SetSourceState(source.Name(), string(process.StateIdle))

	apiOpts := &api.Options{
		Frames:            frames,
		Source:            source,
		EventBus:          eventBus,
		FirstFrameTimeout: streamOpts.firstFrameTimeout,
		WriteTimeout:      streamOpts.writeTimeout,
		SessionObserver:   metrics.Observer{},
		OnSessionStart:    metrics.SessionStarted,
		OnSessionEnd:      metrics.SessionEnded,
	}
	if a.opts.MetricsEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
	}
	server := api.NewServer(apiOpts)

	sseExporter := exporters.NewSSEExporter(eventBus, streamOpts.metricsInterval)
	sseExporter.Start(a.ctx)
	defer sseExporter.Stop()

	restartSource := func(reason string) bool {
		if !source.Restart(reason) {
			return false
		}
		metrics.SourceRestarted(source.Name())
		return true
	}
	stopNATS := a.startNATS(eventBus, restartSource)
	defer stopNATS()

	if a.opts.ConfigWatch && a.opts.Config != "" {
		if _, statErr := os.Stat(a.opts.Config); statErr == nil {
			watcher := config.NewConfigWatcher(a.opts.Config, a.loadReloadedConfig, logging.GetLogger("config"))
			watcher.OnReload(func(cfg reloadedConfig) {
				a.applyReload(cfg, source, eventBus, notifier)
			})
			if watchErr := watcher.Start(a.ctx); watchErr != nil {
				a.logger.Warn("Config watching disabled", "error", watchErr)
			} else {
				defer func() { _ = watcher.Stop() }()
			}
		}
	}

	addr := net.JoinHostPort(a.opts.ServerHost, strconv.Itoa(a.opts.ServerPort))
	g, gctx := errgroup.WithContext(a.ctx)

	g.Go(func() error {
		if runErr := source.Run(gctx, frames); runErr != nil {
			return fmt.Errorf("capture %s: %w", source.Name(), runErr)
		}
		return nil
	})
	g.Go(func() error {
		return server.Run(gctx, addr)
	})
	if monitor, monErr := monitoring.NewDeviceMonitor(
		func() string {
			if current := source.Settings(); !current.TestPattern {
				return current.Device
			}
			return ""
		},
		func(device string) {
			if source.DeviceAdded(device) {
				metrics.SourceRestarted(source.Name())
				return
			}
			restartSource("device reconnected: " + device)
		},
		eventBus,
	); monErr != nil {
		a.logger.Warn("Hotplug monitoring disabled", "error", monErr)
	} else {
		monitor.OnRemove = source.DeviceRemoved
		g.Go(func() error {
			if runErr := monitor.Run(gctx); runErr != nil {
				a.logger.Warn("Hotplug monitoring stopped", "error", runErr)
			}
			return nil
		})
	}
	g.Go(func() error {
		notifier.RunWatchdog(gctx, func() bool {
			return source.DeviceMissing() || sourceHealthy(source, source.Settings().StallTimeout)
		})
		return nil
	})

	notifier.Ready()
	notifier.Status(fmt.Sprintf("Streaming %s on %s", source.Name(), addr))

	err = g.Wait()
	notifier.Stopping()
	if err != nil {
		if errors.Is(err, camera.ErrStalled) || errors.Is(err, camera.ErrProducerExited) {
			a.logger.Error("Frame producer failed", "source", source.Name(), "error", err)
		}
		return err
	}
	a.logger.Info("Stopped")
	return nil
}

// startNATS starts the embedded server and the event relay when
// configured. NATS problems are logged and never stop the stream.
func (a *app) startNATS(eventBus *events.Bus, onRestart nats.RestartFunc) func() {
	var stops []func()
	stopAll := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	url := a.opts.NatsURL
	if a.opts.NatsEmbedded {
		ns := nats.NewServer(nats.ServerOptions{Port: a.opts.NatsPort, Logger: logging.GetLogger("nats")})
		if err := ns.Start(); err != nil {
			a.logger.Warn("Embedded NATS server not started", "error", err)
		} else {
			stops = append(stops, ns.Stop)
			if url == "" {
				url = ns.ClientURL()
			}
		}
	}

	if url == "" {
		return stopAll
	}

	relay := nats.NewRelay(url, a.opts.NatsInstance, eventBus, onRestart, logging.GetLogger("nats"))
	if err := relay.Start(); err != nil {
		a.logger.Warn("NATS relay not started", "url", url, "error", err)
		return stopAll
	}
	stops = append(stops, relay.Stop)
	return stopAll
}

// loadReloadedConfig re-reads the config file on top of the startup options
// so flags keep their precedence.
func (a *app) loadReloadedConfig(path string) (reloadedConfig, error) {
	opts := *a.opts
	opts.Config = path
	if err := config.LoadConfig(&opts, a.root); err != nil {
		return reloadedConfig{}, err
	}
	settings, err := settingsFromOptions(&opts)
	if err != nil {
		return reloadedConfig{}, err
	}
	return reloadedConfig{camera: settings, logging: loggingConfig(&opts)}, nil
}

func (a *app) applyReload(cfg reloadedConfig, source *camera.FFmpegSource, eventBus *events.Bus, notifier *systemd.Notifier) {
	for module, level := range cfg.logging.Modules {
		logging.SetModuleLevel(module, level)
	}

	changed := source.Settings().Diff(cfg.camera)
	if len(changed) == 0 {
		a.logger.Debug("Config reloaded, camera settings unchanged")
		return
	}

	notifier.Reloading()
	defer notifier.Ready()

	restarted, err := source.Reconfigure(cfg.camera)
	if err != nil {
		a.logger.Error("Failed to apply camera settings", "changed", changed, "error", err)
		return
	}
	if restarted {
		metrics.SourceRestarted(source.Name())
	}
	a.logger.Info("Config reloaded", "changed", changed, "restarted", restarted)
	eventBus.Publish(events.ConfigReloadedEvent{
		Changed:   changed,
		Restarted: restarted,
		Timestamp: events.Now(),
	})
}

// sourceHealthy feeds the systemd watchdog: capture must not be in the
// error state or silent for longer than the stall timeout.
func sourceHealthy(source api.SourceStatus, stall time.Duration) bool {
	if source.Info().State == process.StateError {
		return false
	}
	if stall <= 0 {
		return true
	}
	last := source.LastFrameAt()
	return last.IsZero() || time.Since(last) <= stall
}

// streamOptions are the parsed duration settings of the HTTP layer.
type streamOptions struct {
	firstFrameTimeout time.Duration
	writeTimeout      time.Duration
	metricsInterval   time.Duration
}

func streamOptionsFromOptions(opts *Options) (streamOptions, error) {
	var so streamOptions
	var err error
	if so.firstFrameTimeout, err = parseDuration("stream.first_frame_timeout", opts.StreamFirstFrameTimeout); err != nil {
		return so, err
	}
	if so.writeTimeout, err = parseDuration("server.write_timeout", opts.ServerWriteTimeout); err != nil {
		return so, err
	}
	if so.metricsInterval, err = parseDuration("metrics.sse_interval", opts.MetricsSSEInterval); err != nil {
		return so, err
	}
	return so, nil
}

func settingsFromOptions(opts *Options) (camera.Settings, error) {
	s := camera.DefaultSettings()
	s.Device = opts.CameraDevice
	if err := s.ParseResolution(opts.CameraResolution); err != nil {
		return s, err
	}
	s.Framerate = opts.CameraFramerate
	s.Saturation = opts.CameraSaturation
	s.Quality = opts.CameraQuality
	s.TestPattern = opts.CameraTestPattern
	s.FFmpegPath = opts.CameraFfmpegPath

	stall, err := parseDuration("camera.stall_timeout", opts.CameraStallTimeout)
	if err != nil {
		return s, err
	}
	s.StallTimeout = stall
	return s, s.Validate()
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, value)
	}
	return d, nil
}
