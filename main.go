package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camfeed/cmd"
	"github.com/smazurov/camfeed/internal/config"
	"github.com/smazurov/camfeed/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"camfeed.toml"`

	// Server settings
	ServerHost         string `help:"Address to bind" default:"0.0.0.0" toml:"server.host" env:"SERVER_HOST"`
	ServerPort         int    `help:"Port to listen on" short:"p" default:"5000" toml:"server.port" env:"SERVER_PORT"`
	ServerWriteTimeout string `help:"Per-frame write deadline for stream clients (0 disables)" default:"10s" toml:"server.write_timeout" env:"SERVER_WRITE_TIMEOUT"`

	// Camera settings
	CameraDevice       string `help:"V4L2 capture device" default:"/dev/video0" toml:"camera.device" env:"CAMERA_DEVICE"`
	CameraResolution   string `help:"Capture resolution WIDTHxHEIGHT" default:"640x480" toml:"camera.resolution" env:"CAMERA_RESOLUTION"`
	CameraFramerate    int    `help:"Capture framerate" default:"30" toml:"camera.framerate" env:"CAMERA_FRAMERATE"`
	CameraSaturation   string `help:"Saturation filter value (empty leaves the image untouched)" default:"" toml:"camera.saturation" env:"CAMERA_SATURATION"`
	CameraQuality      int    `help:"MJPEG quality 2-31, lower is better (0 uses the encoder default)" default:"5" toml:"camera.quality" env:"CAMERA_QUALITY"`
	CameraTestPattern  bool   `help:"Capture a synthetic test pattern instead of a device" default:"false" toml:"camera.test_pattern" env:"CAMERA_TEST_PATTERN"`
	CameraFfmpegPath   string `help:"Path to the ffmpeg binary" default:"ffmpeg" toml:"camera.ffmpeg_path" env:"CAMERA_FFMPEG_PATH"`
	CameraStallTimeout string `help:"Fail when no frame arrives for this long (0 disables)" default:"10s" toml:"camera.stall_timeout" env:"CAMERA_STALL_TIMEOUT"`

	// Stream settings
	StreamFirstFrameTimeout string `help:"Close a client that gets no first frame within this time (0 waits forever)" default:"0s" toml:"stream.first_frame_timeout" env:"STREAM_FIRST_FRAME_TIMEOUT"`

	// Metrics settings
	MetricsEnabled     bool   `help:"Serve Prometheus metrics at /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	MetricsSSEInterval string `help:"Interval of stream-metrics events on /api/events" default:"5s" toml:"metrics.sse_interval" env:"METRICS_SSE_INTERVAL"`

	// Config settings
	ConfigWatch bool `help:"Reload camera settings when the config file changes" default:"true" toml:"config.watch" env:"CONFIG_WATCH"`

	// NATS settings
	NatsURL      string `help:"NATS server to relay events to (empty disables)" default:"" toml:"nats.url" env:"NATS_URL"`
	NatsEmbedded bool   `help:"Run an embedded NATS server" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NatsInstance string `help:"Instance name used in NATS subjects" default:"default" toml:"nats.instance" env:"NATS_INSTANCE"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingFfmpeg string `help:"FFmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingMJPEG  string `help:"Stream session logging level" default:"info" toml:"logging.mjpeg" env:"LOGGING_MJPEG"`
	LoggingAPI    string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP   string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingNATS   string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")

		app := newApp(opts, cli.Root())

		hooks.OnStart(func() {
			if err := app.run(); err != nil {
				logger.Error("camfeed stopped", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			app.stop(10 * time.Second)
		})
	})

	cli.Root().Use = "camfeed"
	cli.Root().Short = "Live MJPEG camera streaming server"

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())
	cli.Root().AddCommand(cmd.CreateRestartCmd())

	cli.Run()
}

func loggingConfig(opts *Options) logging.Config {
	return logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"camera": opts.LoggingCamera,
			"ffmpeg": opts.LoggingFfmpeg,
			"mjpeg":  opts.LoggingMJPEG,
			"api":    opts.LoggingAPI,
			"http":   opts.LoggingHTTP,
			"nats":   opts.LoggingNATS,
		},
	}
}
