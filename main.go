package main

import (
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camwatch/cmd"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Sources
	SourcesFile  string `help:"Camera definitions file" default:"sources.toml" toml:"sources.file" env:"SOURCES_FILE"`
	SourcesWatch bool   `help:"Reload sources when the file changes" default:"true" toml:"sources.watch" env:"SOURCES_WATCH"`

	// Server settings
	Port string `help:"HTTP API port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Broadcast settings
	BrokerHost string `help:"Broker bind address" default:"0.0.0.0" toml:"broker.host" env:"BROKER_HOST"`
	BrokerPort int    `help:"Broker TCP port" default:"5555" toml:"broker.port" env:"BROKER_PORT"`

	// Capture settings
	CaptureBackend    string `help:"Capture backend (ffmpeg, opencv)" default:"ffmpeg" toml:"capture.backend" env:"CAPTURE_BACKEND"`
	CaptureBackoffMs  int    `help:"Minimum delay between reconnect attempts in milliseconds" default:"2000" toml:"capture.backoff_ms" env:"CAPTURE_BACKOFF_MS"`
	CaptureConcurrent bool   `help:"Read all sources in parallel" default:"false" toml:"capture.concurrent" env:"CAPTURE_CONCURRENT"`
	CaptureMinCycleMs int    `help:"Minimum time between acquisition cycles in milliseconds" default:"0" toml:"capture.min_cycle_ms" env:"CAPTURE_MIN_CYCLE_MS"`
	CaptureWidth      int    `help:"Decoded frame width" default:"640" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight     int    `help:"Decoded frame height" default:"480" toml:"capture.height" env:"CAPTURE_HEIGHT"`

	// FFmpeg settings
	FFmpegBinary  string `help:"ffmpeg executable" default:"ffmpeg" toml:"ffmpeg.binary" env:"FFMPEG_BINARY"`
	FFmpegFPS     int    `help:"Output frame rate, 0 keeps the source rate" default:"0" toml:"ffmpeg.fps" env:"FFMPEG_FPS"`
	FFmpegOptions string `help:"Comma separated ffmpeg input options, empty uses the defaults" default:"" toml:"ffmpeg.options" env:"FFMPEG_OPTIONS"`

	// Detection settings
	DetectorKind          string `help:"Detector (none, http, dnn)" default:"none" toml:"detector.kind" env:"DETECTOR_KIND"`
	DetectorURL           string `help:"Inference endpoint for the http detector" default:"" toml:"detector.url" env:"DETECTOR_URL"`
	DetectorTimeoutMs     int    `help:"Inference timeout in milliseconds" default:"2000" toml:"detector.timeout_ms" env:"DETECTOR_TIMEOUT_MS"`
	DetectorModel         string `help:"Model weights for the dnn detector" default:"" toml:"detector.model" env:"DETECTOR_MODEL"`
	DetectorModelConfig   string `help:"Network description for SSD models" default:"" toml:"detector.model_config" env:"DETECTOR_MODEL_CONFIG"`
	DetectorFormat        string `help:"Model output format (yolov8, ssd)" default:"yolov8" toml:"detector.format" env:"DETECTOR_FORMAT"`
	DetectorLabelsFile    string `help:"Class names file, one per line" default:"" toml:"detector.labels_file" env:"DETECTOR_LABELS_FILE"`
	DetectorMinConfidence string `help:"Drop detections below this confidence" default:"0.5" toml:"detector.min_confidence" env:"DETECTOR_MIN_CONFIDENCE"`
	DetectorLabels        string `help:"Comma separated labels to keep, empty keeps all" default:"" toml:"detector.labels" env:"DETECTOR_LABELS"`
	DetectorParallel      int    `help:"Frames inferred at once" default:"1" toml:"detector.parallel" env:"DETECTOR_PARALLEL"`
	DetectorSnapshot      bool   `help:"Attach an annotated JPEG to every event" default:"false" toml:"detector.snapshot" env:"DETECTOR_SNAPSHOT"`
	DetectorJPEGQuality   int    `help:"Snapshot JPEG quality" default:"75" toml:"detector.jpeg_quality" env:"DETECTOR_JPEG_QUALITY"`

	// Display settings
	DisplayCellWidth  int    `help:"Composite cell width" default:"640" toml:"display.cell_width" env:"DISPLAY_CELL_WIDTH"`
	DisplayCellHeight int    `help:"Composite cell height" default:"480" toml:"display.cell_height" env:"DISPLAY_CELL_HEIGHT"`
	DisplayWindow     bool   `help:"Show the composite in a desktop window" default:"false" toml:"display.window" env:"DISPLAY_WINDOW"`
	DisplayWindowName string `help:"Desktop window title" default:"camwatch" toml:"display.window_name" env:"DISPLAY_WINDOW_NAME"`
	DisplayQuality    int    `help:"Composite JPEG quality for the API" default:"80" toml:"display.jpeg_quality" env:"DISPLAY_JPEG_QUALITY"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture   string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDetection string `help:"Detection logging level" default:"info" toml:"logging.detection" env:"LOGGING_DETECTION"`
	LoggingBroadcast string `help:"Broadcast logging level" default:"info" toml:"logging.broadcast" env:"LOGGING_BROADCAST"`
	LoggingService   string `help:"Service logging level" default:"info" toml:"logging.service" env:"LOGGING_SERVICE"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingConfig    string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingMetrics   string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"capture":   opts.LoggingCapture,
				"detection": opts.LoggingDetection,
				"broadcast": opts.LoggingBroadcast,
				"service":   opts.LoggingService,
				"api":       opts.LoggingAPI,
				"config":    opts.LoggingConfig,
				"metrics":   opts.LoggingMetrics,
			},
		})

		logger := logging.GetLogger("main")

		var app *application
		hooks.OnStart(func() {
			var err error
			app, err = newApplication(opts)
			if err != nil {
				logger.Error("Failed to start", "error", err)
				os.Exit(1)
			}
			if err := app.Run(); err != nil {
				logger.Error("Stopped with error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if app != nil {
				app.Stop()
			}
		})
	})

	cli.Root().Use = "camwatch"
	cli.Root().Short = "Watch cameras, detect objects and broadcast detection events"
	cli.Root().AddCommand(cmd.CreateSubscribeCmd())
	cli.Root().AddCommand(cmd.CreateValidateConfigCmd())

	cli.Run()
}
