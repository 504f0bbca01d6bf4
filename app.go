package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camwatch/internal/api"
	"github.com/smazurov/camwatch/internal/broadcast"
	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/compositor"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/display"
	"github.com/smazurov/camwatch/internal/events"
	"github.com/smazurov/camwatch/internal/ffmpeg"
	"github.com/smazurov/camwatch/internal/logging"
	"github.com/smazurov/camwatch/internal/metrics/collectors"
	"github.com/smazurov/camwatch/internal/metrics/exporters"
	"github.com/smazurov/camwatch/internal/service"
)

// application owns every long-lived component of the server command.
type application struct {
	opts   *Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	bus       *events.Bus
	broker    *broadcast.Server
	publisher *broadcast.Publisher
	service   *service.Service
	watcher   *config.Watcher[[]config.SourceConfig]
	collector *collectors.BusCollector
	exporter  *exporters.SSEExporter
	server    *api.Server

	// closers run on the acquisition goroutine after the loop exits.
	closers []func() error

	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// newApplication validates opts and builds the components without starting
// the acquisition loop. Invalid options wrap config.ErrConfiguration.
func newApplication(opts *Options) (_ *application, err error) {
	logger := logging.GetLogger("main")

	if err := config.ValidatePort("broker port", opts.BrokerPort); err != nil {
		return nil, err
	}
	if err := config.ValidateCellSize(opts.DisplayCellWidth, opts.DisplayCellHeight); err != nil {
		return nil, err
	}
	sources, err := config.LoadSources(opts.SourcesFile)
	if err != nil {
		return nil, err
	}
	ffmpegOptions := ffmpeg.DefaultOptions()
	if names := splitList(opts.FFmpegOptions); len(names) > 0 {
		ffmpegOptions, err = ffmpeg.ParseOptions(names)
		if err != nil {
			return nil, fmt.Errorf("%w: ffmpeg options: %w", config.ErrConfiguration, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &application{
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		bus:    events.New(),
		done:   make(chan struct{}),
	}
	defer func() {
		if err != nil {
			a.shutdown()
		}
	}()

	a.broker = broadcast.NewServer(broadcast.ServerOptions{
		Host:   opts.BrokerHost,
		Port:   opts.BrokerPort,
		Logger: logging.GetLogger("broadcast"),
	})
	if err := a.broker.Start(); err != nil {
		return nil, err
	}

	a.publisher, err = broadcast.NewPublisher(a.broker.ClientURL(), logging.GetLogger("broadcast"))
	if err != nil {
		return nil, err
	}
	a.publisher.OnPublish = service.PublishNotifier(a.bus)

	opener, err := newOpener(opts, &capture.FFmpegOpener{
		Binary:  opts.FFmpegBinary,
		Width:   opts.CaptureWidth,
		Height:  opts.CaptureHeight,
		FPS:     opts.FFmpegFPS,
		Options: ffmpegOptions,
		Logger:  logging.GetLogger("capture"),
	})
	if err != nil {
		return nil, err
	}

	detector, err := a.newDetector()
	if err != nil {
		return nil, err
	}
	minConfidence, err := strconv.ParseFloat(strings.TrimSpace(opts.DetectorMinConfidence), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: detector min confidence %q: %w", config.ErrConfiguration, opts.DetectorMinConfidence, err)
	}
	pipeline := detection.NewPipeline(detection.PipelineOptions{
		Detector:      detector,
		MinConfidence: minConfidence,
		Labels:        splitList(opts.DetectorLabels),
		Snapshot:      opts.DetectorSnapshot,
		JPEGQuality:   opts.DetectorJPEGQuality,
		Parallel:      opts.DetectorParallel,
		Logger:        logging.GetLogger("detection"),
	})

	snapshots := display.NewSnapshotSink(opts.DisplayQuality)
	sink := display.Multi{snapshots}
	if opts.DisplayWindow {
		window, closeWindow, err := newWindowSink(opts.DisplayWindowName, logging.GetLogger("service"))
		if err != nil {
			return nil, err
		}
		sink = append(sink, window)
		a.closers = append(a.closers, closeWindow)
	}

	captureLogger := logging.GetLogger("capture")
	factory := func(ctx context.Context, cfgs []config.SourceConfig) (*capture.Registry, error) {
		return capture.NewRegistry(ctx, cfgs, capture.RegistryOptions{
			SourceOptions: capture.SourceOptions{
				Opener:        opener,
				Backoff:       time.Duration(opts.CaptureBackoffMs) * time.Millisecond,
				Logger:        captureLogger,
				OnStateChange: service.StateNotifier(a.bus),
			},
			Concurrent: opts.CaptureConcurrent,
		})
	}

	// Collectors subscribe before the first source connects so the initial
	// transitions are counted.
	a.collector = collectors.NewBusCollector(a.bus)
	a.collector.Start()

	a.service, err = service.New(ctx, service.Options{
		Sources:    sources,
		Factory:    factory,
		Pipeline:   pipeline,
		Publisher:  a.publisher,
		Compositor: compositor.New(opts.DisplayCellWidth, opts.DisplayCellHeight),
		Sink:       sink,
		WindowName: opts.DisplayWindowName,
		MinCycle:   time.Duration(opts.CaptureMinCycleMs) * time.Millisecond,
		Bus:        a.bus,
		Logger:     logging.GetLogger("service"),
	})
	if err != nil {
		return nil, err
	}

	if opts.SourcesWatch {
		a.watcher, err = a.service.WatchSources(ctx, opts.SourcesFile)
		if err != nil {
			logger.Warn("Sources file will not be watched", "file", opts.SourcesFile, "error", err)
			err = nil
		}
	}

	a.exporter = exporters.NewSSEExporter(a.bus)
	a.server = api.NewServer(&api.Options{
		AuthUsername:      opts.AuthUsername,
		AuthPassword:      opts.AuthPassword,
		Sources:           a.service,
		Composite:         snapshots,
		Broadcast:         broadcastStats{a.broker, a.publisher},
		EventBus:          a.bus,
		PrometheusHandler: exporters.HTTPHandler(),
	})

	return a, nil
}

func (a *application) newDetector() (detection.Detector, error) {
	switch strings.ToLower(a.opts.DetectorKind) {
	case "", "none":
		return detection.NopDetector{}, nil
	case "http":
		if a.opts.DetectorURL == "" {
			return nil, fmt.Errorf("%w: detector url is required for the http detector", config.ErrConfiguration)
		}
		timeout := time.Duration(a.opts.DetectorTimeoutMs) * time.Millisecond
		return detection.NewHTTPDetector(a.opts.DetectorURL, timeout), nil
	case "dnn":
		detector, closeDetector, err := newDNNDetector(a.opts, logging.GetLogger("detection"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeDetector)
		return detector, nil
	default:
		return nil, fmt.Errorf("%w: unknown detector %q", config.ErrConfiguration, a.opts.DetectorKind)
	}
}

// Run starts the acquisition loop and serves the API until Stop is called
// or the loop ends on its own.
func (a *application) Run() error {
	a.started.Store(true)
	a.exporter.Start(a.ctx)

	go func() {
		defer close(a.done)
		// Window sinks must see every call on the same OS thread.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := a.service.Run(a.ctx); err != nil {
			a.logger.Error("Acquisition loop failed", "error", err)
		}
		for _, closeFn := range a.closers {
			if err := closeFn(); err != nil {
				a.logger.Warn("Close failed", "error", err)
			}
		}
		// A quit from the sink ends the process the same way a signal does.
		if err := a.server.Stop(); err != nil {
			a.logger.Warn("Error stopping HTTP server", "error", err)
		}
	}()

	a.logger.Info("Starting HTTP server", "port", a.opts.Port, "broker", a.broker.ClientURL())
	err := a.server.Start(a.opts.Port)
	a.shutdown()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop ends the acquisition loop and the HTTP server, then releases every
// source and shuts the broker down.
func (a *application) Stop() {
	if err := a.server.Stop(); err != nil {
		a.logger.Error("Error stopping HTTP server", "error", err)
	}
	a.shutdown()
}

func (a *application) shutdown() {
	a.stopOnce.Do(func() {
		a.cancel()
		if a.started.Load() {
			<-a.done
		} else {
			for _, closeFn := range a.closers {
				_ = closeFn()
			}
		}
		if a.watcher != nil {
			if err := a.watcher.Stop(); err != nil {
				a.logger.Warn("Error stopping sources watcher", "error", err)
			}
		}
		if a.exporter != nil {
			a.exporter.Stop()
		}
		if a.collector != nil {
			a.collector.Stop()
		}
		if a.publisher != nil {
			if err := a.publisher.Flush(2 * time.Second); err != nil {
				a.logger.Debug("Publisher flush failed", "error", err)
			}
			a.publisher.Close()
		}
		if a.broker != nil {
			a.broker.Stop()
		}
		a.logger.Info("Shutdown complete")
	})
}

// broadcastStats joins the broker and publisher counters for the health endpoint.
type broadcastStats struct {
	*broadcast.Server
	*broadcast.Publisher
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
