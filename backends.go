//go:build !gocv

package main

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/display"
)

// Builds without the gocv tag only carry the ffmpeg capture backend and the
// detectors that need no native libraries.

func newOpener(opts *Options, ffmpegOpener *capture.FFmpegOpener) (capture.Opener, error) {
	switch opts.CaptureBackend {
	case "", "ffmpeg":
		return ffmpegOpener, nil
	default:
		return nil, fmt.Errorf("%w: capture backend %q is not available in this build (rebuild with -tags gocv)",
			config.ErrConfiguration, opts.CaptureBackend)
	}
}

func newDNNDetector(*Options, *slog.Logger) (detection.Detector, func() error, error) {
	return nil, nil, fmt.Errorf("%w: the dnn detector is not available in this build (rebuild with -tags gocv)",
		config.ErrConfiguration)
}

func newWindowSink(string, *slog.Logger) (display.Sink, func() error, error) {
	return nil, nil, fmt.Errorf("%w: the display window is not available in this build (rebuild with -tags gocv)",
		config.ErrConfiguration)
}
