//go:build gocv

package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/display"
	"github.com/smazurov/camwatch/internal/opencv"
)

func newOpener(opts *Options, ffmpegOpener *capture.FFmpegOpener) (capture.Opener, error) {
	switch opts.CaptureBackend {
	case "", "ffmpeg":
		return ffmpegOpener, nil
	case "opencv":
		return &opencv.Opener{Width: opts.CaptureWidth, Height: opts.CaptureHeight}, nil
	default:
		return nil, fmt.Errorf("%w: unknown capture backend %q", config.ErrConfiguration, opts.CaptureBackend)
	}
}

func newDNNDetector(opts *Options, logger *slog.Logger) (detection.Detector, func() error, error) {
	if opts.DetectorModel == "" {
		return nil, nil, fmt.Errorf("%w: detector model is required for the dnn detector", config.ErrConfiguration)
	}

	var labels []string
	if opts.DetectorLabelsFile != "" {
		loaded, err := opencv.LoadLabels(opts.DetectorLabelsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		labels = loaded
	}

	minConfidence, err := strconv.ParseFloat(strings.TrimSpace(opts.DetectorMinConfidence), 32)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: detector min confidence %q: %w", config.ErrConfiguration, opts.DetectorMinConfidence, err)
	}

	d, err := opencv.NewDNNDetector(opencv.DetectorOptions{
		Model:         opts.DetectorModel,
		Config:        opts.DetectorModelConfig,
		Format:        opts.DetectorFormat,
		Labels:        labels,
		MinConfidence: float32(minConfidence),
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	return d, d.Close, nil
}

func newWindowSink(name string, logger *slog.Logger) (display.Sink, func() error, error) {
	w := opencv.NewWindowSink(name, logger)
	return w, w.Close, nil
}
