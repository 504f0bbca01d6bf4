package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/smazurov/camwatch/internal/ffmpeg"
)

const (
	defaultStartTimeout = 10 * time.Second
	defaultReadTimeout  = 5 * time.Second
	killTimeout         = 2 * time.Second
)

// FFmpegOpener decodes cameras with an ffmpeg child process that writes
// fixed-size RGBA frames to stdout.
type FFmpegOpener struct {
	Binary  string // defaults to ffmpeg.Binary
	Width   int
	Height  int
	FPS     int
	Options []ffmpeg.OptionType

	// StartTimeout bounds the wait for the first frame, which is what makes
	// an open successful.
	StartTimeout time.Duration
	ReadTimeout  time.Duration
	Logger       *slog.Logger
}

// Open starts ffmpeg for loc and waits for the first frame.
func (o *FFmpegOpener) Open(ctx context.Context, loc Locator) (Handle, error) {
	params := ffmpeg.CaptureParams{
		Width:   o.Width,
		Height:  o.Height,
		FPS:     o.FPS,
		Options: o.Options,
	}
	if loc.IsStream() {
		params.Kind, params.URL = ffmpeg.InputStream, loc.URL
	} else {
		params.Kind, params.Device = ffmpeg.InputDevice, loc.Index
	}

	args, err := ffmpeg.BuildCaptureArgs(params)
	if err != nil {
		return nil, err
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("locator", loc.String())

	bin := o.Binary
	if bin == "" {
		bin = ffmpeg.Binary
	}
	cmd := exec.Command(bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}
	logger.Debug("ffmpeg started", "pid", cmd.Process.Pid)

	h := &ffmpegHandle{
		cmd:         cmd,
		stdout:      stdout,
		width:       o.Width,
		height:      o.Height,
		readTimeout: orDefault(o.ReadTimeout, defaultReadTimeout),
		logger:      logger,
	}
	go streamStderr(stderr, logger)

	stop := context.AfterFunc(ctx, h.kill)
	f, err := h.readFrame(orDefault(o.StartTimeout, defaultStartTimeout))
	stop()
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("no frame from ffmpeg: %w", err)
	}
	h.pending = &f
	return h, nil
}

type ffmpegHandle struct {
	cmd         *exec.Cmd
	stdout      io.ReadCloser
	width       int
	height      int
	readTimeout time.Duration
	logger      *slog.Logger
	pending     *Frame
	closed      bool
}

func (h *ffmpegHandle) Read(ctx context.Context) (Frame, error) {
	if h.closed {
		return Frame{}, os.ErrClosed
	}
	if h.pending != nil {
		f := *h.pending
		h.pending = nil
		return f, nil
	}

	timeout := h.readTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	stop := context.AfterFunc(ctx, h.kill)
	defer stop()
	return h.readFrame(timeout)
}

func (h *ffmpegHandle) readFrame(timeout time.Duration) (Frame, error) {
	if d, ok := h.stdout.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = d.SetReadDeadline(time.Now().Add(timeout))
	}
	return readRawFrame(h.stdout, h.width, h.height)
}

func (h *ffmpegHandle) kill() {
	if h.cmd.Process == nil {
		return
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Debug("Failed to kill ffmpeg", "error", err)
	}
}

// Close kills ffmpeg and reaps it.
func (h *ffmpegHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.kill()

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(killTimeout):
		return errors.New("ffmpeg did not exit after kill")
	}
	return nil
}

// readRawFrame reads exactly one width*height RGBA frame from r.
func readRawFrame(r io.Reader, width, height int) (Frame, error) {
	buf := make([]byte, width*height*ffmpeg.BytesPerPixel)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}
	img := &image.RGBA{
		Pix:    buf,
		Stride: width * ffmpeg.BytesPerPixel,
		Rect:   image.Rect(0, 0, width, height),
	}
	return NewFrame(img, time.Now()), nil
}

func streamStderr(r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		level, msg := ffmpeg.ParseLogLine(scanner.Text())
		logger.Log(context.Background(), level, msg, "component", "ffmpeg")
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
