//go:build gocv

package opencv

import (
	"image"
	"log/slog"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/smazurov/camwatch/internal/display"
)

// WindowSink shows frames in a desktop window and requests quit when the
// user presses q or Esc. HighGUI calls must all happen on one OS thread, so
// the window is created by the first Show and the caller keeps Show and
// Close on a goroutine locked with runtime.LockOSThread.
type WindowSink struct {
	name   string
	window *gocv.Window
	logger *slog.Logger
	quit   atomic.Bool
}

var _ display.Sink = (*WindowSink)(nil)

// NewWindowSink returns a sink for a window called name.
func NewWindowSink(name string, logger *slog.Logger) *WindowSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WindowSink{name: name, logger: logger}
}

// Show displays img and polls the keyboard once.
func (s *WindowSink) Show(name string, img image.Image) {
	bgr, err := toBGR(img)
	if err != nil {
		s.logger.Warn("Cannot display frame", "error", err)
		return
	}
	defer bgr.Close()

	if s.window == nil {
		if name == "" {
			name = s.name
		}
		s.window = gocv.NewWindow(name)
		s.logger.Debug("Window opened", "name", name)
	}

	s.window.IMShow(bgr)
	switch s.window.WaitKey(1) {
	case 'q', 'Q', 27:
		s.quit.Store(true)
	}
}

// PollQuit reports whether quit was requested.
func (s *WindowSink) PollQuit() bool {
	return s.quit.Load()
}

// Close destroys the window if one was opened.
func (s *WindowSink) Close() error {
	if s.window == nil {
		return nil
	}
	err := s.window.Close()
	s.window = nil
	return err
}
