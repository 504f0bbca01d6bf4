// Package ffmpeg builds ffmpeg invocations that decode a camera into raw RGBA
// frames on stdout.
package ffmpeg

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
)

// Binary is the ffmpeg executable looked up on PATH.
const Binary = "ffmpeg"

// BytesPerPixel of the rgba output format.
const BytesPerPixel = 4

// InputKind selects the demuxer for a capture.
type InputKind int

const (
	InputDevice InputKind = iota
	InputStream
)

// CaptureParams describes one raw-frame capture.
type CaptureParams struct {
	Kind    InputKind
	Device  int    // device index, InputDevice only
	URL     string // InputStream only
	Width   int    // output frame width
	Height  int    // output frame height
	FPS     int    // 0 keeps the input rate
	Options []OptionType

	// Test replaces the input with a synthetic lavfi pattern.
	Test bool
}

// FrameSize returns the number of bytes ffmpeg writes per frame.
func (p CaptureParams) FrameSize() int {
	return p.Width * p.Height * BytesPerPixel
}

// DevicePath returns the platform device locator for a camera index.
func DevicePath(index int) (format, path string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", strconv.Itoa(index)
	case "windows":
		return "dshow", "video=" + strconv.Itoa(index)
	default:
		return "v4l2", "/dev/video" + strconv.Itoa(index)
	}
}

// BuildCaptureArgs returns the ffmpeg arguments (without the binary) for p.
func BuildCaptureArgs(p CaptureParams) ([]string, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", p.Width, p.Height)
	}
	if err := ValidateOptions(p.Options); err != nil {
		return nil, err
	}

	args := []string{"-hide_banner", "-nostdin", "-loglevel", "level+warning"}

	switch {
	case p.Test:
		src := fmt.Sprintf("testsrc2=size=%dx%d", p.Width, p.Height)
		if p.FPS > 0 {
			src += ":rate=" + strconv.Itoa(p.FPS)
		}
		args = append(args, "-re", "-f", "lavfi", "-i", src)
	case p.Kind == InputStream:
		if p.URL == "" {
			return nil, errors.New("stream url is required")
		}
		args = append(args, applyInputOptions(p.Options, true)...)
		args = append(args, "-i", p.URL)
	case p.Kind == InputDevice:
		if p.Device < 0 {
			return nil, fmt.Errorf("invalid device index %d", p.Device)
		}
		format, path := DevicePath(p.Device)
		args = append(args, applyInputOptions(p.Options, false)...)
		args = append(args, "-f", format)
		if p.FPS > 0 {
			args = append(args, "-framerate", strconv.Itoa(p.FPS))
		}
		args = append(args, "-i", path)
	default:
		return nil, fmt.Errorf("unknown input kind %d", p.Kind)
	}

	args = append(args, "-an", "-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height))
	if p.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(p.FPS))
	}
	args = append(args, "-f", "rawvideo", "-pix_fmt", "rgba", "-")
	return args, nil
}
