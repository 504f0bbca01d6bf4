package capture

import (
	"context"
	"fmt"
	"net/url"
)

// Locator addresses a camera: a device index or a stream URL.
type Locator struct {
	Index int
	URL   string
}

// IsStream reports whether the locator is a URL.
func (l Locator) IsStream() bool {
	return l.URL != ""
}

// String renders the locator for logs with any URL password masked.
func (l Locator) String() string {
	if !l.IsStream() {
		return fmt.Sprintf("device:%d", l.Index)
	}
	u, err := url.Parse(l.URL)
	if err != nil {
		return "stream"
	}
	return u.Redacted()
}

// Opener connects to a camera.
type Opener interface {
	Open(ctx context.Context, loc Locator) (Handle, error)
}

// Handle is an open camera connection. It is used by one goroutine at a time.
type Handle interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, loc Locator) (Handle, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, loc Locator) (Handle, error) {
	return f(ctx, loc)
}
