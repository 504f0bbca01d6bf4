package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/version"
)

// DefaultBuffer is the subscriber's receive queue length. Messages arriving
// while it is full are dropped by the client as a slow consumer.
const DefaultBuffer = 256

// SubscriberOptions configures a Subscriber.
type SubscriberOptions struct {
	URL      string
	CameraID string // empty subscribes to every camera
	Filter   FilterOptions
	Buffer   int
	Logger   *slog.Logger

	// OnReady is called once the subscription is registered with the broker.
	OnReady func()
}

// SubscriberStats counts what a subscriber has seen.
type SubscriberStats struct {
	Received  uint64 `json:"received"`
	Surfaced  uint64 `json:"surfaced"`
	Malformed uint64 `json:"malformed"`
	Dropped   uint64 `json:"dropped"`
	Foreign   uint64 `json:"foreign"` // other cameras sharing the subject
}

// Subscriber receives events and surfaces the ones its filter accepts.
type Subscriber struct {
	opts   SubscriberOptions
	filter *Filter
	logger *slog.Logger

	received  atomic.Uint64
	surfaced  atomic.Uint64
	malformed atomic.Uint64
	slow      atomic.Uint64
	foreign   atomic.Uint64
}

// NewSubscriber creates an unconnected subscriber.
func NewSubscriber(opts SubscriberOptions) *Subscriber {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		opts:   opts,
		filter: NewFilter(opts.Filter),
		logger: logger.With("component", "subscriber"),
	}
}

// Subject returns the subject this subscriber listens on.
func (s *Subscriber) Subject() string {
	if s.opts.CameraID == "" {
		return SubjectAll
	}
	return Subject(s.opts.CameraID)
}

// Run connects and calls handler for every surfaced event, in arrival order,
// until ctx is done. It returns nil on cancellation.
func (s *Subscriber) Run(ctx context.Context, handler func(detection.Event)) error {
	conn, err := nats.Connect(s.opts.URL,
		nats.Name(version.UserAgent()+" subscriber"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("Subscriber disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.logger.Info("Subscriber reconnected", "url", c.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			if errors.Is(err, nats.ErrSlowConsumer) {
				s.slow.Add(1)
			}
			s.logger.Debug("Subscriber transport error", "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.opts.URL, err)
	}
	defer conn.Close()

	msgs := make(chan *nats.Msg, s.opts.Buffer)
	sub, err := conn.ChanSubscribe(s.Subject(), msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.Subject(), err)
	}
	defer func() { _ = sub.Unsubscribe() }()
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.Subject(), err)
	}

	s.logger.Info("Subscribed",
		"url", s.opts.URL,
		"subject", s.Subject(),
		"throttle_n", s.opts.Filter.ThrottleN,
		"deduplicate", s.opts.Filter.Deduplicate)
	if s.opts.OnReady != nil {
		s.opts.OnReady()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			if e, ok := s.handle(msg.Data); ok {
				handler(e)
			}
		}
	}
}

// Events runs the subscriber in the background and delivers surfaced events
// on the returned channel, which is closed when ctx is done or the connection
// cannot be established. The error channel receives at most one value.
func (s *Subscriber) Events(ctx context.Context) (<-chan detection.Event, <-chan error) {
	out := make(chan detection.Event, s.opts.Buffer)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		err := s.Run(ctx, func(e detection.Event) {
			select {
			case out <- e:
			case <-ctx.Done():
			}
		})
		if err != nil {
			errc <- err
		}
	}()
	return out, errc
}

// handle decodes and filters one message.
func (s *Subscriber) handle(data []byte) (detection.Event, bool) {
	e, err := Decode(data)
	if err != nil {
		s.received.Add(1)
		s.malformed.Add(1)
		s.logger.Warn("Dropping malformed event", "error", err, "bytes", len(data))
		return detection.Event{}, false
	}
	// Subject tokens are sanitized ids, so the subject alone does not pin
	// the camera. Events for other ids never reach the filter.
	if s.opts.CameraID != "" && e.CameraID != s.opts.CameraID {
		s.foreign.Add(1)
		return detection.Event{}, false
	}
	s.received.Add(1)
	if !s.filter.Accept(e) {
		return detection.Event{}, false
	}
	s.surfaced.Add(1)
	return e, true
}

// Stats returns the counters so far.
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		Received:  s.received.Load(),
		Surfaced:  s.surfaced.Load(),
		Malformed: s.malformed.Load(),
		Dropped:   s.slow.Load(),
		Foreign:   s.foreign.Load(),
	}
}
