package broadcast

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/version"
)

// Publisher broadcasts events. It never waits on subscribers.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64

	// OnPublish, if set, is called after every event handed to the transport.
	OnPublish func(detection.Event, int)
}

// NewPublisher connects to the broker at url.
func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{logger: logger.With("component", "publisher")}

	conn, err := nats.Connect(url,
		nats.Name(version.UserAgent()+" publisher"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Debug("Publisher disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.logger.Debug("Publisher reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			p.logger.Debug("Transport error", "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	p.logger.Info("Publisher connected", "url", url)
	return p, nil
}

// Publish serializes e and hands it to the transport. Only encoding failures
// are returned; delivery problems are logged at debug level and dropped.
func (p *Publisher) Publish(e detection.Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(Subject(e.CameraID), data); err != nil {
		p.failed.Add(1)
		p.logger.Debug("Publish dropped", "camera_id", e.CameraID, "error", err)
		return nil
	}
	p.published.Add(1)
	if p.OnPublish != nil {
		p.OnPublish(e, len(data))
	}
	return nil
}

// Flush waits until the broker has received everything published so far.
func (p *Publisher) Flush(timeout time.Duration) error {
	return p.conn.FlushTimeout(timeout)
}

// Published returns how many events reached the transport.
func (p *Publisher) Published() uint64 {
	return p.published.Load()
}

// Dropped returns how many events the transport refused.
func (p *Publisher) Dropped() uint64 {
	return p.failed.Load()
}

// Close drains pending writes and disconnects.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
