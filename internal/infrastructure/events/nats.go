package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/ports"
)

type natsConn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes each event to "<subject>.<event type>".
type NATSPublisher struct {
	conn    natsConn
	subject string
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: strings.TrimSuffix(strings.TrimSpace(subject), ".")}
}

// ConnectNATS dials url and keeps reconnecting for the life of the process.
func ConnectNATS(ctx context.Context, url string, name string) (*nats.Conn, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "events.nats"))

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errs.Mark(errs.ErrConfiguration, err, "connect nats")
	}

	logging.Info(logCtx, "nats connected", slog.String("url", conn.ConnectedUrl()))
	return conn, nil
}

func (p *NATSPublisher) Subject(eventType string) string {
	return p.subject + "." + eventType
}

func (p *NATSPublisher) Publish(_ context.Context, event ports.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "encode event")
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return errs.Mark(errs.ErrUpstream, err, "publish event to nats")
	}
	return nil
}
