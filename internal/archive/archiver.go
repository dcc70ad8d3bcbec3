package archive

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-location-broker/internal/observability"
	"github.com/tbourn/go-location-broker/internal/services"
)

// metadataPublisher is implemented by publishers that carry per-message metadata.
type metadataPublisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, m Message) error
}

// Archiver publishes the raw form of inbound requests.
type Archiver struct {
	Publisher Publisher
}

// NewArchiver returns an Archiver that publishes through p.
func NewArchiver(p Publisher) *Archiver {
	return &Archiver{Publisher: p}
}

// Archive publishes the envelope of r to exchange with routing key
// "{domain}.{devid}". It blocks until the bus accepts or rejects the
// message; failures are returned as *services.DependencyError.
func (a *Archiver) Archive(ctx context.Context, exchange, domain string, r *http.Request, body []byte, devid string, now time.Time) error {
	key := RoutingKey(domain, devid)
	ctx, span := observability.Tracer("archive").Start(ctx, "Archive",
		trace.WithAttributes(
			attribute.String("messaging.destination", exchange),
			attribute.String("messaging.routing_key", key),
		),
	)
	defer span.End()

	env := NewEnvelope(r, body, devid, now)
	payload, err := env.Marshal()
	if err != nil {
		return &services.DependencyError{Op: "encode archive envelope", Err: err}
	}

	m := Message{
		Payload: payload,
		Metadata: map[string]string{
			MetaDevID:      devid,
			MetaReceivedAt: env.Time,
		},
	}
	if mp, ok := a.Publisher.(metadataPublisher); ok {
		err = mp.PublishMessage(ctx, exchange, key, m)
	} else {
		err = a.Publisher.Publish(ctx, exchange, key, payload)
	}
	if err != nil {
		span.RecordError(err)
		return &services.DependencyError{Op: "archive", Err: err}
	}
	return nil
}
