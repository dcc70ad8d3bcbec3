package archive

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-location-broker/internal/config"
)

// Open builds the publisher selected by cfg.Driver. NATS publishers get a
// circuit breaker unless cfg.BreakerFailures is zero.
func Open(cfg config.BusConfig, l zerolog.Logger) (*WatermillPublisher, error) {
	logger := NewZerologAdapter(l)
	switch cfg.Driver {
	case "memory", "":
		p, _ := NewMemoryPublisher(logger)
		return p, nil
	case "nats":
		p, err := NewNATSPublisher(NATSConfig{
			URL:           cfg.URL,
			JetStream:     cfg.JetStream,
			MaxReconnects: cfg.MaxReconnects,
			ReconnectWait: cfg.ReconnectWait,
		}, logger)
		if err != nil {
			return nil, err
		}
		if cfg.BreakerFailures > 0 {
			p.SetCircuitBreaker(NewCircuitBreaker("archive-"+cfg.Exchange, cfg.BreakerFailures, cfg.BreakerTimeout))
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported bus driver %q", cfg.Driver)
	}
}
