package services

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/proof-service/internal/models"
)

// EventPublisher mirrors receipt lifecycle changes onto NATS subjects so
// downstream consumers can react without polling. All methods tolerate a
// nil receiver and a lost connection: eventing is best-effort and never
// fails the request that triggered it.
type EventPublisher struct {
	nc     *nats.Conn
	prefix string
}

// ConnectEvents establishes the NATS connection. An empty URL disables
// eventing entirely and returns a nil publisher.
func ConnectEvents(url, prefix string) (*EventPublisher, error) {
	if url == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}))
	if err != nil {
		return nil, err
	}
	slog.Info("NATS connected", "url", url, "prefix", prefix)
	return &EventPublisher{nc: nc, prefix: prefix}, nil
}

func (p *EventPublisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Drain()
}

// ReceiptCreated publishes <prefix>.created when a receipt enters proving.
func (p *EventPublisher) ReceiptCreated(r *models.Receipt) {
	p.publish("created", r)
}

// ReceiptCompleted publishes <prefix>.verified or <prefix>.failed when a
// receipt reaches its terminal status.
func (p *EventPublisher) ReceiptCompleted(r *models.Receipt) {
	p.publish(string(r.Status), r)
}

func (p *EventPublisher) publish(suffix string, r *models.Receipt) {
	if p == nil || p.nc == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	subject := p.prefix + "." + suffix
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Warn("Event publish failed", "subject", subject, "receipt_id", r.ID, "error", err)
	}
}
