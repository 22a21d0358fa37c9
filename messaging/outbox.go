package messaging

import (
	"context"
	"log"
	"time"

	"binwatch/store"
)

// publisher is the slice of Client the drainer needs; tests substitute
// their own.
type publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// OutboxDrainer periodically publishes pending alert-feed messages.
// Alerts are written to the outbox in the same store as the alert log,
// so a Kafka outage never loses an alert, it just delays delivery.
type OutboxDrainer struct {
	db       store.Adapter
	client   publisher
	interval time.Duration
	stopChan chan struct{}
}

func NewOutboxDrainer(db store.Adapter, client publisher, interval time.Duration) *OutboxDrainer {
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

func (d *OutboxDrainer) Stop() {
	select {
	case d.stopChan <- struct{}{}:
	default:
	}
}

func (d *OutboxDrainer) run() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.Drain(context.Background())
		}
	}
}

// Drain publishes one batch of pending messages. Failed publishes bump
// the retry counter and stay pending for the next pass.
func (d *OutboxDrainer) Drain(ctx context.Context) {
	msgs, err := store.ListPendingAlerts(ctx, d.db, 50)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return
	}
	for _, msg := range msgs {
		if err := d.client.Publish(ctx, msg.Topic, msg.Payload); err != nil {
			log.Printf("outbox: publish to %s failed: %v", msg.Topic, err)
			store.IncrementAlertRetries(ctx, d.db, msg.ID)
			continue
		}
		store.AckAlert(ctx, d.db, msg.ID)
	}
}
