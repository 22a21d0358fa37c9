package store

import (
	"context"
	"time"
)

// OutboxMessage is a pending alert-feed message awaiting publication.
type OutboxMessage struct {
	ID        int64
	Topic     string
	Payload   []byte
	Retries   int
	CreatedAt time.Time
}

// EnqueueAlert stores an alert-feed message for later publication.
func EnqueueAlert(ctx context.Context, db Adapter, topic string, payload []byte) error {
	_, err := db.Execute(ctx, `INSERT INTO alert_outbox (topic, payload) VALUES (?, ?)`,
		topic, string(payload))
	return err
}

// ListPendingAlerts returns unsent outbox messages, oldest first.
func ListPendingAlerts(ctx context.Context, db Adapter, limit int) ([]*OutboxMessage, error) {
	rows, err := db.FetchAll(ctx,
		`SELECT id, topic, payload, retries, created_at FROM alert_outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]*OutboxMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, &OutboxMessage{
			ID:        r.Int64("id"),
			Topic:     r.String("topic"),
			Payload:   []byte(r.String("payload")),
			Retries:   r.Int("retries"),
			CreatedAt: r.Time("created_at"),
		})
	}
	return msgs, nil
}

// AckAlert marks an outbox message as sent.
func AckAlert(ctx context.Context, db Adapter, id int64) error {
	_, err := db.Execute(ctx, `UPDATE alert_outbox SET sent_at = datetime('now') WHERE id = ?`, id)
	return err
}

// IncrementAlertRetries bumps the retry counter after a failed publish.
func IncrementAlertRetries(ctx context.Context, db Adapter, id int64) error {
	_, err := db.Execute(ctx, `UPDATE alert_outbox SET retries = retries + 1 WHERE id = ?`, id)
	return err
}
