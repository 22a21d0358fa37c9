// Package engine composes the services and runs the data flow: sensor
// readings enter, display states and alerts come out, and every change
// is announced on the event bus for the websocket hub, the Redis
// mirror, and the Kafka alert feed to pick up.
package engine

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"binwatch/alert"
	"binwatch/config"
	"binwatch/events"
	"binwatch/inventory"
	"binwatch/livestate"
	"binwatch/messaging"
	"binwatch/store"
)

type Engine struct {
	cfg       *config.Config
	db        store.Adapter
	bus       *events.Bus
	Inventory *inventory.Service
	Alerts    *alert.Service
	mirror    *livestate.Mirror
	msg       *messaging.Client
	drainer   *messaging.OutboxDrainer

	stopChan chan struct{}
}

func New(cfg *config.Config, db store.Adapter, bus *events.Bus, mirror *livestate.Mirror, msg *messaging.Client) *Engine {
	e := &Engine{
		cfg:       cfg,
		db:        db,
		bus:       bus,
		Inventory: inventory.NewService(db),
		mirror:    mirror,
		msg:       msg,
		stopChan:  make(chan struct{}),
	}
	cooldown := time.Duration(cfg.Alerts.CooldownMinutes) * time.Minute
	e.Alerts = alert.NewService(db, bus, cooldown)
	return e
}

func (e *Engine) DB() store.Adapter            { return e.db }
func (e *Engine) Bus() *events.Bus             { return e.bus }
func (e *Engine) Config() *config.Config       { return e.cfg }
func (e *Engine) Messaging() *messaging.Client { return e.msg }

// Start wires the event handlers and kicks off the background loops.
func (e *Engine) Start(ctx context.Context) error {
	e.wireEventHandlers()

	if e.mirror != nil {
		if err := e.mirror.SyncFromStore(ctx, e.Inventory); err != nil {
			log.Printf("engine: live state sync: %v", err)
		}
	}

	if e.msg != nil && e.msg.MQTTConnected() {
		if err := e.msg.SubscribeReadings(e.handleReadingMessage); err != nil {
			return err
		}
	}
	if e.msg != nil && e.msg.KafkaEnabled() {
		e.drainer = messaging.NewOutboxDrainer(e.db, e.msg, e.cfg.Messaging.OutboxDrainInterval)
		e.drainer.Start()
	}

	go e.retentionLoop()
	return nil
}

func (e *Engine) Stop() {
	close(e.stopChan)
	if e.drainer != nil {
		e.drainer.Stop()
	}
}

// ProcessReading is the single entry point for a sensor reading,
// whether it arrived over HTTP or MQTT. It records the reading,
// recomputes the bin's display state, announces the change, and runs
// alert evaluation. Unknown bins are rejected.
func (e *Engine) ProcessReading(ctx context.Context, binID string, weightGrams float64, quantity int, ts time.Time) (*inventory.BinDisplayState, error) {
	cfg, err := e.Inventory.GetBinConfiguration(ctx, binID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, inventory.ErrBinNotFound
	}

	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := e.Inventory.RecordReading(ctx, binID, weightGrams, quantity, ts); err != nil {
		return nil, err
	}

	state, err := e.Inventory.GetBinDisplayState(ctx, binID)
	if err != nil {
		return nil, err
	}
	e.bus.Emit(events.Event{Type: events.EventBinUpdated, Payload: state})

	if _, err := e.Alerts.Evaluate(ctx, state); err != nil {
		log.Printf("engine: alert evaluation for %s: %v", binID, err)
	}
	return state, nil
}

// wireEventHandlers attaches the side effects of state changes: bin
// updates refresh the Redis mirror, raised alerts go to the outbox for
// the Kafka feed.
func (e *Engine) wireEventHandlers() {
	e.bus.SubscribeTypes(func(evt events.Event) {
		state, ok := evt.Payload.(*inventory.BinDisplayState)
		if !ok {
			return
		}
		if err := e.mirror.SetBinState(context.Background(), state); err != nil {
			log.Printf("engine: live state update for %s: %v", state.BinID, err)
		}
	}, events.EventBinUpdated)

	e.bus.SubscribeTypes(func(evt events.Event) {
		a, ok := evt.Payload.(*alert.Log)
		if !ok {
			return
		}
		payload, err := json.Marshal(a)
		if err != nil {
			log.Printf("engine: encode alert %d: %v", a.ID, err)
			return
		}
		if err := store.EnqueueAlert(context.Background(), e.db, e.cfg.Messaging.AlertsTopic, payload); err != nil {
			log.Printf("engine: enqueue alert %d: %v", a.ID, err)
		}
	}, events.EventAlertRaised)
}

// readingMessage is the payload sensor nodes publish on the readings
// topic. Timestamp is optional; absent means "now".
type readingMessage struct {
	WeightGrams float64 `json:"weight_grams"`
	Quantity    int     `json:"quantity"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

func (e *Engine) handleReadingMessage(binID string, payload []byte) {
	var msg readingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("engine: malformed reading for %s: %v", binID, err)
		return
	}
	var ts time.Time
	if msg.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, msg.Timestamp)
		if err != nil {
			log.Printf("engine: bad timestamp in reading for %s: %v", binID, err)
			return
		}
		ts = parsed
	}
	if _, err := e.ProcessReading(context.Background(), binID, msg.WeightGrams, msg.Quantity, ts); err != nil {
		log.Printf("engine: process reading for %s: %v", binID, err)
	}
}

// retentionLoop periodically deletes historical readings older than the
// retention window.
func (e *Engine) retentionLoop() {
	if e.cfg.Retention.Days <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.Retention.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if _, err := e.Inventory.CleanupOldData(context.Background(), e.cfg.Retention.Days); err != nil {
				log.Printf("engine: retention cleanup: %v", err)
			}
		}
	}
}
