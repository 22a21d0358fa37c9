package events

import "testing"

func TestEmitReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	var a, b int
	bus.Subscribe(func(Event) { a++ })
	bus.Subscribe(func(Event) { b++ })

	bus.Emit(Event{Type: EventBinUpdated})
	if a != 1 || b != 1 {
		t.Errorf("counts = %d, %d, want 1, 1", a, b)
	}
}

func TestSubscribeTypesFilters(t *testing.T) {
	bus := NewBus()
	var bins, alerts int
	bus.SubscribeTypes(func(Event) { bins++ }, EventBinUpdated)
	bus.SubscribeTypes(func(Event) { alerts++ }, EventAlertRaised)

	bus.Emit(Event{Type: EventBinUpdated})
	bus.Emit(Event{Type: EventBinUpdated})
	bus.Emit(Event{Type: EventAlertRaised})

	if bins != 2 {
		t.Errorf("bin events = %d, want 2", bins)
	}
	if alerts != 1 {
		t.Errorf("alert events = %d, want 1", alerts)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	var n int
	id := bus.Subscribe(func(Event) { n++ })

	bus.Emit(Event{Type: EventBinUpdated})
	bus.Unsubscribe(id)
	bus.Emit(Event{Type: EventBinUpdated})

	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

func TestSubscribeDuringDispatch(t *testing.T) {
	bus := NewBus()
	var late int
	bus.Subscribe(func(Event) {
		// Subscribing mid-dispatch must not deadlock or affect the
		// in-flight fan-out.
		bus.Subscribe(func(Event) { late++ })
	})

	bus.Emit(Event{Type: EventBinUpdated})
	if late != 0 {
		t.Errorf("late subscriber ran during its own registration emit: %d", late)
	}
	bus.Emit(Event{Type: EventBinUpdated})
	if late != 1 {
		t.Errorf("late = %d, want 1", late)
	}
}

func TestEmitSetsTimestamp(t *testing.T) {
	bus := NewBus()
	var got Event
	bus.Subscribe(func(e Event) { got = e })

	bus.Emit(Event{Type: EventAlertRaised})
	if got.Timestamp.IsZero() {
		t.Error("timestamp should be set on emit")
	}
}
