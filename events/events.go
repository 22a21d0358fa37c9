package events

const (
	// EventBinUpdated carries an inventory.BinDisplayState payload.
	EventBinUpdated EventType = iota + 1
	// EventAlertRaised carries an alert.Log payload.
	EventAlertRaised
)
