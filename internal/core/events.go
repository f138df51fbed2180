package core

// OrderEvent carries an order intent from strategy code to the engine.
type OrderEvent struct {
	Exchange string
	Request  OrderRequest
}

// TickerEvent carries a fresh ticker observation.
type TickerEvent struct {
	Ticker Ticker
}

// PositionStateChangeEvent signals that a pair's position state moved; the
// type tag distinguishes opened/closed/changed transitions.
type PositionStateChangeEvent struct {
	Type     string
	Exchange string
	Symbol   string
}

const (
	PositionStateOpened  = "position_opened"
	PositionStateClosed  = "position_closed"
	PositionStateChanged = "position_changed"
)
