package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOrdersPlacedTotal   = "trade_engine_orders_placed_total"
	MetricOrderRetriesTotal   = "trade_engine_order_retries_total"
	MetricOrderFailuresTotal  = "trade_engine_order_failures_total"
	MetricOrdersAdjustedTotal = "trade_engine_orders_adjusted_total"
	MetricOrdersTracked       = "trade_engine_orders_tracked"
	MetricTicksEmittedTotal   = "trade_engine_ticks_emitted_total"
	MetricOrderingSkipsTotal  = "trade_engine_ordering_skips_total"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	OrdersPlacedTotal   metric.Int64Counter
	OrderRetriesTotal   metric.Int64Counter
	OrderFailuresTotal  metric.Int64Counter
	OrdersAdjustedTotal metric.Int64Counter
	OrdersTracked       metric.Int64ObservableGauge
	TicksEmittedTotal   metric.Int64Counter
	OrderingSkipsTotal  metric.Int64Counter

	// State for observable gauges
	mu              sync.RWMutex
	trackedByExchMap map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			trackedByExchMap: make(map[string]int64),
		}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders submitted to exchanges"))
	if err != nil {
		return err
	}

	m.OrderRetriesTotal, err = meter.Int64Counter(MetricOrderRetriesTotal, metric.WithDescription("Total retry-hinted placement attempts"))
	if err != nil {
		return err
	}

	m.OrderFailuresTotal, err = meter.Int64Counter(MetricOrderFailuresTotal, metric.WithDescription("Total terminal placement failures"))
	if err != nil {
		return err
	}

	m.OrdersAdjustedTotal, err = meter.Int64Counter(MetricOrdersAdjustedTotal, metric.WithDescription("Total resting orders re-priced against the book"))
	if err != nil {
		return err
	}

	m.TicksEmittedTotal, err = meter.Int64Counter(MetricTicksEmittedTotal, metric.WithDescription("Total scheduler tick emissions per topic"))
	if err != nil {
		return err
	}

	m.OrderingSkipsTotal, err = meter.Int64Counter(MetricOrderingSkipsTotal, metric.WithDescription("Ordering cycles skipped by the re-entrancy guard"))
	if err != nil {
		return err
	}

	m.OrdersTracked, err = meter.Int64ObservableGauge(MetricOrdersTracked, metric.WithDescription("Orders currently tracked as open"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for exch, val := range m.trackedByExchMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("exchange", exch)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// SetTrackedOrders updates the tracked-order gauge state for one exchange.
func (m *MetricsHolder) SetTrackedOrders(exchange string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackedByExchMap[exchange] = count
}

// GetTrackedOrders returns a copy of the tracked-order gauge state.
func (m *MetricsHolder) GetTrackedOrders() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.trackedByExchMap {
		res[k] = v
	}
	return res
}
