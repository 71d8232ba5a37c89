// Package observability aggregates relay telemetry for periodic logging.
package observability

import "sync/atomic"

// RelayStats holds atomic counters mutated from the hot paths of the
// registry, router and broker. Reads happen on the monitor worker's
// ticker, so everything stays lock-free.
type RelayStats struct {
	connectionsOpened  uint64
	connectionsClosed  uint64
	currentConnections int64
	onlineIdentities   int64
	eventsRouted       uint64
	deliveries         uint64
	deliveryFailures   uint64
	storeLookupErrors  uint64
	droppedFrames      uint64
	activeCalls        int64
	callsInitiated     uint64
	callsRejected      uint64
}

func NewRelayStats() *RelayStats {
	return &RelayStats{}
}

func (s *RelayStats) ConnectionOpened() {
	atomic.AddUint64(&s.connectionsOpened, 1)
	atomic.AddInt64(&s.currentConnections, 1)
}

func (s *RelayStats) ConnectionClosed() {
	atomic.AddUint64(&s.connectionsClosed, 1)
	atomic.AddInt64(&s.currentConnections, -1)
}

func (s *RelayStats) IdentityOnline()  { atomic.AddInt64(&s.onlineIdentities, 1) }
func (s *RelayStats) IdentityOffline() { atomic.AddInt64(&s.onlineIdentities, -1) }

func (s *RelayStats) IncrEventsRouted()      { atomic.AddUint64(&s.eventsRouted, 1) }
func (s *RelayStats) IncrDeliveries()        { atomic.AddUint64(&s.deliveries, 1) }
func (s *RelayStats) IncrDeliveryFailures()  { atomic.AddUint64(&s.deliveryFailures, 1) }
func (s *RelayStats) IncrStoreLookupErrors() { atomic.AddUint64(&s.storeLookupErrors, 1) }
func (s *RelayStats) IncrDroppedFrames()     { atomic.AddUint64(&s.droppedFrames, 1) }

func (s *RelayStats) CallStarted() {
	atomic.AddUint64(&s.callsInitiated, 1)
	atomic.AddInt64(&s.activeCalls, 1)
}

func (s *RelayStats) CallEnded()    { atomic.AddInt64(&s.activeCalls, -1) }
func (s *RelayStats) CallRejected() { atomic.AddUint64(&s.callsRejected, 1) }

// Snapshot is a point-in-time copy safe to log or serve.
type Snapshot struct {
	ConnectionsOpened  uint64 `json:"connections_opened"`
	ConnectionsClosed  uint64 `json:"connections_closed"`
	CurrentConnections int64  `json:"current_connections"`
	OnlineIdentities   int64  `json:"online_identities"`
	EventsRouted       uint64 `json:"events_routed"`
	Deliveries         uint64 `json:"deliveries"`
	DeliveryFailures   uint64 `json:"delivery_failures"`
	StoreLookupErrors  uint64 `json:"store_lookup_errors"`
	DroppedFrames      uint64 `json:"dropped_frames"`
	ActiveCalls        int64  `json:"active_calls"`
	CallsInitiated     uint64 `json:"calls_initiated"`
	CallsRejected      uint64 `json:"calls_rejected"`
}

func (s *RelayStats) Snapshot() Snapshot {
	return Snapshot{
		ConnectionsOpened:  atomic.LoadUint64(&s.connectionsOpened),
		ConnectionsClosed:  atomic.LoadUint64(&s.connectionsClosed),
		CurrentConnections: atomic.LoadInt64(&s.currentConnections),
		OnlineIdentities:   atomic.LoadInt64(&s.onlineIdentities),
		EventsRouted:       atomic.LoadUint64(&s.eventsRouted),
		Deliveries:         atomic.LoadUint64(&s.deliveries),
		DeliveryFailures:   atomic.LoadUint64(&s.deliveryFailures),
		StoreLookupErrors:  atomic.LoadUint64(&s.storeLookupErrors),
		DroppedFrames:      atomic.LoadUint64(&s.droppedFrames),
		ActiveCalls:        atomic.LoadInt64(&s.activeCalls),
		CallsInitiated:     atomic.LoadUint64(&s.callsInitiated),
		CallsRejected:      atomic.LoadUint64(&s.callsRejected),
	}
}
