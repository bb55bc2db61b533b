// Package relay implements the transaction-ordering and correlation adapter
// between a venue connector and the trading pipeline.
package relay

import "github.com/coachpo/execrelay/internal/schema"

// Connector abstracts the venue-facing side of the relay. Implementations
// deliver inbound messages on a channel and advertise whether the venue
// supports full transactional log replay for status subscriptions.
type Connector interface {
	// Name identifies the venue for logging and error envelopes.
	Name() string
	// SupportsFullLog reports whether status subscriptions replay a complete
	// transactional history. Without it the relay falls back to lightweight
	// status-id tracking with no aggregation.
	SupportsFullLog() bool
	// Inbound returns the stream of connector messages. The channel closes
	// when the connector shuts down.
	Inbound() <-chan schema.Inbound
	// Duplicate produces an isolated copy of the connector sharing no
	// mutable state with the original.
	Duplicate() (Connector, error)
}
