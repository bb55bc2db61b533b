// Package venuesim provides a scripted venue connector for local runs and
// load checks. It emits a configurable mix of order confirmations and
// trades, optionally out of order, at a paced rate.
package venuesim

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/coachpo/execrelay/internal/observability"
	"github.com/coachpo/execrelay/internal/relay"
	"github.com/coachpo/execrelay/internal/schema"
)

// Config controls the scripted event stream.
type Config struct {
	Venue           string  `yaml:"venue"`
	Orders          int     `yaml:"orders"`
	TradesPerOrder  int     `yaml:"trades_per_order"`
	EventsPerSecond float64 `yaml:"events_per_second"`
	FullLog         bool    `yaml:"full_log"`
	// Shuffle emits some trades ahead of their order confirmation so the
	// downstream buffer path gets exercised.
	Shuffle bool   `yaml:"shuffle"`
	Seed    uint64 `yaml:"seed"`
}

func (c Config) withDefaults() Config {
	if c.Venue == "" {
		c.Venue = "sim"
	}
	if c.Orders <= 0 {
		c.Orders = 10
	}
	if c.TradesPerOrder < 0 {
		c.TradesPerOrder = 0
	}
	if c.EventsPerSecond <= 0 {
		c.EventsPerSecond = 100
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	return c
}

// Connector implements relay.Connector with a deterministic scripted stream.
type Connector struct {
	cfg     Config
	limiter *rate.Limiter
	ch      chan schema.Inbound
	start   sync.Once
}

var _ relay.Connector = (*Connector)(nil)

// New builds a connector; the stream starts on the first Start call.
func New(cfg Config) *Connector {
	cfg = cfg.withDefaults()
	return &Connector{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), 1),
		ch:      make(chan schema.Inbound, 128),
	}
}

// Name identifies the simulated venue.
func (c *Connector) Name() string { return c.cfg.Venue }

// SupportsFullLog reports the configured replay capability.
func (c *Connector) SupportsFullLog() bool { return c.cfg.FullLog }

// Inbound returns the event stream. The channel closes once the script has
// been fully emitted.
func (c *Connector) Inbound() <-chan schema.Inbound { return c.ch }

// Duplicate returns a fresh connector replaying the same script.
func (c *Connector) Duplicate() (relay.Connector, error) {
	return New(c.cfg), nil
}

// Start launches the producer. Repeated calls are no-ops.
func (c *Connector) Start(ctx context.Context) {
	c.start.Do(func() {
		go c.run(ctx)
	})
}

func (c *Connector) run(ctx context.Context) {
	defer close(c.ch)
	rng := rand.New(rand.NewPCG(c.cfg.Seed, c.cfg.Seed))
	emitted := 0
	for i := 0; i < c.cfg.Orders; i++ {
		txID := int64(1000 + i)
		orderID := int64(5000 + i)
		orderStr := uuid.NewString()
		price := decimal.NewFromFloat(100 + rng.Float64()*10).Round(4)

		trades := make([]schema.Inbound, 0, c.cfg.TradesPerOrder)
		for t := 0; t < c.cfg.TradesPerOrder; t++ {
			trades = append(trades, schema.ExecInbound(c.tradeEvent(txID, orderID, orderStr, price, t)))
		}
		order := schema.ExecInbound(c.orderEvent(txID, orderID, orderStr, price))

		script := make([]schema.Inbound, 0, len(trades)+1)
		if c.cfg.Shuffle && len(trades) > 0 && rng.IntN(2) == 0 {
			// Lead with one orphan trade to force downstream parking.
			script = append(script, trades[0])
			script = append(script, order)
			script = append(script, trades[1:]...)
		} else {
			script = append(script, order)
			script = append(script, trades...)
		}
		for _, msg := range script {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case c.ch <- msg:
				emitted++
			case <-ctx.Done():
				return
			}
		}
	}
	observability.Log().Info("simulation script complete",
		observability.Field{Key: "venue", Value: c.cfg.Venue},
		observability.Field{Key: "events", Value: emitted},
	)
}

func (c *Connector) orderEvent(txID, orderID int64, orderStr string, price decimal.Decimal) *schema.ExecutionEvent {
	balance := decimal.NewFromInt(int64(c.cfg.TradesPerOrder))
	state := schema.StateActive
	if c.cfg.TradesPerOrder == 0 {
		state = schema.StateNew
	}
	return &schema.ExecutionEvent{
		TransactionID: txID,
		OrderID:       orderID,
		OrderStringID: orderStr,
		SecurityID:    int64(1 + orderID%7),
		HasOrderInfo:  true,
		Balance:       &balance,
		State:         &state,
		Price:         &price,
	}
}

func (c *Connector) tradeEvent(txID, orderID int64, orderStr string, price decimal.Decimal, seq int) *schema.ExecutionEvent {
	qty := decimal.NewFromInt(1)
	return &schema.ExecutionEvent{
		TransactionID: txID,
		OrderID:       orderID,
		OrderStringID: orderStr,
		TradeID:       orderID*100 + int64(seq),
		HasTradeInfo:  true,
		Price:         &price,
		Quantity:      &qty,
	}
}
