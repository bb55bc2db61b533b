// Command execrelay runs the transaction relay against a venue connector.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coachpo/execrelay/config"
	"github.com/coachpo/execrelay/internal/observability"
	"github.com/coachpo/execrelay/internal/relay"
	"github.com/coachpo/execrelay/internal/schema"
	"github.com/coachpo/execrelay/internal/venuesim"
	"github.com/coachpo/execrelay/lib/telemetry"
)

const (
	relayLoggerPrefix        = "execrelay "
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	cfgPath := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := log.New(os.Stdout, relayLoggerPrefix, log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("validate config: %v", err)
	}
	logger.Printf("configuration initialised: env=%s, venue=%s, full_log=%v",
		cfg.Environment, cfg.Venue.Name, cfg.Venue.FullLog)

	observability.SetLogger(observability.NewTextLogger(os.Stdout, observability.ParseLevel(cfg.LogLevel)))

	providers, telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}
	observability.SetMetrics(telemetry.NewBridge(providers.MeterProvider, cfg.Telemetry.ServiceName))

	connector := venuesim.New(venuesim.Config{
		Venue:           cfg.Venue.Name,
		Orders:          cfg.Sim.Orders,
		TradesPerOrder:  cfg.Sim.TradesPerOrder,
		EventsPerSecond: cfg.Sim.EventsPerSecond,
		FullLog:         cfg.Venue.FullLog,
		Shuffle:         cfg.Sim.Shuffle,
		Seed:            cfg.Sim.Seed,
	})

	controller, err := relay.NewController(connector, relay.NewFanout(cfg.Relay.FanoutWorkers),
		relay.Sink{ID: "stdout", Deliver: logSink(logger)})
	if err != nil {
		logger.Fatalf("initialise relay: %v", err)
	}
	service := relay.NewService(controller)

	connector.Start(ctx)
	logger.Print("relay started; awaiting shutdown signal or end of stream")

	runErr := service.Run(ctx)
	if runErr != nil && runErr != context.Canceled {
		logger.Printf("relay stopped: %v", runErr)
	}

	snapshot := controller.Metrics()
	logger.Printf("forwarded=%d flushed_batches=%d dropped=%d",
		snapshot.ForwardedEvents, snapshot.FlushedBatches, total(snapshot.DroppedEvents))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer shutdownCancel()
	if err := telemetryShutdown(shutdownCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}
}

func parseFlags() string {
	cfgPath := flag.String("config", "", "Path to YAML configuration file (optional)")
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func logSink(logger *log.Logger) relay.DeliveryFunc {
	return func(_ context.Context, msg schema.Inbound) error {
		evt := msg.Exec
		if evt == nil {
			logger.Printf("forwarded %s", msg.Kind)
			return nil
		}
		logger.Printf("forwarded tx=%d orig=%d order=%d security=%d order_info=%v trade_info=%v",
			evt.TransactionID, evt.OriginalTransactionID, evt.OrderID, evt.SecurityID,
			evt.HasOrderInfo, evt.HasTradeInfo)
		return nil
	}
}

func total(byReason map[string]int) int {
	sum := 0
	for _, n := range byReason {
		sum += n
	}
	return sum
}
