package relay

import (
	"context"

	"github.com/sourcegraph/conc"

	"github.com/coachpo/execrelay/internal/observability"
	"github.com/coachpo/execrelay/internal/schema"
)

// Service runs a controller against its connector stream and a command
// channel until the context ends or the connector closes its channel.
type Service struct {
	controller *Controller
	commands   chan schema.Command
}

// NewService wraps the controller with a buffered command intake.
func NewService(controller *Controller) *Service {
	return &Service{
		controller: controller,
		commands:   make(chan schema.Command, 64),
	}
}

// Controller exposes the wrapped controller for direct inspection.
func (s *Service) Controller() *Controller {
	return s.controller
}

// Submit queues one pipeline command. It blocks when the intake is full so
// command order is preserved under pressure.
func (s *Service) Submit(ctx context.Context, cmd schema.Command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run pumps connector messages and commands through the controller. Both
// streams funnel into a single loop, so commands serialize with event
// processing and a Reset barrier never interleaves with a half-handled
// event.
func (s *Service) Run(ctx context.Context) error {
	inbound := s.controller.connector.Inbound()
	var wg conc.WaitGroup
	defer wg.Wait()

	done := make(chan struct{})
	wg.Go(func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case cmd, ok := <-s.commands:
				if !ok {
					return
				}
				if err := s.controller.Apply(ctx, cmd); err != nil {
					observability.Log().Error("command failed",
						observability.Field{Key: "venue", Value: s.controller.venue},
						observability.Field{Key: "command", Value: string(cmd.Type)},
						observability.Field{Key: "error", Value: err.Error()},
					)
				}
			case msg, ok := <-inbound:
				if !ok {
					return
				}
				if err := s.controller.HandleInbound(ctx, msg); err != nil {
					observability.Log().Error("inbound message failed",
						observability.Field{Key: "venue", Value: s.controller.venue},
						observability.Field{Key: "kind", Value: string(msg.Kind)},
						observability.Field{Key: "error", Value: err.Error()},
					)
				}
			}
		}
	})

	select {
	case <-ctx.Done():
	case <-done:
	}
	return ctx.Err()
}
