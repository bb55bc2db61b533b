package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/execrelay/internal/schema"
)

func TestServiceRunPumpsEventsAndCommands(t *testing.T) {
	connector := newFakeConnector(false)
	sink := new(captureSink)
	ctrl, err := NewController(connector, NewFanout(1),
		Sink{ID: "capture", Deliver: sink.deliver})
	require.NoError(t, err)
	svc := NewService(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	register, err := schema.NewCommand(schema.CommandRegisterOrder,
		schema.RegisterOrderPayload{TransactionID: 1, SecurityID: 55})
	require.NoError(t, err)
	require.NoError(t, svc.Submit(ctx, register))
	require.Eventually(t, func() bool {
		_, ok := ctrl.registry.ResolveSecurity(1)
		return ok
	}, time.Second, 5*time.Millisecond)
	connector.ch <- schema.ExecInbound(orderInfo(1, 9))

	require.Eventually(t, func() bool { return sink.len() == 1 }, time.Second, 5*time.Millisecond)
	events := sink.events()
	require.Equal(t, int64(55), events[0].SecurityID,
		"command must land before the event that depends on it")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestServiceStopsWhenConnectorCloses(t *testing.T) {
	connector := newFakeConnector(false)
	ctrl, err := NewController(connector, NewFanout(1))
	require.NoError(t, err)
	svc := NewService(ctrl)

	close(connector.ch)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Run(ctx))
}

func TestServiceSubmitHonoursContext(t *testing.T) {
	ctrl, _ := newTestController(t, false)
	svc := NewService(ctrl)
	for i := 0; i < cap(svc.commands); i++ {
		cmd, err := schema.NewCommand(schema.CommandReset, nil)
		require.NoError(t, err)
		require.NoError(t, svc.Submit(context.Background(), cmd))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd, err := schema.NewCommand(schema.CommandReset, nil)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Submit(ctx, cmd), context.Canceled)
}
