package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

func startEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	ep, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ep.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Errorf("receive loop did not stop")
		}
		_ = ep.Close()
	})
	return ep
}

func TestEndpoint_SendAndReceive(t *testing.T) {
	a := startEndpoint(t)
	b := startEndpoint(t)

	msg := &protocol.Fire{ObjectType: protocol.ObjectProjectile, Charge: 0.8}
	require.NoError(t, protocol.Create(3, 7, msg))
	require.NoError(t, a.Send(msg, b.Addr()))

	require.Eventually(t, func() bool { return b.Queue().Len() == 1 }, time.Second, 5*time.Millisecond)
	p, m, ok := b.Queue().FindAndRemove(protocol.KindFire)
	require.True(t, ok)
	assert.Equal(t, a.Addr().String(), p.From.String())
	assert.False(t, p.At.IsZero())
	assert.Equal(t, msg, m)
}

func TestEndpoint_OversizedAndEmptyDatagramsMarkSender(t *testing.T) {
	ep := startEndpoint(t)

	big, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer big.Close()
	empty, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer empty.Close()

	_, err = big.WriteTo(make([]byte, protocol.MaxSize+10), ep.Addr())
	require.NoError(t, err)
	_, err = empty.WriteTo([]byte{}, ep.Addr())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ep.BadClients().Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, ep.Queue().Len())

	got := map[string]bool{}
	for _, a := range ep.BadClients().Drain() {
		got[a.String()] = true
	}
	assert.True(t, got[big.LocalAddr().String()])
	assert.True(t, got[empty.LocalAddr().String()])
	assert.Equal(t, 0, ep.BadClients().Len())
}

func TestEndpoint_SendRejectsUnknownMessage(t *testing.T) {
	ep := startEndpoint(t)
	assert.ErrorIs(t, ep.Send(nil, ep.Addr()), protocol.ErrUnknownKind)
}
