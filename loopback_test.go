package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeknom/udp-game-example/server/internal/net/proto"
	"github.com/jeknom/udp-game-example/server/internal/net/udp"
)

func loopbackClient(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// awaitType reads until a datagram of the wanted type arrives or the
// deadline passes.
func awaitType(t *testing.T, conn *net.UDPConn, want proto.Type, within time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(within)))
	buf := make([]byte, 16)
	for {
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err, "waiting for %s", want)
		if kind, ok := proto.Classify(buf[:n]); ok && kind == want {
			return
		}
	}
}

func TestLoopbackSessionReachesInProgress(t *testing.T) {
	if testing.Short() {
		t.Skip("uses real sockets and timers")
	}
	transport, err := udp.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer transport.Close()

	hub := NewHub(DefaultHubConfig(), transport, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	server := transport.LocalAddr()
	a := loopbackClient(t)
	b := loopbackClient(t)

	send := func(conn *net.UDPConn, kind proto.Type) {
		_, err := conn.WriteTo(proto.Encode(kind), server)
		require.NoError(t, err)
	}

	send(a, proto.TypeJoinGame)
	require.Eventually(t, func() bool {
		return len(hub.Feed().Latest().Session.Slots) == 1
	}, 2*time.Second, 5*time.Millisecond)
	send(b, proto.TypeJoinGame)

	// Unready players are nudged once a second.
	awaitType(t, a, proto.TypePlayerReady, 3*time.Second)

	send(a, proto.TypePlayerReady)
	send(b, proto.TypePlayerReady)

	awaitType(t, a, proto.TypeGameUpdate, 3*time.Second)
	awaitType(t, b, proto.TypeGameUpdate, 3*time.Second)
	assert.Equal(t, "InProgress", hub.Feed().Latest().Session.State)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestLoopbackSurvivesGarbage(t *testing.T) {
	if testing.Short() {
		t.Skip("uses real sockets and timers")
	}
	transport, err := udp.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer transport.Close()

	hub := NewHub(DefaultHubConfig(), transport, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	client := loopbackClient(t)
	for _, payload := range [][]byte{{}, {0xff}, {0x00, 0x00}, make([]byte, 1400)} {
		_, err := client.WriteTo(payload, transport.LocalAddr())
		require.NoError(t, err)
	}
	_, err = client.WriteTo([]byte{0x01}, transport.LocalAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(hub.Feed().Latest().Session.Slots) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "WaitingForPlayersToConnect", hub.Feed().Latest().Session.State)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}
