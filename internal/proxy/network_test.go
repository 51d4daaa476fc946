package proxy

import (
	"log/slog"
	"net"
	"testing"

	"github.com/ocx/oefbroker/internal/wire"
	"github.com/stretchr/testify/require"
)

func newTestNetworkProxy(t *testing.T, conn net.Conn) *NetworkProxy {
	t.Helper()
	p := &NetworkProxy{
		key:           "Agent1",
		conn:          conn,
		maxFrameBytes: 0,
		logger:        slog.Default(),
		send:          make(chan []byte, 16),
		stopped:       make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

func TestNetworkProxySendMessageWritesFrame(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	proxy := newTestNetworkProxy(t, clientConn)
	defer proxy.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- proxy.SendMessage(1, 1, "Agent2", "Hello world") }()

	payload, err := wire.ReadFrame(serverConn, 0)
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	var msg wire.ClientMessage
	require.NoError(t, wire.Unmarshal(payload, &msg))
	require.NotNil(t, msg.SendMessage)
	require.Equal(t, "Agent2", msg.SendMessage.Dest)
	require.Equal(t, "Hello world", *msg.SendMessage.Content)
}

func TestNetworkProxyStopClosesConn(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	proxy := newTestNetworkProxy(t, clientConn)
	require.NoError(t, proxy.Stop())

	_, err := clientConn.Write([]byte{0})
	require.Error(t, err)
}
