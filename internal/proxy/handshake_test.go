package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ocx/oefbroker/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestHandshakeSucceeds(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan error, 1)
	go func() {
		var id wire.AgentServerID
		if err := readMessage(serverConn, 0, &id); err != nil {
			serverDone <- err
			return
		}
		if err := writeMessage(serverConn, wire.ServerPhrase{Phrase: "crypto", Failure: false}); err != nil {
			serverDone <- err
			return
		}
		var answer wire.AgentServerAnswer
		if err := readMessage(serverConn, 0, &answer); err != nil {
			serverDone <- err
			return
		}
		status := answer.Answer == wire.ReverseString("crypto")
		serverDone <- writeMessage(serverConn, wire.ServerConnected{Status: status})
	}()

	err := Handshake(context.Background(), clientConn, "Agent1", 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, <-serverDone)
}

func TestHandshakeFailsOnRefusal(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		var id wire.AgentServerID
		readMessage(serverConn, 0, &id)
		writeMessage(serverConn, wire.ServerPhrase{Failure: true})
	}()

	err := Handshake(context.Background(), clientConn, "Agent1", 0, time.Second)
	require.ErrorIs(t, err, ErrHandshakeFailed)
}

func TestHandshakeTimesOut(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	err := Handshake(context.Background(), clientConn, "Agent1", 0, 20*time.Millisecond)
	require.Error(t, err)
}
