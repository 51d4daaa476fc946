package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ocx/oefbroker/internal/wire"
)

// HandshakeState names the four-step state machine's states (spec.md
// §4.7). Exported so tests and logging can name the step a failure
// occurred at.
type HandshakeState int

const (
	Connecting HandshakeState = iota
	SendingID
	AwaitPhrase
	SendingAnswer
	AwaitConnected
	Connected
	Failed
)

func (s HandshakeState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case SendingID:
		return "SendingID"
	case AwaitPhrase:
		return "AwaitPhrase"
	case SendingAnswer:
		return "SendingAnswer"
	case AwaitConnected:
		return "AwaitConnected"
	case Connected:
		return "Connected"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ErrHandshakeFailed is returned when the state machine reaches Failed,
// for any reason (I/O error, refused duplicate key, wrong challenge
// answer, broker-reported failure).
var ErrHandshakeFailed = errors.New("proxy: handshake failed")

// DefaultHandshakeTimeout resolves spec.md §9's open question: the
// source blocks forever on an unresponsive peer. Grounded on the
// teacher's internal/federation.HandshakeStateMachine, which wraps its
// steps in a step/total context.Context deadline instead of an unbounded
// condition-variable wait.
const DefaultHandshakeTimeout = 10 * time.Second

// Handshake drives the client side of the four-step state machine over
// conn, blocking the caller until a terminal state is reached. It returns
// nil on Connected and an error wrapping ErrHandshakeFailed on Failed.
// timeout bounds the whole exchange; pass 0 for DefaultHandshakeTimeout.
func Handshake(ctx context.Context, conn net.Conn, publicKey string, maxFrameBytes uint32, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	state := SendingID
	if err := writeMessage(conn, wire.AgentServerID{PublicKey: publicKey}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHandshakeFailed, state, err)
	}

	state = AwaitPhrase
	var phraseMsg wire.ServerPhrase
	if err := readMessage(conn, maxFrameBytes, &phraseMsg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHandshakeFailed, state, err)
	}
	if phraseMsg.Failure {
		return fmt.Errorf("%w: %s: broker refused connection", ErrHandshakeFailed, state)
	}

	state = SendingAnswer
	answer := wire.ReverseString(phraseMsg.Phrase)
	if err := writeMessage(conn, wire.AgentServerAnswer{Answer: answer}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHandshakeFailed, state, err)
	}

	state = AwaitConnected
	var connectedMsg wire.ServerConnected
	if err := readMessage(conn, maxFrameBytes, &connectedMsg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHandshakeFailed, state, err)
	}
	if !connectedMsg.Status {
		return fmt.Errorf("%w: %s: broker reported status=false", ErrHandshakeFailed, state)
	}

	return nil
}

func readMessage(conn net.Conn, maxFrameBytes uint32, v any) error {
	payload, err := wire.ReadFrame(conn, maxFrameBytes)
	if err != nil {
		return err
	}
	return wire.Unmarshal(payload, v)
}

func writeMessage(conn net.Conn, v any) error {
	payload, err := wire.Marshal(v)
	if err != nil {
		return err
	}
	return wire.WriteFrame(conn, payload)
}
