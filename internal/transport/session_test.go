package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9vty/ump2/internal/ump"
)

// wireLoopback connects two Sessions' Sender callbacks through buffered
// channels drained on their own goroutines, so a command handled inside
// one session's locked section never re-enters that same session's mutex
// on the same call stack (the way two real UDP sockets would never do
// either).
func wireLoopback(t *testing.T, a, b *Session) (stop func()) {
	t.Helper()
	toB := make(chan []byte, 256)
	toA := make(chan []byte, 256)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case d := <-toB:
				_ = b.HandleDatagram(d)
			case <-done:
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case d := <-toA:
				_ = a.HandleDatagram(d)
			case <-done:
				return
			}
		}
	}()

	a.sender = SenderFunc(func(d []byte) error {
		toB <- append([]byte(nil), d...)
		return nil
	})
	b.sender = SenderFunc(func(d []byte) error {
		toA <- append([]byte(nil), d...)
		return nil
	})

	return func() { close(done) }
}

func waitForState(t *testing.T, s *Session, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session never reached state %s, stuck at %s", want, s.State())
}

func newLoopbackPair(t *testing.T, creds Credentials) (client, server *Session, stop func()) {
	t.Helper()

	client = NewSession(nil, SessionConfig{Role: RoleClient, LocalUCMEP: 10, Credentials: creds})
	server = NewSession(nil, SessionConfig{Role: RoleServer, LocalUCMEP: 20, Credentials: creds})

	stop = wireLoopback(t, client, server)
	return client, server, stop
}

// TestHandshakeWithoutAuth covers spec scenario 3: a client invites a
// server configured for no authentication and both sides reach
// Established.
func TestHandshakeWithoutAuth(t *testing.T) {
	client, server, stop := newLoopbackPair(t, Credentials{Mode: AuthNone})
	defer stop()

	require.NoError(t, client.StartInvitation())

	waitForState(t, client, StateEstablished, time.Second)
	waitForState(t, server, StateEstablished, time.Second)
}

func TestHandshakeWithSharedKeyAuth(t *testing.T) {
	creds := Credentials{Mode: AuthSharedKey, SharedKey: "s3cr3t"}
	client, server, stop := newLoopbackPair(t, creds)
	defer stop()

	require.NoError(t, client.StartInvitation())

	waitForState(t, client, StateEstablished, time.Second)
	waitForState(t, server, StateEstablished, time.Second)
}

func TestHandshakeWithWrongSharedKeyIsRejected(t *testing.T) {
	client := NewSession(nil, SessionConfig{Role: RoleClient, LocalUCMEP: 10, Credentials: Credentials{Mode: AuthSharedKey, SharedKey: "right"}})
	server := NewSession(nil, SessionConfig{Role: RoleServer, LocalUCMEP: 20, Credentials: Credentials{Mode: AuthSharedKey, SharedKey: "wrong"}})
	stop := wireLoopback(t, client, server)
	defer stop()

	require.NoError(t, client.StartInvitation())

	select {
	case err := <-client.Diagnostics():
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected a diagnostic for the rejected auth reply")
	}
}

// TestRetransmissionOfDroppedSequence covers spec scenario 4: a UMP Data
// command is lost in transit, the receiver detects the gap and issues a
// Retransmit Request, and the sender's outstanding buffer satisfies it
// without the application ever seeing a reorder.
func TestRetransmissionOfDroppedSequence(t *testing.T) {
	client, server, stop := newLoopbackPair(t, Credentials{Mode: AuthNone})
	defer stop()

	require.NoError(t, client.StartInvitation())
	waitForState(t, client, StateEstablished, time.Second)
	waitForState(t, server, StateEstablished, time.Second)

	note0 := ump.NewNoteOn(0, 0, 60, 100)
	note1 := ump.NewNoteOn(0, 0, 61, 100)
	note2 := ump.NewNoteOn(0, 0, 62, 100)

	require.NoError(t, client.SendPacket(note0))

	// Simulate seq 1 being dropped on the wire: build and record it in
	// the outstanding buffer as SendPacket would, but never deliver the
	// datagram.
	lostWords := note1.Words()
	client.mu.Lock()
	lostSeq := client.txSeq
	client.txSeq++
	client.out.push(lostSeq, lostWords)
	client.mu.Unlock()

	require.NoError(t, client.SendPacket(note2))

	var got []ump.Packet
	for i := 0; i < 3; i++ {
		select {
		case p := <-server.Packets():
			got = append(got, p)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for packet %d", i)
		}
	}

	assert.Equal(t, []ump.Packet{note0, note1, note2}, got)
}

// TestGlareResolvesByLowestUCMEP covers the spec's open question on
// simultaneous Invitations: both peers originate a handshake before seeing
// the other's Invitation, and the lower UCMEP is expected to keep driving
// while the higher flips to the acceptor role instead of giving up.
func TestGlareResolvesByLowestUCMEP(t *testing.T) {
	var aOut, bOut [][]byte
	a := NewSession(SenderFunc(func(d []byte) error {
		aOut = append(aOut, append([]byte(nil), d...))
		return nil
	}), SessionConfig{Role: RoleClient, LocalUCMEP: 10})
	b := NewSession(SenderFunc(func(d []byte) error {
		bOut = append(bOut, append([]byte(nil), d...))
		return nil
	}), SessionConfig{Role: RoleClient, LocalUCMEP: 20})

	require.NoError(t, a.StartInvitation())
	require.NoError(t, b.StartInvitation())
	require.Len(t, aOut, 1)
	require.Len(t, bOut, 1)

	// Each peer now delivers the other's Invitation while already
	// PendingInvite itself: this is the glare condition.
	require.NoError(t, a.HandleDatagram(bOut[0]))
	require.NoError(t, b.HandleDatagram(aOut[0]))

	// a has the lower UCMEP (10 < 20) and wins: it ignores b's Invitation
	// and stays PendingInvite, waiting for b to accept its own.
	assert.Equal(t, StatePendingInvite, a.State())

	// b loses: it flips to the server role and accepts a's Invitation
	// immediately, rather than resetting to Idle and stalling.
	assert.Equal(t, RoleServer, b.role)
	assert.Equal(t, StateEstablished, b.State())
	require.Len(t, bOut, 2)

	require.NoError(t, a.HandleDatagram(bOut[1]))
	assert.Equal(t, StateEstablished, a.State())
}
