package transport

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9vty/ump2/internal/logx"
	"github.com/kb9vty/ump2/internal/ump"
)

// Role distinguishes which side of a handshake a Session is playing.
// Either role can end up on either side of a glare resolution, so the
// field is mutable during the handshake.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Sender delivers an already-framed datagram to the peer. Session never
// touches a net.PacketConn directly; Manager (server side) and Dial
// (client side) own the socket and hand Session a Sender, the same
// separation of "protocol state machine" from "socket plumbing" the
// teacher keeps between kissnet.go's frame codec and server.go's
// goroutine-per-connection socket loop.
type Sender interface {
	SendDatagram(data []byte) error
}

// SenderFunc adapts a function to a Sender.
type SenderFunc func(data []byte) error

func (f SenderFunc) SendDatagram(data []byte) error { return f(data) }

// Session is one Network MIDI 2.0 UDP session: a handshake, an
// authentication exchange, and then a reliable, in-order stream of UMP
// packets in both directions. Lost UMP Data is recovered through Retransmit
// Request; a Session does not piggyback earlier UMP Data onto new datagrams.
type Session struct {
	mu sync.Mutex

	role  Role
	state State
	creds Credentials

	localUCMEP  uint32
	remoteUCMEP uint32

	nonce          []byte // server->client challenge, held by whichever side generated it
	expectedDigest []byte // server side: digest we expect back

	sender Sender
	log    *log.Logger

	window int
	out    *outstandingBuffer
	in     *reassembler
	txSeq  uint16

	packets     chan ump.Packet
	diagnostics chan error

	lastRx       time.Time
	lastTx       time.Time
	pingOutstanding int
	maxPingAttempts int
}

// SessionConfig parameterizes a new Session.
type SessionConfig struct {
	Role            Role
	LocalUCMEP      uint32
	Credentials     Credentials
	OutstandingWindow int
	MaxPingAttempts int
	Logger          *log.Logger
}

// NewSession constructs a Session in StateIdle, ready to either originate
// (Client role, call StartInvitation) or receive (Server role, call
// HandleDatagram with the peer's first Invitation) a handshake.
func NewSession(sender Sender, cfg SessionConfig) *Session {
	window := cfg.OutstandingWindow
	if window < 1 {
		window = 64
	}
	maxPing := cfg.MaxPingAttempts
	if maxPing < 1 {
		maxPing = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logx.Discard()
	}

	return &Session{
		role:            cfg.Role,
		state:           StateIdle,
		creds:           cfg.Credentials,
		localUCMEP:      cfg.LocalUCMEP,
		sender:          sender,
		log:             logger,
		window:          window,
		out:             newOutstandingBuffer(window),
		in:              newReassembler(),
		packets:         make(chan ump.Packet, 256),
		diagnostics:     make(chan error, 16),
		maxPingAttempts: maxPing,
	}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Packets yields UMP packets in the order the peer originally sent them.
func (s *Session) Packets() <-chan ump.Packet { return s.packets }

// Diagnostics yields non-fatal protocol events a caller may want to log:
// retransmit errors, auth failures, unexpected commands.
func (s *Session) Diagnostics() <-chan error { return s.diagnostics }

func (s *Session) diagnose(err error) {
	select {
	case s.diagnostics <- err:
	default:
	}
}

// StartInvitation begins a client-initiated handshake.
func (s *Session) StartInvitation() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return &ErrInvalidTransition{From: s.state, Event: "send-invitation"}
	}

	next, err := transition(s.state, "send-invitation")
	if err != nil {
		return err
	}
	s.state = next

	return s.sendInvitationLocked()
}

func (s *Session) sendInvitationLocked() error {
	// The initial Invitation always uses the plain code: whether a
	// challenge follows is the server's decision (its own configured
	// Credentials), not something the client announces up front.
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, s.localUCMEP)
	return s.sendCommandLocked(Command{Code: CodeInvitation, Payload: payload})
}

func (s *Session) sendCommandLocked(cmd Command) error {
	datagram, err := EncodeDatagram([]Command{cmd})
	if err != nil {
		return fmt.Errorf("transport: encoding command 0x%02x: %w", cmd.Code, err)
	}
	s.lastTx = now()
	return s.sender.SendDatagram(datagram)
}

// now is a seam so tests can't accidentally depend on wall-clock jitter;
// production always uses time.Now.
var now = time.Now

// HandleDatagram decodes and dispatches every command in a received
// datagram. It is the single entry point a Manager or Dial read loop
// feeds with bytes off the wire.
func (s *Session) HandleDatagram(data []byte) error {
	cmds, err := DecodeDatagram(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastRx = now()
	s.mu.Unlock()

	for _, cmd := range cmds {
		if err := s.handleCommand(cmd); err != nil {
			s.diagnose(err)
		}
	}
	return nil
}

func (s *Session) handleCommand(cmd Command) error {
	switch cmd.Code {
	case CodeInvitation:
		return s.handleInvitation(cmd)
	case CodeInvitationWithAuth, CodeInvitationWithUserAuth:
		// The server is always the one to introduce these codes, as the
		// auth challenge carrying its nonce; a client never sends them.
		return s.handleInvitationChallenge(cmd)
	case CodeInvitationAccepted:
		return s.handleInvitationAccepted(cmd)
	case CodeInvitationPending:
		return nil
	case CodeInvitationAuthReply:
		return s.handleAuthReply(cmd)
	case CodePing:
		return s.handlePing(cmd)
	case CodePingReply:
		return s.handlePingReply(cmd)
	case CodeUMPData:
		return s.handleUMPData(cmd)
	case CodeRetransmitRequest:
		return s.handleRetransmitRequest(cmd)
	case CodeRetransmitError:
		return s.handleRetransmitError(cmd)
	case CodeSessionReset:
		return s.handleSessionReset(cmd)
	case CodeSessionResetReply:
		return nil
	case CodeNak:
		return s.handleNak()
	case CodeBye:
		return s.handleBye()
	case CodeByeReply:
		return s.handleByeReply()
	default:
		return fmt.Errorf("transport: unhandled command code 0x%02x", cmd.Code)
	}
}

func (s *Session) handleInvitation(cmd Command) error {
	if len(cmd.Payload) < 4 {
		return fmt.Errorf("transport: invitation payload too short")
	}
	remoteUCMEP := binary.BigEndian.Uint32(cmd.Payload[0:4])

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StatePendingInvite && s.role == RoleClient {
		// Glare: both sides sent an Invitation before either saw the
		// other's. Lowest UCMEP wins and keeps driving the handshake;
		// the loser accepts the winner's invitation instead. The loser
		// drops back to Idle first so the normal recv-invitation
		// transition below re-enters PendingInvite as the acceptor,
		// rather than the glare-loss short-circuit in the state table
		// (StatePendingInvite + "recv-invitation" -> Idle, which models
		// giving up, not switching roles).
		if s.localUCMEP < remoteUCMEP {
			s.log.Debug("glare resolved in our favor, ignoring peer invitation", "local", s.localUCMEP, "remote", remoteUCMEP)
			return nil
		}
		s.log.Debug("glare resolved against us, accepting peer invitation", "local", s.localUCMEP, "remote", remoteUCMEP)
		s.role = RoleServer
		s.state = StateIdle
	}

	s.remoteUCMEP = remoteUCMEP

	next, err := transition(s.state, "recv-invitation")
	if err != nil {
		return err
	}
	s.state = next

	if s.creds.Mode == AuthNone {
		s.state, err = transition(s.state, "send-invitation-accepted")
		if err != nil {
			return err
		}
		return s.sendCommandLocked(Command{Code: CodeInvitationAccepted})
	}

	nonce, err := newNonce()
	if err != nil {
		return err
	}
	s.nonce = nonce

	switch s.creds.Mode {
	case AuthSharedKey:
		s.expectedDigest = sharedKeyDigest(nonce, s.creds.SharedKey)
	case AuthUserPass:
		s.expectedDigest = userPassDigest(nonce, s.creds.Username, s.creds.Password)
	}

	s.state, err = transition(s.state, "send-auth-challenge")
	if err != nil {
		return err
	}

	code := CodeInvitationWithAuth
	if s.creds.Mode == AuthUserPass {
		code = CodeInvitationWithUserAuth
	}
	return s.sendCommandLocked(Command{Code: code, Payload: nonceCommandPayload(nonce)})
}

func (s *Session) handleAuthReply(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expectedDigest != nil {
		// We are the challenger (server role): verify the reply.
		if !verifyDigest(cmd.Payload, s.expectedDigest) {
			next, _ := transition(s.state, "auth-failed")
			s.state = next
			return s.sendCommandLocked(Command{Code: CodeNak})
		}
		next, err := transition(s.state, "send-invitation-accepted")
		if err != nil {
			return err
		}
		s.state = next
		return s.sendCommandLocked(Command{Code: CodeInvitationAccepted})
	}

	// We are the one being challenged: this arrived as the nonce carried
	// inside CodeInvitationWithAuth/CodeInvitationWithUserAuth, handled in
	// handleInvitationChallenge instead. A bare AuthReply with nothing to
	// verify against is a protocol error.
	return fmt.Errorf("transport: unexpected auth reply")
}

// handleInvitationChallenge is invoked when a client receives
// CodeInvitationWithAuth/CodeInvitationWithUserAuth from the server: the
// command carries the nonce challenge rather than a digest.
func (s *Session) handleInvitationChallenge(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := transition(s.state, "recv-auth-challenge")
	if err != nil {
		return err
	}
	s.state = next

	var digest []byte
	switch s.creds.Mode {
	case AuthSharedKey:
		digest = sharedKeyDigest(cmd.Payload, s.creds.SharedKey)
	case AuthUserPass:
		digest = userPassDigest(cmd.Payload, s.creds.Username, s.creds.Password)
	default:
		return fmt.Errorf("transport: received auth challenge but no credentials configured")
	}

	return s.sendCommandLocked(Command{Code: CodeInvitationAuthReply, Payload: digestCommandPayload(digest)})
}

func (s *Session) handleInvitationAccepted(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := transition(s.state, "recv-invitation-accepted")
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Session) handlePing(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCommandLocked(Command{Code: CodePingReply, Payload: append([]byte(nil), cmd.Payload...)})
}

func (s *Session) handlePingReply(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingOutstanding = 0
	return nil
}

func (s *Session) handleUMPData(cmd Command) error {
	words, err := parseUMPDataPayload(cmd.Payload)
	if err != nil {
		return err
	}
	seq := cmd.Specific

	s.mu.Lock()
	delivered, gap := s.in.feed(seq, words)
	s.mu.Unlock()

	for _, w := range delivered {
		pkt, _, err := ump.DecodePacket(w)
		if err != nil {
			s.diagnose(fmt.Errorf("transport: decoding delivered UMP: %w", err))
			continue
		}
		s.packets <- pkt
	}

	if len(gap) > 0 {
		return s.sendRetransmitRequest(gap)
	}
	return nil
}

// sendRetransmitRequest asks the peer to resend a contiguous run of
// missing sequence numbers. gap is ascending (reassembler.feed builds it
// that way), so its first and last entries bound the span; any sequence
// inside the span that gap itself skipped (already buffered out of order)
// gets harmlessly re-requested too, since duplicate UMP Data is dropped on
// arrival.
func (s *Session) sendRetransmitRequest(gap []uint16) error {
	first := gap[0]
	count := uint16(seqDiff(gap[len(gap)-1], first)) + 1
	payload := retransmitRequestPayload(first, count)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCommandLocked(Command{Code: CodeRetransmitRequest, Payload: payload})
}

func (s *Session) handleRetransmitRequest(cmd Command) error {
	first, count, err := parseRetransmitRequestPayload(cmd.Payload)
	if err != nil {
		return fmt.Errorf("transport: malformed retransmit request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := uint16(0); i < count; i++ {
		seq := first + i
		words, ok := s.out.lookup(seq)
		if !ok {
			if err := s.sendCommandLocked(Command{Code: CodeRetransmitError, Payload: retransmitErrorPayload(ReasonSequenceUnavailable, seq)}); err != nil {
				return err
			}
			continue
		}
		if err := s.sendCommandLocked(Command{Code: CodeUMPData, Specific: seq, Payload: umpDataPayload(words)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleRetransmitError(cmd Command) error {
	reason, seq, err := parseRetransmitErrorPayload(cmd.Payload)
	if err != nil {
		s.diagnose(fmt.Errorf("transport: peer reported unrecoverable retransmit"))
		return nil
	}
	s.diagnose(fmt.Errorf("transport: peer reported unrecoverable retransmit for sequence %d (reason 0x%04x)", seq, reason))
	return nil
}

func (s *Session) handleSessionReset(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in = newReassembler()
	s.out = newOutstandingBuffer(s.window)
	s.txSeq = 0
	return s.sendCommandLocked(Command{Code: CodeSessionResetReply})
}

func (s *Session) handleNak() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, _ := transition(s.state, "auth-failed")
	s.state = next
	s.diagnose(fmt.Errorf("transport: authentication rejected by peer"))
	return nil
}

func (s *Session) handleBye() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := transition(s.state, "recv-bye")
	if err != nil {
		return err
	}
	s.state = next
	if err := s.sendCommandLocked(Command{Code: CodeByeReply}); err != nil {
		return err
	}
	s.state, _ = transition(s.state, "send-bye-reply")
	return nil
}

// handleByeReply finalizes the local half of a graceful shutdown. It
// deliberately does not close s.packets: handleUMPData can still be
// delivering a packet concurrently on another goroutine's call into
// HandleDatagram, and closing a channel with a pending concurrent send
// would panic. Callers detect the end of the stream through State(), not
// channel closure.
func (s *Session) handleByeReply() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := transition(s.state, "recv-bye-reply")
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Close initiates a graceful shutdown, sending Bye. The caller should keep
// feeding HandleDatagram until the state reaches StateClosed or a timeout
// elapses.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEstablished {
		return nil
	}

	next, err := transition(s.state, "send-bye")
	if err != nil {
		return err
	}
	s.state = next
	return s.sendCommandLocked(Command{Code: CodeBye})
}

// SendPacket encodes and transmits one UMP packet, recording it in the
// outstanding buffer for retransmission.
func (s *Session) SendPacket(p ump.Packet) error {
	words := p.Words()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEstablished {
		return fmt.Errorf("transport: session not established (state=%s)", s.state)
	}

	seq := s.txSeq
	s.txSeq++
	s.out.push(seq, words)

	return s.sendCommandLocked(Command{Code: CodeUMPData, Specific: seq, Payload: umpDataPayload(words)})
}

// SendPing emits a liveness Ping carrying the current wall-clock time in
// Unix nanoseconds as an 8-byte payload, echoed back by the peer's Ping
// Reply.
func (s *Session) SendPing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEstablished {
		return nil
	}

	s.pingOutstanding++
	if s.pingOutstanding > s.maxPingAttempts {
		next, _ := transition(s.state, "ping-timeout")
		s.state = next
		s.diagnose(fmt.Errorf("transport: peer unresponsive after %d pings", s.maxPingAttempts))
		return nil
	}

	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(now().UnixNano()))
	return s.sendCommandLocked(Command{Code: CodePing, Payload: payload})
}
