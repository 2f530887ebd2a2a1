package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9vty/ump2/internal/logx"
)

// packetConn is the subset of net.PacketConn Manager needs; a narrow
// interface so tests can stand in a loopback pair without a real kernel
// UDP socket.
type packetConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	Close() error
	SetReadDeadline(time.Time) error
}

// Manager multiplexes many peer Sessions over one UDP socket, keyed by
// remote address, the same sync.Map-of-connections shape
// somesmallstudio-go-midi-rtp's session.go uses to track concurrent RTP
// MIDI sessions from a single listener.
type Manager struct {
	conn packetConn
	log  *log.Logger

	newLocalUCMEP func() uint32
	creds         Credentials
	window        int

	mu       sync.Mutex
	sessions map[string]*Session

	accept chan *Session
}

// ManagerConfig parameterizes a Manager.
type ManagerConfig struct {
	Credentials       Credentials
	OutstandingWindow int
	Logger            *log.Logger
	// LocalUCMEP assigns this endpoint's identifier; it's a function
	// rather than a fixed value so each accepted Session can be given a
	// distinct one if the caller wants that (most servers just return a
	// constant).
	LocalUCMEP func() uint32
}

// NewManager wraps conn. It does not read from the socket; call Serve to
// begin accepting peer sessions.
func NewManager(conn packetConn, cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logx.Discard()
	}
	ucmep := cfg.LocalUCMEP
	if ucmep == nil {
		ucmep = func() uint32 { return 0 }
	}

	return &Manager{
		conn:          conn,
		log:           logger,
		newLocalUCMEP: ucmep,
		creds:         cfg.Credentials,
		window:        cfg.OutstandingWindow,
		sessions:      make(map[string]*Session),
		accept:        make(chan *Session, 16),
	}
}

// Accept yields newly-established sessions as their handshake completes.
func (m *Manager) Accept() <-chan *Session { return m.accept }

// Serve reads datagrams off the socket and demultiplexes them to the
// owning Session until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context) error {
	buf := make([]byte, 64*1024)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = m.conn.SetReadDeadline(now().Add(500 * time.Millisecond))
		n, addr, err := m.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("transport: manager read: %w", err)
		}

		data := append([]byte(nil), buf[:n]...)
		m.dispatch(ctx, addr, data)
	}
}

func (m *Manager) dispatch(ctx context.Context, addr net.Addr, data []byte) {
	key := addr.String()

	m.mu.Lock()
	sess, ok := m.sessions[key]
	if !ok {
		sender := SenderFunc(func(datagram []byte) error {
			_, err := m.conn.WriteTo(datagram, addr)
			return err
		})
		sess = NewSession(sender, SessionConfig{
			Role:              RoleServer,
			LocalUCMEP:        m.newLocalUCMEP(),
			Credentials:       m.creds,
			OutstandingWindow: m.window,
			Logger:            m.log,
		})
		m.sessions[key] = sess
		go m.watchEstablished(ctx, key, sess)
	}
	m.mu.Unlock()

	if err := sess.HandleDatagram(data); err != nil {
		m.log.Debug("session datagram error", "peer", key, "err", err)
	}
}

// watchEstablished pushes a Session onto the Accept channel the moment it
// reaches StateEstablished, and forgets it once it closes.
func (m *Manager) watchEstablished(ctx context.Context, key string, sess *Session) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	announced := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := sess.State()
			if !announced && st == StateEstablished {
				announced = true
				select {
				case m.accept <- sess:
				default:
				}
			}
			if st == StateClosed {
				m.mu.Lock()
				delete(m.sessions, key)
				m.mu.Unlock()
				return
			}
		}
	}
}

// Close shuts down the underlying socket.
func (m *Manager) Close() error {
	return m.conn.Close()
}
