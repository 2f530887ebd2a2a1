package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
)

// DialConfig parameterizes a client-initiated session.
type DialConfig struct {
	LocalUCMEP        uint32
	Credentials       Credentials
	OutstandingWindow int
	Logger            *log.Logger
	IdleTimeout       time.Duration
	HandshakeTimeout  time.Duration
}

// Dial opens a UDP socket to addr, sends the initial Invitation, and
// blocks until the session reaches StateEstablished, fails, or
// cfg.HandshakeTimeout (default 5s) elapses. The returned Session's
// read loop keeps running in a background goroutine until ctx is
// cancelled or the session closes.
func Dial(ctx context.Context, addr string, cfg DialConfig) (*Session, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolving %s: %w", addr, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", addr, err)
	}

	sender := SenderFunc(func(datagram []byte) error {
		_, err := conn.Write(datagram)
		return err
	})

	sess := NewSession(sender, SessionConfig{
		Role:              RoleClient,
		LocalUCMEP:        cfg.LocalUCMEP,
		Credentials:       cfg.Credentials,
		OutstandingWindow: cfg.OutstandingWindow,
		Logger:            cfg.Logger,
	})

	readCtx, cancelRead := context.WithCancel(ctx)
	go readLoop(readCtx, conn, sess)
	go sess.RunLiveness(readCtx, cfg.IdleTimeout)

	if err := sess.StartInvitation(); err != nil {
		cancelRead()
		_ = conn.Close()
		return nil, err
	}

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			cancelRead()
			_ = conn.Close()
			return nil, fmt.Errorf("transport: handshake with %s timed out", addr)
		case <-ticker.C:
			switch sess.State() {
			case StateEstablished:
				return sess, nil
			case StateIdle, StateClosed:
				// A Nak (for example a rejected auth reply) drops the
				// handshake back to Idle.
				cancelRead()
				_ = conn.Close()
				return nil, fmt.Errorf("transport: handshake with %s failed", addr)
			}
		}
	}
}

func readLoop(ctx context.Context, conn *net.UDPConn, sess *Session) {
	defer conn.Close()
	buf := make([]byte, 64*1024)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		data := append([]byte(nil), buf[:n]...)
		if err := sess.HandleDatagram(data); err != nil {
			sess.diagnose(err)
		}
	}
}
