// Package listener implements the two tracker sockets: the UDP endpoint that
// receives server registrations and the TCP endpoint that serves listings.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/woozymasta/hltracker/internal/logger"
	"github.com/woozymasta/hltracker/internal/protocol"
	"github.com/woozymasta/hltracker/internal/ratelimit"
)

// ErrUnsupportedProtocol is returned for registrations from IPv6 peers.
var ErrUnsupportedProtocol = errors.New("listener: only IPv4 registrations are supported")

// Registration is a decoded datagram together with its IPv4 source.
type Registration struct {
	Addr   netip.Addr
	Record protocol.RegistrationRecord
}

// RegistrationListener receives registration datagrams. It never replies.
type RegistrationListener struct {
	conn    *net.UDPConn
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// ListenRegistration binds the UDP registration socket on address (host:port).
// A nil limiter disables per-source rate limiting.
func ListenRegistration(ctx context.Context, address string, limiter *ratelimit.Limiter) (*RegistrationListener, error) {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to start registration listener on %s: %w", address, err)
	}

	l := &RegistrationListener{
		conn:    pc.(*net.UDPConn),
		limiter: limiter,
		log:     logger.Component("registration"),
	}
	l.log.Info().Str("address", pc.LocalAddr().String()).Msg("Registration listener started")

	return l, nil
}

// Addr returns the bound local address.
func (l *RegistrationListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Close closes the socket.
func (l *RegistrationListener) Close() error {
	return l.conn.Close()
}

// Serve reads datagrams until ctx is done and sends every valid registration
// to out, blocking while out is full. Bad datagrams are dropped and never
// stop the loop. Serve closes the socket before returning.
func (l *RegistrationListener) Serve(ctx context.Context, out chan<- Registration) error {
	stop := context.AfterFunc(ctx, func() { _ = l.conn.Close() })
	defer stop()
	defer func() { _ = l.conn.Close() }()

	// one spare byte so oversized datagrams show up as trailing data
	buf := make([]byte, protocol.MaxRegistrationLen+1)
	for {
		n, src, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				l.log.Info().Msg("Registration listener stopping")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			l.log.Error().Err(err).Msg("UDP read error")
			continue
		}

		reg, err := DecodeDatagram(src.Addr(), buf[:n])
		if err != nil {
			l.log.Debug().Err(err).Str("remote", src.String()).Int("bytes", n).Msg("Dropped datagram")
			continue
		}

		if !l.limiter.Allow(reg.Addr.String()) {
			l.log.Debug().Str("remote", src.String()).Msg("Dropped by rate limit")
			continue
		}

		select {
		case out <- reg:
		case <-ctx.Done():
			l.log.Info().Msg("Registration listener stopping")
			return nil
		}
	}
}

// DecodeDatagram validates the source address and decodes the payload.
func DecodeDatagram(src netip.Addr, b []byte) (Registration, error) {
	addr := src.Unmap()
	if !addr.Is4() {
		return Registration{}, fmt.Errorf("%w: %s", ErrUnsupportedProtocol, src)
	}

	rec, err := protocol.DecodeRegistration(b)
	if err != nil {
		return Registration{}, err
	}

	return Registration{Addr: addr, Record: rec}, nil
}
