package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/woozymasta/hltracker/internal/logger"
	"github.com/woozymasta/hltracker/internal/protocol"
)

// DefaultHandshakeTimeout bounds how long a listing connection may take.
const DefaultHandshakeTimeout = 10 * time.Second

// Snapshotter returns a consistent listing of live servers.
type Snapshotter interface {
	Snapshot() (protocol.UpdateRecord, []protocol.ServerRecord)
}

// TrackerListener serves listings over TCP: one header in, one listing out,
// then the connection is closed.
type TrackerListener struct {
	ln      net.Listener
	source  Snapshotter
	log     zerolog.Logger
	wg      sync.WaitGroup
	timeout time.Duration
}

// ListenTracker binds the TCP listing socket on address (host:port).
// A zero timeout disables connection deadlines.
func ListenTracker(ctx context.Context, address string, source Snapshotter, timeout time.Duration) (*TrackerListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to start tracker listener on %s: %w", address, err)
	}

	t := &TrackerListener{
		ln:      ln,
		source:  source,
		timeout: timeout,
		log:     logger.Component("tracker"),
	}
	t.log.Info().Str("address", ln.Addr().String()).Msg("Tracker listener started")

	return t, nil
}

// Addr returns the bound local address.
func (t *TrackerListener) Addr() net.Addr {
	return t.ln.Addr()
}

// Close closes the listening socket.
func (t *TrackerListener) Close() error {
	return t.ln.Close()
}

// Serve accepts connections until ctx is done, handling each in its own
// goroutine, and waits for in-flight connections before returning.
func (t *TrackerListener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = t.ln.Close() })
	defer stop()
	defer t.wg.Wait()
	defer func() { _ = t.ln.Close() }()

	for {
		conn, err := t.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				t.log.Info().Msg("Tracker listener stopping")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			t.log.Error().Err(err).Msg("Accept error")
			continue
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handle(ctx, conn)
		}()
	}
}

func (t *TrackerListener) handle(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	remote := conn.RemoteAddr().String()
	if t.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(t.timeout))
	}

	if _, err := protocol.NewServerCodec().Read(conn); err != nil {
		t.log.Debug().Err(err).Str("remote", remote).Msg("Handshake failed")
		return
	}

	update, servers := t.source.Snapshot()
	if err := protocol.NewListingEncoder(conn).WriteListing(update, servers); err != nil {
		t.log.Warn().Err(err).Str("remote", remote).Msg("Failed to send listing")
		return
	}

	t.log.Debug().
		Str("remote", remote).
		Uint16("servers", update.TotalServers).
		Msg("Listing sent")
}
