// Package client fetches server listings from Hotline trackers.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/woozymasta/hltracker/internal/protocol"
)

// DefaultTimeout bounds a fetch when ctx has no deadline.
const DefaultTimeout = 15 * time.Second

// ErrIncomplete is returned when a tracker closes before sending every announced record.
var ErrIncomplete = errors.New("client: listing ended early")

// Listing is one tracker response.
type Listing struct {
	Update  protocol.UpdateRecord
	Servers []protocol.ServerRecord
}

// Address appends the default listing port when address has none.
func Address(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(int(protocol.ListingPort)))
}

// Fetch connects to the tracker at address, sends the listing header and
// reads the whole listing.
func Fetch(ctx context.Context, address string) (*Listing, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", Address(address))
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(protocol.DefaultHeader().AppendTo(nil)); err != nil {
		return nil, fmt.Errorf("send header: %w", err)
	}

	listing, err := ReadListing(conn)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return listing, err
}

// ReadListing decodes a complete listing stream from r.
func ReadListing(r io.Reader) (*Listing, error) {
	dec := protocol.NewListingDecoder()
	listing := &Listing{}

	for {
		pkt, err := dec.Read(r)
		if errors.Is(err, io.EOF) {
			if dec.State() != protocol.StateDone {
				return listing, fmt.Errorf("%w: got %d of %d servers",
					ErrIncomplete, dec.Received(), listing.Update.TotalServers)
			}
			return listing, nil
		}
		if err != nil {
			return listing, err
		}

		switch pkt.Kind {
		case protocol.KindUpdate:
			listing.Update = pkt.Update
		case protocol.KindServer:
			listing.Servers = append(listing.Servers, pkt.Server)
		case protocol.KindComplete:
			return listing, nil
		}
	}
}
