package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Kind tags a Packet of the listing stream.
type Kind uint8

// Listing packet kinds. KindComplete has no wire representation.
const (
	KindHeader Kind = iota + 1
	KindUpdate
	KindServer
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindUpdate:
		return "update"
	case KindServer:
		return "server"
	case KindComplete:
		return "complete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Packet is one decoded item of a listing stream.
// Only the field matching Kind is set.
type Packet struct {
	Update UpdateRecord
	Server ServerRecord
	Header Header
	Kind   Kind
}

// State is the position of a ListingDecoder in the listing exchange.
type State uint8

// Decoder states.
const (
	StateInitialized State = iota
	StateReceivedHeader
	StateDone
)

// readChunk is the size of each read from the connection while decoding.
const readChunk = 1024

// ListingDecoder is the client side of the listing protocol: it parses
// Header, then UpdateRecords and ServerRecords, out of an append-only buffer,
// and emits KindComplete once as many servers as announced have arrived.
//
// UpdateRecords and ServerRecords carry no tag; a leading zero byte (the high
// byte of version 1) selects an UpdateRecord. A server listed as 0.0.0.0 is
// therefore read as an update.
type ListingDecoder struct {
	err      error
	buf      []byte
	total    uint16
	received uint16
	state    State
	hasTotal bool
}

// NewListingDecoder returns a decoder awaiting the tracker's header.
func NewListingDecoder() *ListingDecoder {
	return &ListingDecoder{}
}

// State returns the current decoder state.
func (d *ListingDecoder) State() State {
	return d.state
}

// Received returns the number of server records decoded so far.
func (d *ListingDecoder) Received() int {
	return int(d.received)
}

// Buffered returns the number of bytes fed but not yet decoded.
func (d *ListingDecoder) Buffered() int {
	return len(d.buf)
}

// Feed appends stream bytes to the decoder buffer.
func (d *ListingDecoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next decodes the next packet from the buffered bytes.
// It returns ErrShortBuffer when more input is needed, and io.EOF after
// KindComplete has been emitted. A header error is terminal.
func (d *ListingDecoder) Next() (Packet, error) {
	if d.err != nil {
		return Packet{}, d.err
	}

	switch d.state {
	case StateInitialized:
		h, n, err := DecodeHeader(d.buf)
		if err != nil {
			return Packet{}, err
		}
		if !h.IsValid() {
			d.err = fmt.Errorf("%w: %s", ErrInvalidHeader, h)
			return Packet{}, d.err
		}

		d.consume(n)
		d.state = StateReceivedHeader
		return Packet{Kind: KindHeader, Header: h}, nil

	case StateReceivedHeader:
		if d.hasTotal && d.received == d.total {
			d.state = StateDone
			return Packet{Kind: KindComplete}, nil
		}

		if len(d.buf) == 0 {
			return Packet{}, ErrShortBuffer
		}

		if d.buf[0] == 0 {
			u, n, err := DecodeUpdateRecord(d.buf)
			if err != nil {
				return Packet{}, err
			}

			d.consume(n)
			d.total = u.TotalServers
			d.hasTotal = true
			return Packet{Kind: KindUpdate, Update: u}, nil
		}

		s, n, err := DecodeServerRecord(d.buf)
		if err != nil {
			return Packet{}, err
		}

		d.consume(n)
		d.received++
		return Packet{Kind: KindServer, Server: s}, nil

	default:
		return Packet{}, io.EOF
	}
}

// Read decodes the next packet, reading from r as needed.
// It returns io.EOF when the stream ends cleanly after KindComplete or with
// an empty buffer, and io.ErrUnexpectedEOF when it ends inside a record.
func (d *ListingDecoder) Read(r io.Reader) (Packet, error) {
	return readPacket(r, d, d.Next, func() int { return len(d.buf) })
}

func (d *ListingDecoder) consume(n int) {
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
}

// ServerCodec is the tracker side of the listing protocol. It accepts exactly
// one valid header from the client; anything after it is unexpected.
type ServerCodec struct {
	buf   []byte
	state State
}

// NewServerCodec returns a codec awaiting the client's header.
func NewServerCodec() *ServerCodec {
	return &ServerCodec{}
}

// Feed appends stream bytes to the codec buffer.
func (c *ServerCodec) Feed(p []byte) {
	c.buf = append(c.buf, p...)
}

// Next decodes the client header.
func (c *ServerCodec) Next() (Packet, error) {
	if c.state != StateInitialized {
		if len(c.buf) == 0 {
			return Packet{}, ErrShortBuffer
		}
		return Packet{}, ErrUnexpectedData
	}

	h, n, err := DecodeHeader(c.buf)
	if err != nil {
		return Packet{}, err
	}
	if !h.IsValid() {
		return Packet{}, fmt.Errorf("%w: %s", ErrInvalidHeader, h)
	}

	c.buf = c.buf[n:]
	c.state = StateReceivedHeader
	return Packet{Kind: KindHeader, Header: h}, nil
}

// Read decodes the next packet, reading from r as needed.
func (c *ServerCodec) Read(r io.Reader) (Packet, error) {
	return readPacket(r, c, c.Next, func() int { return len(c.buf) })
}

type feeder interface {
	Feed(p []byte)
}

// readPacket drives a decoder from a reader until a packet or a hard error.
func readPacket(r io.Reader, f feeder, next func() (Packet, error), buffered func() int) (Packet, error) {
	chunk := make([]byte, readChunk)
	for {
		pkt, err := next()
		if !errors.Is(err, ErrShortBuffer) {
			return pkt, err
		}

		n, rerr := r.Read(chunk)
		if n > 0 {
			f.Feed(chunk[:n])
		}
		if rerr != nil {
			if n > 0 {
				// decode what arrived with the final read first
				if pkt, err := next(); !errors.Is(err, ErrShortBuffer) {
					return pkt, err
				}
			}
			if errors.Is(rerr, io.EOF) && buffered() > 0 {
				return Packet{}, io.ErrUnexpectedEOF
			}
			return Packet{}, rerr
		}
	}
}

// ListingEncoder writes the tracker side of a listing stream.
type ListingEncoder struct {
	w   *bufio.Writer
	buf []byte
}

// NewListingEncoder wraps w with a buffered listing encoder.
func NewListingEncoder(w io.Writer) *ListingEncoder {
	return &ListingEncoder{w: bufio.NewWriter(w)}
}

// Encode writes one packet. KindComplete writes nothing.
func (e *ListingEncoder) Encode(p Packet) error {
	e.buf = e.buf[:0]

	switch p.Kind {
	case KindHeader:
		e.buf = p.Header.AppendTo(e.buf)
	case KindUpdate:
		e.buf = p.Update.AppendTo(e.buf)
	case KindServer:
		var err error
		if e.buf, err = p.Server.AppendTo(e.buf); err != nil {
			return err
		}
	case KindComplete:
		return nil
	default:
		return fmt.Errorf("protocol: cannot encode %s", p.Kind)
	}

	_, err := e.w.Write(e.buf)
	return err
}

// Flush writes any buffered data to the underlying writer.
func (e *ListingEncoder) Flush() error {
	return e.w.Flush()
}

// WriteListing writes the header, the update record and every server record
// in slice order, then flushes.
func (e *ListingEncoder) WriteListing(update UpdateRecord, servers []ServerRecord) error {
	if err := e.Encode(Packet{Kind: KindHeader, Header: DefaultHeader()}); err != nil {
		return err
	}
	if err := e.Encode(Packet{Kind: KindUpdate, Update: update}); err != nil {
		return err
	}
	for _, s := range servers {
		if err := e.Encode(Packet{Kind: KindServer, Server: s}); err != nil {
			return err
		}
	}

	return e.Flush()
}
