package ogg

import "io"

// span is one contiguous payload range in the source.
type span struct {
	off int64
	n   int
}

// A packet accepts continuation merges only while open. Sealing happens
// exactly once, when the terminating lacing value arrives; only sealed
// packets reach a consumer.
const (
	packetOpen = iota
	packetSealed
)

// Packet is one logical unit of codec data. The payload is addressed as
// spans of the source rather than held in memory: reads seek and fetch
// on demand, so a packet costs the same no matter how large it is.
//
// Packet implements io.Reader and io.ByteReader. Reading past the end
// of the payload returns io.EOF; Reset rewinds to the start.
type Packet struct {
	src  io.ReadSeeker
	segs []span
	size int

	start   int64 // offset of the page the packet began on
	granule int64
	seq     uint32

	state        int
	continued    bool // remainder arrives on a following page
	continuation bool // began as the remainder of an earlier packet
	resync       bool
	eos          bool

	seg int // read cursor: span index
	pos int // read cursor: offset within the span
}

// Len returns the total payload length in bytes.
func (p *Packet) Len() int { return p.size }

// GranulePos returns the granule position of the page that terminated
// the packet.
func (p *Packet) GranulePos() int64 { return p.granule }

// Sequence returns the sequence number of the page the packet began on.
func (p *Packet) Sequence() uint32 { return p.seq }

// Resync reports whether the packet was the first one parsed after a
// resynchronization. Bytes may have been lost with the damaged region,
// so a consumer that cannot tolerate a truncated packet should discard
// it.
func (p *Packet) Resync() bool { return p.resync }

// EOS reports whether the packet is the last of its logical stream.
func (p *Packet) EOS() bool { return p.eos }

// Read copies payload bytes into b, seeking the source before every
// fetch. It returns io.EOF once the payload is exhausted.
func (p *Packet) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) {
		for p.seg < len(p.segs) && p.pos >= p.segs[p.seg].n {
			p.seg++
			p.pos = 0
		}
		if p.seg >= len(p.segs) {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		s := p.segs[p.seg]
		want := s.n - p.pos
		if want > len(b)-n {
			want = len(b) - n
		}
		if _, err := p.src.Seek(s.off+int64(p.pos), io.SeekStart); err != nil {
			return n, err
		}
		m, err := io.ReadFull(p.src, b[n:n+want])
		n += m
		p.pos += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReadByte returns the next payload byte, or io.EOF past the end.
func (p *Packet) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := p.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Reset rewinds the read cursor to the start of the payload so the
// packet can be scanned again. There is no buffered state to discard.
func (p *Packet) Reset() {
	p.seg, p.pos = 0, 0
}

// merge appends a continuation's payload to an open packet. Only the
// container calls this, before the packet is ever delivered. Merging
// into a sealed packet, or merging anything that is not a continuation,
// is a bug in the caller, not a condition to recover from.
func (p *Packet) merge(q *Packet) {
	if p.state != packetOpen {
		panic("ogg: merge into sealed packet")
	}
	if !q.continuation {
		panic("ogg: merge of non-continuation packet")
	}
	p.segs = append(p.segs, q.segs...)
	p.size += q.size
	p.continued = q.continued
}

func (p *Packet) seal() {
	if p.state != packetOpen {
		panic("ogg: packet sealed twice")
	}
	p.state = packetSealed
}
