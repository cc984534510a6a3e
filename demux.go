package ogg

import (
	"io"

	"github.com/pkg/errors"
)

// Demuxer splits an Ogg container into its logical streams. It owns the
// source's position cursor: every read performed by the demuxer or by
// the packets it hands out seeks first, so the cursor may be moved
// freely between operations.
//
// A Demuxer, its Streams and its Packets must be confined to a single
// goroutine; there is no internal locking.
type Demuxer struct {
	src  io.ReadSeeker
	size int64

	streams map[uint32]*Stream
	order   []uint32

	offset   int64  // where the next page is expected to start
	pages    uint64 // valid pages parsed
	overhead uint64 // bits spent on framing and on skipped garbage

	resynced bool // mark the next packet touched as post-resync

	segtab []byte // scratch: segment table
	buf    []byte // scratch: payload bytes, read only to checksum them
	lens   []int  // scratch: packet lengths
}

// NewDemuxer prepares a demuxer over r. The source's total length is
// probed with a seek to the end, which also rejects sources that
// cannot seek; random access is required.
func NewDemuxer(r io.ReadSeeker) (*Demuxer, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "ogg: probe source size")
	}
	return &Demuxer{
		src:     r,
		size:    size,
		streams: make(map[uint32]*Stream),
	}, nil
}

// Size returns the total length of the source in bytes.
func (d *Demuxer) Size() int64 { return d.size }

// PageCount returns the number of valid pages parsed so far.
func (d *Demuxer) PageCount() uint64 { return d.pages }

// OverheadBits returns the cumulative bits consumed by page framing and
// by bytes skipped while resynchronizing. Subtracting it from the
// source size gives the payload share, which is what bitrate figures
// want.
func (d *Demuxer) OverheadBits() uint64 { return d.overhead }

// Streams returns the streams known so far, in discovery order. Further
// gathering may discover more; see FindNextStream.
func (d *Demuxer) Streams() []*Stream {
	out := make([]*Stream, len(d.order))
	for i, serial := range d.order {
		out[i] = d.streams[serial]
	}
	return out
}

// FindNextStream returns the first stream discovered after the given
// one, reading pages until a new serial appears if it has to. A nil
// argument yields the container's first stream. io.EOF means the source
// ended without another stream turning up, which is how the end of a
// chain is detected.
func (d *Demuxer) FindNextStream(after *Stream) (*Stream, error) {
	idx := 0
	if after != nil {
		for i, serial := range d.order {
			if serial == after.serial {
				idx = i + 1
				break
			}
		}
	}
	for {
		if idx < len(d.order) {
			return d.streams[d.order[idx]], nil
		}
		if err := d.nextPage(); err != nil {
			return nil, err
		}
	}
}

// TotalPages drains every page left in the source and returns the
// cumulative valid-page count. Streams keep their read positions; their
// queues simply fill up with the rest of their packets.
func (d *Demuxer) TotalPages() (uint64, error) {
	for {
		if err := d.nextPage(); err != nil {
			if err == io.EOF {
				return d.pages, nil
			}
			return d.pages, err
		}
	}
}

// gather reads pages, routing every one of them to its own stream,
// until the stream with the given serial gains a packet or is flagged
// ended. io.EOF reports that no packet will ever arrive: the stream's
// end page was already seen, or the source is exhausted.
func (d *Demuxer) gather(serial uint32) error {
	s := d.streams[serial]
	if s.eos {
		return io.EOF
	}
	n := len(s.queue)
	for len(s.queue) == n && !s.eos {
		if err := d.nextPage(); err != nil {
			return err
		}
	}
	return nil
}

// nextPage parses the page at the expected offset, resynchronizing on
// damage, and routes it. io.EOF means the source is exhausted.
func (d *Demuxer) nextPage() error {
	if d.offset >= d.size {
		return io.EOF
	}
	pg, err := d.readPage(d.offset)
	if err != nil {
		if err != ErrBadHeader && err != ErrBadChecksum {
			return err
		}
		pg, err = d.resync()
		if err != nil {
			return err
		}
	}
	d.offset = pg.end
	d.route(pg)
	return nil
}

// route slices a page into packets and delivers them to its stream,
// creating the stream the first time a serial is seen. Pages already
// routed once (met again after a seek rewound the container) are
// dropped by the sequence and offset guards.
func (d *Demuxer) route(pg *page) {
	s := d.streams[pg.serial]
	if s == nil {
		s = newStream(d, pg.serial, pg.start)
		d.streams[pg.serial] = s
		d.order = append(d.order, pg.serial)
	}
	if pg.start < s.minOff || (s.seen && pg.seq <= s.lastSeq) {
		return
	}
	s.seen, s.lastSeq = true, pg.seq

	off := pg.body
	for i, n := range pg.lens {
		terminated := i < len(pg.lens)-1 || !pg.open
		frag := span{off, n}
		off += int64(n)

		var p *Packet
		if i == 0 && pg.continued && s.open != nil {
			p = s.open
			p.merge(&Packet{
				segs:         []span{frag},
				size:         n,
				continuation: true,
				continued:    !terminated,
			})
		} else {
			p = &Packet{
				src:          d.src,
				segs:         []span{frag},
				size:         n,
				start:        pg.start,
				seq:          pg.seq,
				continuation: i == 0 && pg.continued,
				continued:    !terminated,
			}
		}
		if d.resynced {
			p.resync = true
			d.resynced = false
		}
		if terminated {
			p.granule = pg.granule
			p.eos = pg.eos() && i == len(pg.lens)-1
			p.seal()
			s.enqueue(p)
			s.open = nil
		} else {
			s.open = p
		}
	}
	if pg.eos() {
		s.eos = true
		s.open = nil // a packet still unfinished at stream end is dropped
	}
}
