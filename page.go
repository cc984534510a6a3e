package ogg

import (
	"encoding/binary"
	"io"
)

const (
	headerSize  = 27
	maxSegments = 255
)

// MaxPageSize is the size of the largest possible page: a full header,
// a full segment table, and 255 segments of 255 bytes each.
const MaxPageSize = headerSize + maxSegments + maxSegments*255

// Header type flag bits.
const (
	flagContinued = 0x01
	flagBOS       = 0x02
	flagEOS       = 0x04
)

// page is one parsed page. It lives only long enough to be routed;
// payload bytes are not kept, packets address them by source offset.
type page struct {
	start int64 // offset of the capture pattern
	body  int64 // offset of the first payload byte
	end   int64 // offset one past the payload

	granule int64
	serial  uint32
	seq     uint32
	flags   byte

	lens      []int // packet lengths in lacing order
	continued bool  // first length finishes the previous page's packet
	open      bool  // last length spills into the next page
}

func (pg *page) bos() bool { return pg.flags&flagBOS != 0 }
func (pg *page) eos() bool { return pg.flags&flagEOS != 0 }

// readPage parses the page starting at off. The source is seeked
// explicitly; nothing is assumed about where the cursor was left.
// ErrBadHeader and ErrBadChecksum tell the caller to resynchronize;
// any other error is a real read failure.
//
// The payload is read in full, but only to feed the checksum. The bits
// spent on the header and segment table are added to the overhead
// counter, and taken back if the checksum rejects the page.
func (d *Demuxer) readPage(off int64) (*page, error) {
	if _, err := d.src.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	var hdr [headerSize]byte
	if err := readAll(d.src, hdr[:]); err != nil {
		return nil, err
	}
	if string(hdr[0:4]) != CapturePattern || hdr[4] != 0 {
		return nil, ErrBadHeader
	}

	nsegs := int(hdr[26])
	if cap(d.segtab) < nsegs {
		d.segtab = make([]byte, nsegs)
	}
	segtab := d.segtab[:nsegs]
	if err := readAll(d.src, segtab); err != nil {
		return nil, err
	}

	framing := 8 * uint64(headerSize+nsegs)
	d.overhead += framing

	pg := page{
		start:     off,
		body:      off + int64(headerSize+nsegs),
		granule:   int64(binary.LittleEndian.Uint64(hdr[6:14])),
		serial:    binary.LittleEndian.Uint32(hdr[14:18]),
		seq:       binary.LittleEndian.Uint32(hdr[18:22]),
		flags:     hdr[5],
		continued: hdr[5]&flagContinued != 0,
		lens:      d.lens[:0],
	}

	size := 0
	cur := 0
	for _, v := range segtab {
		cur += int(v)
		size += int(v)
		if v < maxSegments {
			pg.lens = append(pg.lens, cur)
			cur = 0
		}
	}
	if cur > 0 {
		pg.lens = append(pg.lens, cur)
		pg.open = true
	}
	d.lens = pg.lens[:0]

	if cap(d.buf) < size {
		d.buf = make([]byte, size)
	}
	buf := d.buf[:size]
	if err := readAll(d.src, buf); err != nil {
		d.overhead -= framing
		return nil, err
	}

	want := binary.LittleEndian.Uint32(hdr[22:26])
	hdr[22], hdr[23], hdr[24], hdr[25] = 0, 0, 0, 0
	crc := crcUpdate(0, hdr[:])
	crc = crcUpdate(crc, segtab)
	crc = crcUpdate(crc, buf)
	if crc != want {
		d.overhead -= framing
		return nil, ErrBadChecksum
	}

	pg.end = pg.body + int64(size)
	d.pages++
	return &pg, nil
}

// readAll fills b or reports a truncated page as ErrBadHeader, which
// sends the caller into resynchronization like any other damage.
func readAll(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrBadHeader
	}
	return err
}
