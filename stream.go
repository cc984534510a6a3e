package ogg

import "io"

// Stream is the packet reader for one logical bitstream. The owning
// Demuxer fills its queue as pages carrying its serial are parsed;
// consumers drain it with Next. A Stream comes into being the first
// time a page with a new serial appears and lives as long as the
// container.
type Stream struct {
	d      *Demuxer
	serial uint32

	queue []*Packet
	open  *Packet // awaiting a continuation from a following page
	last  *Packet // most recently enqueued
	eos   bool

	firstOff int64 // offset of the stream's first page
	dataOff  int64 // offset codec data starts at; -1 until marked
	minOff   int64 // pages before this are never routed here again

	lastSeq uint32 // highest page sequence routed so far
	seen    bool

	prevGranule int64 // granule of the packet last handed out or skipped
	advanced    bool
}

func newStream(d *Demuxer, serial uint32, off int64) *Stream {
	return &Stream{d: d, serial: serial, firstOff: off, dataOff: -1}
}

// Serial returns the stream's serial number.
func (s *Stream) Serial() uint32 { return s.serial }

// Next returns the stream's next packet, gathering pages from the
// container as needed. It returns io.EOF once the stream has ended and
// no packets remain; that is the normal end, not a failure.
func (s *Stream) Next() (*Packet, error) {
	for len(s.queue) == 0 {
		if err := s.d.gather(s.serial); err != nil {
			return nil, err
		}
	}
	p := s.queue[0]
	s.queue = s.queue[1:]
	s.prevGranule, s.advanced = p.granule, true
	return p, nil
}

// Peek returns the packet Next would return, without consuming it.
func (s *Stream) Peek() (*Packet, error) {
	for len(s.queue) == 0 {
		if err := s.d.gather(s.serial); err != nil {
			return nil, err
		}
	}
	return s.queue[0], nil
}

// MarkDataStart records that every packet from the current read
// position on carries codec data rather than headers. Seeks rewind no
// further back than this point, so header packets never reappear.
func (s *Stream) MarkDataStart() {
	if len(s.queue) > 0 {
		s.dataOff = s.queue[0].start
	} else {
		s.dataOff = s.d.offset
	}
}

// LastPacket returns the most recently enqueued packet, or nil. Once
// the container is drained it carries the stream's final granule
// position, which is how total duration is read.
func (s *Stream) LastPacket() *Packet { return s.last }

// SeekToGranule repositions the stream so that the next call to Next
// returns the first packet whose granule position is at or after g.
// Queued packets before the target are dropped. A target behind the
// read position rewinds gathering to the data-start page (the stream's
// first page if no mark was set) and scans forward again; granule
// positions do not decrease within a stream, so the scan stops at the
// first qualifying packet. ErrSeekOutOfRange reports a target past the
// end of the stream.
func (s *Stream) SeekToGranule(g int64) error {
	if s.advanced && s.prevGranule >= g {
		s.rewind()
	}
	for {
		for len(s.queue) > 0 {
			if s.queue[0].granule >= g {
				return nil
			}
			s.prevGranule, s.advanced = s.queue[0].granule, true
			s.queue = s.queue[1:]
		}
		if err := s.d.gather(s.serial); err != nil {
			if err == io.EOF {
				return ErrSeekOutOfRange
			}
			return err
		}
	}
}

// rewind resets the stream and points the container back at the
// stream's data-start page. Pages of other streams met again on the way
// forward are dropped by the guards in route.
func (s *Stream) rewind() {
	off := s.dataOff
	if off < 0 {
		off = s.firstOff
	}
	s.queue = nil
	s.open = nil
	s.last = nil
	s.eos = false
	s.seen, s.lastSeq = false, 0
	s.advanced, s.prevGranule = false, 0
	s.minOff = off
	if off < s.d.offset {
		s.d.offset = off
	}
}

func (s *Stream) enqueue(p *Packet) {
	s.queue = append(s.queue, p)
	s.last = p
}
