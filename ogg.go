// Package ogg implements a demultiplexer for the Ogg multimedia
// container format, used to carry media bitstreams such as Vorbis,
// Opus, Speex, and FLAC.
//
// An Ogg file is comprised of a sequence of pages, generally around 8k
// each in size, to facilitate easy stream syncing. Each page has a
// header with position and size information and a data segment.
//
// Pages are a transport stream for abstract data packets. Packets may
// span multiple pages. Each contained format has its own
// specifications on how packets are defined.
//
// The Demuxer splits a container into its logical streams and hands
// out packets in decode order. Packet payloads are never buffered: a
// Packet addresses byte ranges of the source and reads them on demand,
// so memory use stays bounded no matter how large a packet is. Pages
// that fail structurally or by checksum are skipped by scanning for
// the next capture pattern.
//
// Detailed information on the format can be found at
// http://www.xiph.org/ogg/
package ogg

import (
	"errors"
	"io"
	"time"
)

const (
	CapturePattern  = "OggS"
	CRC32Polynomial = 0x04c11db7
)

var (
	ErrBadHeader      = errors.New("ogg: malformed header")
	ErrBadChecksum    = errors.New("ogg: page checksum mismatch")
	ErrSyncLost       = errors.New("ogg: lost sync")
	ErrSeekOutOfRange = errors.New("ogg: seek target out of range")
	ErrFormat         = errors.New("ogg: unknown codec")
)

// TODO: album art?

type Metadata interface {
	Duration() time.Duration
	NumChannels() int // Number of audio channels.
	// Number of bits per second. This is more of an advisory value than a hard
	// number, but it should be correct for CBR.
	BitRate() int
	SampleRate() int // Number of samples per second.
}

type Tags interface {
	Title() string
	AlbumArtist() string
	Artist() string
	Album() string
	Genre() string
	Disc() int
	Track() int
	Date() time.Time
	Composer() string
	Notes() string
}

// A MetaFunc decodes the technical metadata of one logical stream. The
// stream is positioned at its first packet; the demuxer may be drained
// further for duration queries.
type MetaFunc func(*Demuxer, *Stream) (Metadata, error)

// A TagsFunc decodes the textual metadata of one logical stream.
type TagsFunc func(*Demuxer, *Stream) (Tags, error)

var codecs []codec

type codec struct {
	name  string
	magic string
	meta  MetaFunc
	tags  TagsFunc
}

// RegisterCodec lets the package know how to interpret a codec
// bitstream carried in an Ogg container, identified by a magic number
// at the start of the stream's first packet. Magic may contain "?"
// wildcards.
func RegisterCodec(name, magic string, meta MetaFunc, tags TagsFunc) {
	codecs = append(codecs, codec{name, magic, meta, tags})
}

// DecodeMeta decodes the technical metadata of the first logical
// stream in r, dispatching on the registered codec magics. It returns
// the metadata, the codec name, and any error encountered.
func DecodeMeta(r io.ReadSeeker) (Metadata, string, error) {
	d, err := NewDemuxer(r)
	if err != nil {
		return nil, "", err
	}
	s, err := d.FindNextStream(nil)
	if err != nil {
		return nil, "", err
	}
	c := sniff(s)
	if c.meta == nil {
		return nil, "", ErrFormat
	}
	m, err := c.meta(d, s)
	return m, c.name, err
}

// DecodeTags decodes the textual metadata of the first logical stream
// in r, dispatching on the registered codec magics.
func DecodeTags(r io.ReadSeeker) (Tags, string, error) {
	d, err := NewDemuxer(r)
	if err != nil {
		return nil, "", err
	}
	s, err := d.FindNextStream(nil)
	if err != nil {
		return nil, "", err
	}
	c := sniff(s)
	if c.tags == nil {
		return nil, "", ErrFormat
	}
	t, err := c.tags(d, s)
	return t, c.name, err
}

// Match reports whether magic matches b. Magic may contain "?" wildcards.
func match(magic string, b []byte) bool {
	if len(magic) != len(b) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// Sniff determines the codec of a stream from its first packet.
func sniff(s *Stream) codec {
	p, err := s.Peek()
	if err != nil {
		return codec{}
	}
	defer p.Reset()
	for _, c := range codecs {
		b := make([]byte, len(c.magic))
		p.Reset()
		if _, err := io.ReadFull(p, b); err != nil {
			continue
		}
		if match(c.magic, b) {
			return c
		}
	}
	return codec{}
}
