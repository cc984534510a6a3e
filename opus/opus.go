// Package opus decodes the metadata of Opus streams carried in Ogg
// containers, per RFC 7845.
package opus

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"ktkr.us/pkg/ogg"
	"ktkr.us/pkg/ogg/vorbis"
)

func init() {
	ogg.RegisterCodec("Opus", headPreamble, DecodeMeta, DecodeTags)
}

const (
	headPreamble = "OpusHead"
	tagsPreamble = "OpusTags"
)

// Granule positions of an Opus stream always count samples at 48kHz,
// whatever rate the input was encoded from.
const granuleRate = 48000

var (
	ErrBadPreamble = errors.New("opus: malformed packet preamble")
	ErrBadVersion  = errors.New("opus: unsupported header version")
)

/*
RFC 7845 §5.1, following the 8-byte magic signature
1) [version]           = read 8 bits as unsigned integer
2) [channel_count]     = read 8 bits as unsigned integer
3) [pre_skip]          = read 16 bits as unsigned integer
4) [input_sample_rate] = read 32 bits as unsigned integer
5) [output_gain]       = read 16 bits as signed integer, Q7.8
6) [mapping_family]    = read 8 bits as unsigned integer
*/
type header struct {
	Version         uint8
	ChannelCount    uint8
	PreSkip         uint16
	InputSampleRate uint32
	OutputGain      int16
	MappingFamily   uint8
}

type meta struct {
	header
	numSamples  int64
	payloadBits uint64
	vorbis.Comment
}

func (m *meta) Duration() time.Duration {
	return time.Millisecond * time.Duration(1e3*float64(m.numSamples)/granuleRate)
}

func (m *meta) NumChannels() int {
	return int(m.ChannelCount)
}

func (m *meta) BitRate() int {
	// Opus carries no nominal rate; the average is the only honest
	// figure.
	if secs := m.Duration().Seconds(); secs > 0 {
		return int(float64(m.payloadBits) / secs)
	}
	return 0
}

// SampleRate returns the rate of the source the stream was encoded
// from. A decoder may output any rate it likes; 48000 is the native
// one.
func (m *meta) SampleRate() int {
	return int(m.InputSampleRate)
}

// DecodeMeta reads the OpusHead and OpusTags packets and drains the
// rest of the container to find the stream's final granule position.
// The pre-skip samples the header asks a decoder to discard are
// subtracted from the duration.
func DecodeMeta(d *ogg.Demuxer, s *ogg.Stream) (ogg.Metadata, error) {
	p, err := s.Next()
	if err != nil {
		return nil, err
	}
	if err = readPreamble(p, headPreamble); err != nil {
		return nil, err
	}

	var h header
	if err = binary.Read(p, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	// Only a major version of 0 is compatible; the low nibble counts
	// backwards-compatible revisions.
	if h.Version>>4 != 0 {
		return nil, ErrBadVersion
	}

	p, err = s.Next()
	if err != nil {
		return nil, err
	}
	if err = readPreamble(p, tagsPreamble); err != nil {
		return nil, err
	}
	_, comment, err := vorbis.ReadComment(p)
	if err != nil {
		return nil, err
	}
	s.MarkDataStart()

	if _, err = d.TotalPages(); err != nil {
		return nil, err
	}
	var numSamples int64
	if last := s.LastPacket(); last != nil {
		numSamples = last.GranulePos() - int64(h.PreSkip)
		if numSamples < 0 {
			numSamples = 0
		}
	}

	m := &meta{header: h, numSamples: numSamples, Comment: comment}
	m.payloadBits = 8*uint64(d.Size()) - d.OverheadBits()
	return m, nil
}

// DecodeTags reads the OpusTags packet of an Opus stream.
func DecodeTags(d *ogg.Demuxer, s *ogg.Stream) (ogg.Tags, error) {
	p, err := s.Next()
	if err != nil {
		return nil, err
	}
	if err = readPreamble(p, headPreamble); err != nil {
		return nil, err
	}

	p, err = s.Next()
	if err != nil {
		return nil, err
	}
	if err = readPreamble(p, tagsPreamble); err != nil {
		return nil, err
	}
	_, comment, err := vorbis.ReadComment(p)
	return comment, err
}

func readPreamble(r io.Reader, preamble string) error {
	buf := make([]byte, len(preamble))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if string(buf) != preamble {
		return ErrBadPreamble
	}
	return nil
}
