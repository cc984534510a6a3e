// Package flac decodes the metadata of FLAC streams carried in Ogg
// containers.
package flac

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"

	"ktkr.us/pkg/ogg"
	"ktkr.us/pkg/ogg/vorbis"
)

const (
	// Magic opens a native FLAC stream header.
	Magic = "fLaC"
	// MappingMagic opens the first packet of an Ogg FLAC stream.
	MappingMagic = "\x7fFLAC"
)

func init() {
	ogg.RegisterCodec("FLAC", MappingMagic, DecodeMeta, DecodeTags)
}

const (
	blockTypeStreaminfo = iota
	blockTypePadding
	blockTypeApplication
	blockTypeSeektable
	blockTypeVorbisComment
	blockTypeCuesheet
	blockTypePicture
	blockTypeInvalid = 127
)

type metadataBlockHeader struct {
	Header byte
	Length uint24
}

type streaminfo struct {
	MinBlockSize uint16
	MaxBlockSize uint16
	MinFrameSize uint24
	MaxFrameSize uint24
	SampleRate   uint64
	MD5          [16]byte
}

// info from STREAMINFO block to satisfy the ogg.Metadata interface
type Metadata struct {
	MinBlockSize  uint16
	MaxBlockSize  uint16
	MinFrameSize  uint32
	MaxFrameSize  uint32
	sampleRate    int
	numChannels   int
	BitsPerSample int
	NumSamples    uint64
	MD5           [16]byte
}

func (m Metadata) Duration() time.Duration {
	sampleDurationSec := 1 / float64(m.sampleRate)
	durationSec := sampleDurationSec * float64(m.NumSamples)
	return time.Duration(durationSec * float64(time.Second))
}

func (m Metadata) NumChannels() int {
	return m.numChannels
}

func (m Metadata) BitRate() int {
	return m.BitsPerSample * m.sampleRate
}

func (m Metadata) SampleRate() int {
	return m.sampleRate
}

type uint24 [3]byte

func (n uint24) Uint32() uint32 {
	return uint32(n[0])<<16 | uint32(n[1])<<8 | uint32(n[2])
}

// readMappingHeader consumes the front of an Ogg FLAC stream's first
// packet: the 0x7F marker and "FLAC" tag, the mapping version, a count
// of the header packets that follow, and the native stream magic. The
// count may be zero, meaning unknown, so the walk over header packets
// relies on the last-metadata-block flag instead.
func readMappingHeader(r io.Reader) error {
	buf := make([]byte, len(MappingMagic))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if string(buf) != MappingMagic {
		return errors.New("malformed mapping preamble")
	}

	var v struct {
		Major    uint8
		Minor    uint8
		NHeaders uint16
	}
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return err
	}
	if v.Major != 1 {
		return errors.Errorf("unsupported mapping version %d.%d", v.Major, v.Minor)
	}

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return err
	}
	if string(magic) != Magic {
		return errors.New("missing native stream magic")
	}
	return nil
}

// DecodeMeta reads the STREAMINFO block out of an Ogg FLAC stream's
// first packet. When the encoder declared the total sample count
// unknown, the rest of the container is drained and the final granule
// position stands in for it.
func DecodeMeta(d *ogg.Demuxer, s *ogg.Stream) (ogg.Metadata, error) {
	p, err := s.Next()
	if err != nil {
		return nil, err
	}
	if err = readMappingHeader(p); err != nil {
		return nil, err
	}

	var h metadataBlockHeader
	if err = binary.Read(p, binary.BigEndian, &h); err != nil {
		return nil, err
	}
	if h.Header&0x7F != blockTypeStreaminfo {
		return nil, errors.New("first metadata block is not STREAMINFO")
	}

	var b streaminfo
	if err = binary.Read(p, binary.BigEndian, &b); err != nil {
		return nil, err
	}

	sampleRate := int((b.SampleRate >> 44) & 0x3FFFF)
	numChannels := int((b.SampleRate>>41)&0x7) + 1
	bitsPerSample := int((b.SampleRate>>36)&0x1F) + 1
	numSamples := b.SampleRate & 0xFFFFFFFFF

	if sampleRate == 0 {
		return nil, errors.New("STREAMINFO missing sample rate")
	}

	// Each remaining header packet carries one metadata block; the
	// last one raises the high bit of its block header.
	for lastMeta := (h.Header>>7)&1 == 1; !lastMeta; {
		if p, err = s.Next(); err != nil {
			return nil, err
		}
		if err = binary.Read(p, binary.BigEndian, &h); err != nil {
			return nil, err
		}
		lastMeta = (h.Header>>7)&1 == 1
	}
	s.MarkDataStart()

	m := Metadata{
		MinBlockSize:  b.MinBlockSize,
		MaxBlockSize:  b.MaxBlockSize,
		MinFrameSize:  b.MinFrameSize.Uint32(),
		MaxFrameSize:  b.MaxFrameSize.Uint32(),
		sampleRate:    sampleRate,
		numChannels:   numChannels,
		BitsPerSample: bitsPerSample,
		NumSamples:    numSamples,
		MD5:           b.MD5,
	}

	if m.NumSamples == 0 {
		if _, err = d.TotalPages(); err != nil {
			return nil, err
		}
		if last := s.LastPacket(); last != nil && last.GranulePos() > 0 {
			m.NumSamples = uint64(last.GranulePos())
		}
	}
	return m, nil
}

// DecodeTags walks the header packets of an Ogg FLAC stream looking
// for a Vorbis comment block.
func DecodeTags(d *ogg.Demuxer, s *ogg.Stream) (ogg.Tags, error) {
	p, err := s.Next()
	if err != nil {
		return nil, err
	}
	if err = readMappingHeader(p); err != nil {
		return nil, err
	}

	var h metadataBlockHeader
	if err = binary.Read(p, binary.BigEndian, &h); err != nil {
		return nil, err
	}

	for lastMeta := (h.Header>>7)&1 == 1; !lastMeta; {
		if p, err = s.Next(); err != nil {
			return nil, err
		}
		if err = binary.Read(p, binary.BigEndian, &h); err != nil {
			return nil, err
		}
		lastMeta = (h.Header>>7)&1 == 1

		switch blockType := h.Header & 0x7F; blockType {
		case blockTypeStreaminfo, blockTypePadding, blockTypeApplication, blockTypeSeektable, blockTypeCuesheet, blockTypePicture:
			// each block rides its own packet, so there is nothing to
			// discard before the next one

		case blockTypeVorbisComment:
			_, comment, err := vorbis.ReadComment(p)
			return comment, err

		case blockTypeInvalid:
			return nil, errors.New("invalid metadata block type")

		default:
			return nil, errors.Errorf("reserved metadata block type: %d", blockType)
		}
	}

	return vorbis.Comment{}, nil
}
