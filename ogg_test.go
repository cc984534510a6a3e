package ogg

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"
)

// buildPage assembles one wire-format page with a valid checksum. The
// segment table is taken as given so tests can express continuation
// and malformed lacing directly.
func buildPage(serial, seq uint32, granule int64, flags byte, segtab, payload []byte) []byte {
	buf := make([]byte, headerSize+len(segtab)+len(payload))
	copy(buf, CapturePattern)
	buf[5] = flags
	binary.LittleEndian.PutUint64(buf[6:], uint64(granule))
	binary.LittleEndian.PutUint32(buf[14:], serial)
	binary.LittleEndian.PutUint32(buf[18:], seq)
	buf[26] = byte(len(segtab))
	copy(buf[headerSize:], segtab)
	copy(buf[headerSize+len(segtab):], payload)
	binary.LittleEndian.PutUint32(buf[22:], Checksum(buf))
	return buf
}

// lace derives the segment table for packets that all end within one
// page.
func lace(packets ...[]byte) (segtab, payload []byte) {
	for _, p := range packets {
		n := len(p)
		for n >= 255 {
			segtab = append(segtab, 255)
			n -= 255
		}
		segtab = append(segtab, byte(n))
		payload = append(payload, p...)
	}
	return segtab, payload
}

// packetPage builds a page carrying whole packets.
func packetPage(serial, seq uint32, granule int64, flags byte, packets ...[]byte) []byte {
	segtab, payload := lace(packets...)
	return buildPage(serial, seq, granule, flags, segtab, payload)
}

func newTestDemuxer(t *testing.T, pages ...[]byte) *Demuxer {
	t.Helper()
	d, err := NewDemuxer(bytes.NewReader(bytes.Join(pages, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func readPacket(t *testing.T, p *Packet) []byte {
	t.Helper()
	b := make([]byte, p.Len())
	if _, err := io.ReadFull(p, b); err != nil {
		t.Fatalf("read %d-byte packet: %v", p.Len(), err)
	}
	return b
}

func TestMatch(t *testing.T) {
	cases := []struct {
		magic string
		b     string
		want  bool
	}{
		{"OggS", "OggS", true},
		{"OggS", "Oggs", false},
		{"Ogg?", "OggX", true},
		{"????", "ABCD", true},
		{"OggS", "Ogg", false},
		{"\x01vorbis", "\x01vorbis", true},
	}
	for _, c := range cases {
		if got := match(c.magic, []byte(c.b)); got != c.want {
			t.Errorf("match(%q, %q) = %v, want %v", c.magic, c.b, got, c.want)
		}
	}
}

type fakeMeta struct{}

func (fakeMeta) Duration() time.Duration { return time.Second }
func (fakeMeta) NumChannels() int        { return 1 }
func (fakeMeta) BitRate() int            { return 8 }
func (fakeMeta) SampleRate() int         { return 8000 }

func TestDecodeMetaDispatch(t *testing.T) {
	var sawMagic []byte
	RegisterCodec("Fake", "fake\x00cdc", func(d *Demuxer, s *Stream) (Metadata, error) {
		p, err := s.Next()
		if err != nil {
			return nil, err
		}
		sawMagic = readPacket(t, p)
		return fakeMeta{}, nil
	}, nil)

	first := []byte("fake\x00cdc plus the rest of the header")
	file := bytes.Join([][]byte{
		packetPage(0x11, 0, 0, flagBOS, first),
		packetPage(0x11, 1, 100, flagEOS, []byte("body")),
	}, nil)

	m, name, err := DecodeMeta(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if name != "Fake" {
		t.Errorf("codec name = %q, want %q", name, "Fake")
	}
	if m.SampleRate() != 8000 {
		t.Errorf("SampleRate = %d, want 8000", m.SampleRate())
	}
	// Sniffing must not consume anything: the decode function sees the
	// stream from its very first packet.
	if !bytes.Equal(sawMagic, first) {
		t.Errorf("decode func read %q, want the whole first packet", sawMagic)
	}
}

func TestDecodeMetaUnknownCodec(t *testing.T) {
	file := packetPage(0x22, 0, 0, flagBOS, []byte("not a registered codec"))
	_, _, err := DecodeMeta(bytes.NewReader(file))
	if err != ErrFormat {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestDecodeTagsUnknownCodec(t *testing.T) {
	file := packetPage(0x22, 0, 0, flagBOS, []byte("still not registered"))
	_, _, err := DecodeTags(bytes.NewReader(file))
	if err != ErrFormat {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}
