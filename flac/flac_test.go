package flac

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"ktkr.us/pkg/ogg"
)

// makePage assembles one checksummed page carrying whole packets.
func makePage(serial, seq uint32, granule int64, flags byte, packets ...[]byte) []byte {
	var segtab, payload []byte
	for _, p := range packets {
		n := len(p)
		for n >= 255 {
			segtab = append(segtab, 255)
			n -= 255
		}
		segtab = append(segtab, byte(n))
		payload = append(payload, p...)
	}
	buf := make([]byte, 27+len(segtab)+len(payload))
	copy(buf, ogg.CapturePattern)
	buf[5] = flags
	binary.LittleEndian.PutUint64(buf[6:], uint64(granule))
	binary.LittleEndian.PutUint32(buf[14:], serial)
	binary.LittleEndian.PutUint32(buf[18:], seq)
	buf[26] = byte(len(segtab))
	copy(buf[27:], segtab)
	copy(buf[27+len(segtab):], payload)
	binary.LittleEndian.PutUint32(buf[22:], ogg.Checksum(buf))
	return buf
}

func vstring(s string) []byte {
	b := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(b, uint32(len(s)))
	copy(b[4:], s)
	return b
}

// packSTREAMINFO packs sample rate, channel count, sample width and
// total sample count into the tail of a STREAMINFO block.
func packSTREAMINFO(rate, channels, bps, samples uint64) uint64 {
	return rate<<44 | (channels-1)<<41 | (bps-1)<<36 | samples
}

func streaminfoPacket(last bool, nheaders uint16, packed uint64) []byte {
	var b bytes.Buffer
	b.WriteString(MappingMagic)
	binary.Write(&b, binary.BigEndian, struct {
		Major    uint8
		Minor    uint8
		NHeaders uint16
	}{1, 0, nheaders})
	b.WriteString(Magic)
	hdr := byte(blockTypeStreaminfo)
	if last {
		hdr |= 0x80
	}
	b.Write([]byte{hdr, 0, 0, 34})
	binary.Write(&b, binary.BigEndian, streaminfo{
		MinBlockSize: 4096,
		MaxBlockSize: 4096,
		SampleRate:   packed,
	})
	return b.Bytes()
}

func commentBlockPacket(last bool, comments ...string) []byte {
	var body bytes.Buffer
	body.Write(vstring("test vendor"))
	binary.Write(&body, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		body.Write(vstring(c))
	}

	var b bytes.Buffer
	hdr := byte(blockTypeVorbisComment)
	if last {
		hdr |= 0x80
	}
	n := body.Len()
	b.Write([]byte{hdr, byte(n >> 16), byte(n >> 8), byte(n)})
	b.Write(body.Bytes())
	return b.Bytes()
}

// flacFile is 441000 samples at 44.1kHz: ten seconds.
func flacFile(samples uint64, comments ...string) []byte {
	const serial = 0xf1ac
	return bytes.Join([][]byte{
		makePage(serial, 0, 0, 0x02, streaminfoPacket(false, 1, packSTREAMINFO(44100, 2, 16, samples))),
		makePage(serial, 1, 0, 0, commentBlockPacket(true, comments...)),
		makePage(serial, 2, 220500, 0, bytes.Repeat([]byte{0xaa}, 300)),
		makePage(serial, 3, 441000, 0x04, bytes.Repeat([]byte{0xbb}, 300)),
	}, nil)
}

func TestDecodeMeta(t *testing.T) {
	m, name, err := ogg.DecodeMeta(bytes.NewReader(flacFile(441000, "TITLE=x")))
	if err != nil {
		t.Fatal(err)
	}
	if name != "FLAC" {
		t.Errorf("codec = %q, want FLAC", name)
	}
	if d := m.Duration().Round(time.Millisecond); d != 10*time.Second {
		t.Errorf("Duration = %v, want 10s", d)
	}
	if m.NumChannels() != 2 {
		t.Errorf("NumChannels = %d, want 2", m.NumChannels())
	}
	if m.SampleRate() != 44100 {
		t.Errorf("SampleRate = %d, want 44100", m.SampleRate())
	}
	if m.BitRate() != 16*44100 {
		t.Errorf("BitRate = %d, want %d", m.BitRate(), 16*44100)
	}
}

func TestDecodeMetaUnknownSampleCount(t *testing.T) {
	// Sample count of zero in STREAMINFO: the final granule position
	// stands in for it.
	m, _, err := ogg.DecodeMeta(bytes.NewReader(flacFile(0)))
	if err != nil {
		t.Fatal(err)
	}
	if d := m.Duration().Round(time.Millisecond); d != 10*time.Second {
		t.Errorf("Duration = %v, want 10s from the final granule", d)
	}
}

func TestDecodeMetaRejects(t *testing.T) {
	goodInfo := packSTREAMINFO(44100, 2, 16, 0)

	badVersion := streaminfoPacket(true, 0, goodInfo)
	badVersion[len(MappingMagic)] = 2

	badMagic := streaminfoPacket(true, 0, goodInfo)
	copy(badMagic[len(MappingMagic)+4:], "XXXX")

	var paddingFirst bytes.Buffer
	paddingFirst.WriteString(MappingMagic)
	binary.Write(&paddingFirst, binary.BigEndian, struct {
		Major    uint8
		Minor    uint8
		NHeaders uint16
	}{1, 0, 0})
	paddingFirst.WriteString(Magic)
	paddingFirst.Write([]byte{0x80 | blockTypePadding, 0, 0, 0})

	for _, tc := range []struct {
		name   string
		packet []byte
	}{
		{"mapping version", badVersion},
		{"native magic", badMagic},
		{"padding first", paddingFirst.Bytes()},
		{"zero sample rate", streaminfoPacket(true, 0, packSTREAMINFO(0, 2, 16, 0))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			file := makePage(0xf1ac, 0, 0, 0x02, tc.packet)
			if _, _, err := ogg.DecodeMeta(bytes.NewReader(file)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDecodeTags(t *testing.T) {
	tags, name, err := ogg.DecodeTags(bytes.NewReader(flacFile(441000,
		"TITLE=Evening Song",
		"ALBUM=Collected",
	)))
	if err != nil {
		t.Fatal(err)
	}
	if name != "FLAC" {
		t.Errorf("codec = %q, want FLAC", name)
	}
	if tags.Title() != "Evening Song" {
		t.Errorf("Title = %q", tags.Title())
	}
	if tags.Album() != "Collected" {
		t.Errorf("Album = %q", tags.Album())
	}
}

func TestDecodeTagsNoCommentBlock(t *testing.T) {
	const serial = 0xf1ac
	file := bytes.Join([][]byte{
		makePage(serial, 0, 0, 0x02, streaminfoPacket(true, 0, packSTREAMINFO(44100, 2, 16, 441000))),
		makePage(serial, 1, 441000, 0x04, bytes.Repeat([]byte{0xaa}, 100)),
	}, nil)
	tags, _, err := ogg.DecodeTags(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if tags.Title() != "" || tags.Artist() != "" {
		t.Errorf("tags = %v, want none", tags)
	}
}
