package main

import (
	"io"
	"log"
	"os"
	"strconv"

	"github.com/midbel/cli"
	"github.com/midbel/linewriter"
	"github.com/midbel/xxh"

	"ktkr.us/pkg/ogg"
)

var packetsCommand = &cli.Command{
	Usage: "packets [-c] [-n count] [-s serial] <file...>",
	Alias: []string{"list", "ls"},
	Short: "list the packets of Ogg file(s), stream by stream",
	Run:   runPackets,
}

var (
	flagResync = []byte("resync")
	flagEOS    = []byte("eos")
	flagNone   = []byte("-")
)

func runPackets(cmd *cli.Command, args []string) error {
	csv := cmd.Flag.Bool("c", false, "csv format")
	count := cmd.Flag.Int("n", 0, "stop after that many packets per stream")
	serial := cmd.Flag.Uint("s", 0, "list only the stream with that serial")
	if err := cmd.Flag.Parse(args); err != nil {
		return err
	}

	var options []linewriter.Option
	if *csv {
		options = append(options, linewriter.AsCSV(false))
	} else {
		options = []linewriter.Option{
			linewriter.WithPadding([]byte(" ")),
			linewriter.WithSeparator([]byte("|")),
		}
	}
	line := linewriter.NewWriter(1024, options...)

	for _, a := range cmd.Flag.Args() {
		if err := listPackets(line, a, *count, uint32(*serial)); err != nil {
			return err
		}
	}
	return nil
}

func listPackets(line *linewriter.Writer, file string, count int, serial uint32) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	d, err := ogg.NewDemuxer(f)
	if err != nil {
		return err
	}
	if _, err := d.TotalPages(); err != nil {
		return err
	}

	for _, s := range d.Streams() {
		if serial != 0 && s.Serial() != serial {
			continue
		}
		for i := 0; count <= 0 || i < count; i++ {
			p, err := s.Next()
			if err != nil {
				if err == io.EOF {
					break
				}
				return err
			}
			if err := dumpPacket(line, s, p); err != nil {
				return err
			}
		}
	}
	log.Printf("%s: %d pages, %d streams, %d bits of framing", file, d.PageCount(), len(d.Streams()), d.OverheadBits())
	return nil
}

func dumpPacket(line *linewriter.Writer, s *ogg.Stream, p *ogg.Packet) error {
	defer line.Reset()

	buf := make([]byte, p.Len())
	if _, err := io.ReadFull(p, buf); err != nil {
		return err
	}

	line.AppendUint(uint64(s.Serial()), 8, linewriter.AlignRight|linewriter.Hex|linewriter.WithZero)
	line.AppendUint(uint64(p.Sequence()), 8, linewriter.AlignRight)
	line.AppendString(strconv.FormatInt(p.GranulePos(), 10), 12, linewriter.AlignRight)
	line.AppendUint(uint64(p.Len()), 8, linewriter.AlignRight)
	line.AppendBytes(whichFlag(p), 6, linewriter.AlignCenter|linewriter.Text)
	line.AppendUint(xxh.Sum64(buf, 0), 16, linewriter.AlignRight|linewriter.Hex|linewriter.WithZero)

	_, err := os.Stdout.Write(append(line.Bytes(), '\n'))
	return err
}

func whichFlag(p *ogg.Packet) []byte {
	switch {
	case p.Resync():
		return flagResync
	case p.EOS():
		return flagEOS
	default:
		return flagNone
	}
}
