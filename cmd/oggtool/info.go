package main

import (
	"io"
	"log"
	"os"

	"github.com/midbel/cli"

	"ktkr.us/pkg/fmtutil"
	"ktkr.us/pkg/ogg"
)

var infoCommand = &cli.Command{
	Usage: "info <file...>",
	Alias: []string{"meta"},
	Short: "print codec, duration and tags of Ogg file(s)",
	Run:   runInfo,
}

func runInfo(cmd *cli.Command, args []string) error {
	if err := cmd.Flag.Parse(args); err != nil {
		return err
	}
	for _, a := range cmd.Flag.Args() {
		if err := showInfo(a); err != nil {
			return err
		}
	}
	return nil
}

func showInfo(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	meta, name, err := ogg.DecodeMeta(f)
	if err != nil {
		return err
	}

	log.Printf("%s: %s, %s, %d kbps", file, name, fmtutil.HMS(meta.Duration()), meta.BitRate()/1024)

	switch n := meta.NumChannels(); n {
	case 0:
	case 1:
		log.Print("mono")
	case 2:
		log.Print("stereo")
	default:
		log.Printf("%d channels", n)
	}

	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	tags, _, err := ogg.DecodeTags(f)
	if err != nil {
		return err
	}

	log.Printf("Title:       %q (%d)", tags.Title(), len(tags.Title()))
	log.Printf("AlbumArtist: %q (%d)", tags.AlbumArtist(), len(tags.AlbumArtist()))
	log.Printf("Artist:      %q (%d)", tags.Artist(), len(tags.Artist()))
	log.Printf("Album:       %q (%d)", tags.Album(), len(tags.Album()))
	log.Printf("Genre:       %q (%d)", tags.Genre(), len(tags.Genre()))
	log.Printf("Disc:        %d", tags.Disc())
	log.Printf("Track:       %d", tags.Track())
	log.Printf("Date:        %v", tags.Date())
	log.Printf("Composer:    %q (%d)", tags.Composer(), len(tags.Composer()))
	log.Printf("Notes:       %q (%d)", tags.Notes(), len(tags.Notes()))
	return nil
}
