package main

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/midbel/cli"
	"github.com/pkg/profile"
	"golang.org/x/sync/errgroup"

	"ktkr.us/pkg/ogg"
)

var scanCommand = &cli.Command{
	Usage: "scan [-p] <file...>",
	Short: "fast scanning of Ogg file(s), reporting pages, streams and overhead",
	Run:   runScan,
}

func runScan(cmd *cli.Command, args []string) error {
	prof := cmd.Flag.Bool("p", false, "write a memory profile")
	if err := cmd.Flag.Parse(args); err != nil {
		return err
	}
	if *prof {
		// defer profile.Start(profile.CPUProfile).Stop()
		defer profile.Start(profile.MemProfile).Stop()
	}
	now := time.Now()

	var (
		group errgroup.Group
		mu    sync.Mutex

		pages, size uint64
	)
	sema := make(chan struct{}, 4)
	defer close(sema)
	for _, a := range cmd.Flag.Args() {
		file := a
		group.Go(func() error {
			sema <- struct{}{}
			defer func() { <-sema }()

			n, z, err := scanFile(file)
			if err != nil {
				return err
			}
			mu.Lock()
			pages += n
			size += z
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(now)
	ratio := float64(size>>20) / elapsed.Seconds()
	log.Printf("%d pages scanned (%dMB) time: %s (%.2f MB/s)", pages, size>>20, elapsed, ratio)
	return nil
}

func scanFile(file string) (uint64, uint64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	d, err := ogg.NewDemuxer(f)
	if err != nil {
		return 0, 0, err
	}
	pages, err := d.TotalPages()
	if err != nil {
		return pages, 0, err
	}

	payload := 8*uint64(d.Size()) - d.OverheadBits()
	log.Printf("%s: %d pages, %d streams, %d bits framing, %d bits payload", file, pages, len(d.Streams()), d.OverheadBits(), payload)
	for _, s := range d.Streams() {
		if last := s.LastPacket(); last != nil {
			log.Printf("  stream %08x: final granule %d", s.Serial(), last.GranulePos())
		}
	}
	return pages, uint64(d.Size()), nil
}
