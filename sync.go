package ogg

import "io"

// syncWindow bounds how far resync scans for a capture pattern before
// declaring sync lost.
const syncWindow = 65536

// Resync recovers from a structurally invalid or corrupt page at
// d.offset. It scans forward one byte at a time for a capture pattern
// that begins a fully valid page, giving up after syncWindow bytes.
// Every byte examined and rejected is charged to the container
// overhead total, the byte that began the failed page included.
func (d *Demuxer) resync() (*page, error) {
	d.overhead += 8
	off := d.offset + 1

	n := int64(syncWindow)
	if rem := d.size - off; rem < n {
		n = rem
	}
	if n <= 0 {
		d.offset = d.size
		return nil, io.EOF
	}
	if _, err := d.src.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.src, buf); err != nil {
		return nil, err
	}

	for i := range buf {
		if i+len(CapturePattern) <= len(buf) && string(buf[i:i+len(CapturePattern)]) == CapturePattern {
			// The pattern may be a fluke, or the page it starts may
			// itself be damaged. Only a full parse settles it.
			pg, err := d.readPage(off + int64(i))
			if err == nil {
				d.resynced = true
				return pg, nil
			}
			if err != ErrBadHeader && err != ErrBadChecksum {
				return nil, err
			}
		}
		d.overhead += 8
	}
	if off+n >= d.size {
		// The garbage ran into the end of the source. Sync is not
		// coming back; further gathering has nothing left to scan.
		d.offset = d.size
		return nil, io.EOF
	}
	return nil, ErrSyncLost
}
