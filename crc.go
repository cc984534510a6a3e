package ogg

// crcTable is the lookup table for the page checksum, generated from
// CRC32Polynomial in MSB-first bit order. hash/crc32 implements the
// reflected convention and computes different values, so the table is
// built here instead.
var crcTable [256]uint32

func init() {
	for i := range crcTable {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ CRC32Polynomial
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

// Checksum returns the CRC of b in the page header convention: zero
// initial value, no reflection, no final xor. A page is valid when the
// checksum of the whole page, with the four checksum field bytes
// zeroed, equals the stored field.
func Checksum(b []byte) uint32 {
	return crcUpdate(0, b)
}

func crcUpdate(crc uint32, b []byte) uint32 {
	for _, c := range b {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^c]
	}
	return crc
}
