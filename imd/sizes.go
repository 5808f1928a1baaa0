package imd

// sectorSizes maps a 3-bit sector-size code to the sector length in bytes.
// The table is the single source of truth in both directions; nothing in
// this package computes `128 << code` directly.
var sectorSizes = [7]int{128, 256, 512, 1024, 2048, 4096, 8192}

// sectorSizeFromCode returns the byte count for a sector-size code (0..6).
func sectorSizeFromCode(code uint8) (int, bool) {
	if int(code) >= len(sectorSizes) {
		return 0, false
	}
	return sectorSizes[code], true
}

// sectorCodeFromSize returns the 3-bit code for a known sector byte count.
func sectorCodeFromSize(size int) (uint8, bool) {
	for code, sz := range sectorSizes {
		if sz == size {
			return uint8(code), true
		}
	}
	return 0, false
}
