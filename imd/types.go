package imd

import "time"

// HeaderInfo is the parsed content of the ASCII header line (spec.md §3).
// Timestamp fields are all zero when the header line failed strict parsing
// or any field was out of calendar range; Version is "Unknown" when it
// could not be extracted.
type HeaderInfo struct {
	Version string
	Day     int
	Month   int
	Year    int
	Hour    int
	Minute  int
	Second  int
}

// Time returns the header timestamp as a time.Time in UTC, or the zero
// value if Day, Month, or Year is zero (i.e. parsing failed). Zero hour,
// minute, and second values are valid and do not affect the result.
func (h HeaderInfo) Time() time.Time {
	if h.Day == 0 || h.Month == 0 || h.Year == 0 {
		return time.Time{}
	}
	return time.Date(h.Year, time.Month(h.Month), h.Day, h.Hour, h.Minute, h.Second, 0, time.UTC)
}

// defaultVersion is substituted at emit time for a missing or placeholder
// version string (spec.md §4.1).
const defaultVersion = "1.19"

// SectorFlag is the on-wire sector-data-record flag byte (spec.md §4.2).
// Nine values are legal: 0x00 (unavailable) and eight combinations of
// normal/compressed × DAM × ERR.
type SectorFlag uint8

const (
	FlagUnavailable        SectorFlag = 0x00
	FlagNormal             SectorFlag = 0x01
	FlagCompressed         SectorFlag = 0x02
	FlagNormalDAM          SectorFlag = 0x03
	FlagCompressedDAM      SectorFlag = 0x04
	FlagNormalError        SectorFlag = 0x05
	FlagCompressedError    SectorFlag = 0x06
	FlagNormalDAMError     SectorFlag = 0x07
	FlagCompressedDAMError SectorFlag = 0x08
)

// validSectorFlag reports whether b is one of the nine legal on-wire flag
// values.
func validSectorFlag(b uint8) bool {
	return b <= 0x08
}

// HasData reports whether the sector slot carries real data, i.e. the flag
// is not FlagUnavailable. Per spec.md §9 this is the literal definition of
// "valid" used by the original imd_track_has_valid_sectors: a
// deleted-with-error sector still counts as having data.
func (f SectorFlag) HasData() bool {
	return f != FlagUnavailable
}

// IsCompressed reports whether the sector is stored as a single repeating
// byte. Per spec.md §4.2, compressed variants are the flags with the low
// bit clear and the value non-zero: 0x02, 0x04, 0x06, 0x08.
func (f SectorFlag) IsCompressed() bool {
	return f != FlagUnavailable && f&0x01 == 0
}

// HasDAM reports whether the sector carries a Deleted Address Mark.
func (f SectorFlag) HasDAM() bool {
	switch f {
	case FlagNormalDAM, FlagCompressedDAM, FlagNormalDAMError, FlagCompressedDAMError:
		return true
	default:
		return false
	}
}

// HasError reports whether the sector was read with a data error.
func (f SectorFlag) HasError() bool {
	switch f {
	case FlagNormalError, FlagCompressedError, FlagNormalDAMError, FlagCompressedDAMError:
		return true
	default:
		return false
	}
}

// sectorFlagFor builds the on-wire flag byte from the three orthogonal
// properties any sector with data can have: compressed-or-not, DAM, ERR.
func sectorFlagFor(compressed, dam, err bool) SectorFlag {
	var f uint8 = 0x01
	if compressed {
		f &^= 0x01
		f |= 0x02
	}
	if dam {
		f += 0x02
	}
	if err {
		f += 0x04
	}
	return SectorFlag(f)
}

// Track is the in-memory form of one track record (spec.md §3).
type Track struct {
	Mode       uint8
	Cylinder   uint8
	Head       uint8
	HFlag      uint8 // bit7: cmap present in source, bit6: hmap present in source
	SectorSize uint8 // sector-size code (0..6)

	// Parallel, length-n arrays. SMap holds logical sector IDs; CMap/HMap
	// hold per-sector cylinder/head overrides (defaulted to Cylinder/Head
	// when not present in the source bytes); SFlag holds the per-sector
	// record flag.
	SMap  []uint8
	CMap  []uint8
	HMap  []uint8
	SFlag []SectorFlag

	// Data is the contiguous n*sectorSize byte buffer. Empty for a
	// header-only or a zero-sector track.
	Data []byte

	// Loaded is true once Data has been materialized by a full-load read
	// or by WriteTrack; false for a track read header-only.
	Loaded bool
}

// sectorSizeBytes returns the track's sector size in bytes, from its
// sector-size code.
func (t *Track) sectorSizeBytes() (int, error) {
	sz, ok := sectorSizeFromCode(t.SectorSize)
	if !ok {
		return 0, newErr(KindInvalidFormat, "sector size code", errorf("code %d out of range", t.SectorSize))
	}
	return sz, nil
}

// NumSectors returns the number of sectors on the track.
func (t *Track) NumSectors() int {
	return len(t.SMap)
}

// HasCylinderMap reports whether the cylinder map was present in the
// source bytes (rather than defaulted).
func (t *Track) HasCylinderMap() bool {
	return t.HFlag&0x80 != 0
}

// HasHeadMap reports whether the head map was present in the source bytes.
func (t *Track) HasHeadMap() bool {
	return t.HFlag&0x40 != 0
}

// HasValidSectors reports whether any sector on the track carries data,
// using the literal (and slightly surprising, see spec.md §9) definition
// of "valid": flag != 0x00, so a deleted-with-error sector counts.
func (t *Track) HasValidSectors() bool {
	for _, f := range t.SFlag {
		if f.HasData() {
			return true
		}
	}
	return false
}

// sectorSlice returns the byte range of Data occupied by physical sector
// index i.
func (t *Track) sectorSlice(physicalIndex int) ([]byte, error) {
	sz, err := t.sectorSizeBytes()
	if err != nil {
		return nil, err
	}
	start := physicalIndex * sz
	end := start + sz
	if end > len(t.Data) {
		return nil, newErr(KindInvalidArgument, "sector slice", errorf("index %d out of range", physicalIndex))
	}
	return t.Data[start:end], nil
}

// findLogical returns the physical index of logical sector id, or -1.
func (t *Track) findLogical(id uint8) int {
	for i, v := range t.SMap {
		if v == id {
			return i
		}
	}
	return -1
}

// Key identifies a track by its (cylinder, head) position in the image.
type Key struct {
	Cylinder uint8
	Head     uint8
}

func (t *Track) key() Key {
	return Key{Cylinder: t.Cylinder, Head: t.Head & 0x0F}
}

// less reports whether a sorts before b in (cyl, head) ascending order.
func (a Key) less(b Key) bool {
	if a.Cylinder != b.Cylinder {
		return a.Cylinder < b.Cylinder
	}
	return a.Head < b.Head
}
