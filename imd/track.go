package imd

import (
	"io"

	"github.com/pkg/errors"
)

// trackHeaderSize is the fixed 5-byte track header: mode, cyl, head-byte,
// sector count, sector-size code.
const trackHeaderSize = 5

// errEndOfTracks is returned by the track readers to signal a clean EOF at
// a track-record boundary: success, not a format error (spec.md §4.2).
var errEndOfTracks = errors.New("imd: end of track stream")

// trackLoadMode selects what the shared track reader does with each
// sector-data record, per spec.md §4.2's three read entry points.
type trackLoadMode int

const (
	loadHeaderOnly trackLoadMode = iota
	loadHeaderAndFlags
	loadFull
)

// offsetGuard records a stream's position on construction and restores it
// on Restore unless Disarm was called first. It expresses the "seek back
// to start on any mid-track failure" rule (spec.md §7) as a single
// guard used with defer, mirroring a scoped-destructor idiom in Go.
type offsetGuard struct {
	seeker   io.Seeker
	start    int64
	disarmed bool
}

func newOffsetGuard(s io.Seeker) (*offsetGuard, error) {
	start, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return &offsetGuard{seeker: s, start: start}, nil
}

func (g *offsetGuard) Disarm() { g.disarmed = true }

// Restore seeks back to the recorded start offset, unless Disarm was
// called. Intended for use with defer immediately after construction.
func (g *offsetGuard) Restore() {
	if g.disarmed {
		return
	}
	_, _ = g.seeker.Seek(g.start, io.SeekStart)
}

// trackReader is what the track codec needs from its backing stream: byte
// reads, short-read detection, and seeking for the offset guard and for
// header-only skipping.
type trackReader interface {
	io.Reader
	io.Seeker
}

// readTrack parses one track record from r in the given mode. A clean EOF
// before any byte of the record is read returns errEndOfTracks; any other
// failure (short read, bad field) restores r's position and returns a
// *Error.
func readTrack(r trackReader, mode trackLoadMode, fillByte byte) (*Track, error) {
	guard, err := newOffsetGuard(r)
	if err != nil {
		return nil, newErr(KindIO, "track offset guard", err)
	}
	defer guard.Restore()

	var hdr [trackHeaderSize]byte
	n, err := io.ReadFull(r, hdr[:1])
	if err != nil && errors.Is(err, io.EOF) && n == 0 {
		guard.Disarm()
		return nil, errEndOfTracks
	}
	if err != nil {
		return nil, newErr(KindInvalidFormat, "track header", err)
	}
	if _, err := io.ReadFull(r, hdr[1:]); err != nil {
		return nil, newErr(KindInvalidFormat, "track header", err)
	}

	t := &Track{
		Mode:     hdr[0],
		Cylinder: hdr[1],
		Head:     hdr[2] & 0x0F,
	}
	nsec := int(hdr[3])
	t.SectorSize = hdr[4]
	t.HFlag = hdr[2] & 0xC0

	if t.Mode >= 6 {
		return nil, newErr(KindInvalidFormat, "track header", errorf("mode %d out of range", t.Mode))
	}
	if hdr[2]&0x0F > 1 {
		return nil, newErr(KindInvalidFormat, "track header", errorf("head %d out of range", hdr[2]&0x0F))
	}
	if t.SectorSize > 6 {
		return nil, newErr(KindInvalidFormat, "track header", errorf("sector size code %d out of range", t.SectorSize))
	}
	sectorSize, ok := sectorSizeFromCode(t.SectorSize)
	if !ok {
		return nil, newErr(KindInvalidFormat, "track header", errorf("sector size code %d out of range", t.SectorSize))
	}

	if nsec > 0 {
		t.SMap = make([]uint8, nsec)
		if _, err := io.ReadFull(r, t.SMap); err != nil {
			return nil, newErr(KindInvalidFormat, "sector map", err)
		}
	}

	cylByte := hdr[1]
	headNum := hdr[2] & 0x0F

	if t.HasCylinderMap() {
		t.CMap = make([]uint8, nsec)
		if _, err := io.ReadFull(r, t.CMap); err != nil {
			return nil, newErr(KindInvalidFormat, "cylinder map", err)
		}
	} else if nsec > 0 {
		t.CMap = make([]uint8, nsec)
		for i := range t.CMap {
			t.CMap[i] = cylByte
		}
	}

	if t.HasHeadMap() {
		t.HMap = make([]uint8, nsec)
		if _, err := io.ReadFull(r, t.HMap); err != nil {
			return nil, newErr(KindInvalidFormat, "head map", err)
		}
	} else if nsec > 0 {
		t.HMap = make([]uint8, nsec)
		for i := range t.HMap {
			t.HMap[i] = headNum
		}
	}

	if nsec > 0 && (mode == loadHeaderAndFlags || mode == loadFull) {
		t.SFlag = make([]SectorFlag, nsec)
	}
	if mode == loadFull {
		t.Data = make([]byte, nsec*sectorSize)
		t.Loaded = true
	}

	for i := 0; i < nsec; i++ {
		var flagByte [1]byte
		if _, err := io.ReadFull(r, flagByte[:]); err != nil {
			return nil, newErr(KindInvalidFormat, "sector flag", err)
		}
		flag := flagByte[0]
		if !validSectorFlag(flag) {
			return nil, newErr(KindInvalidFormat, "sector flag", errorf("unknown flag 0x%02X", flag))
		}

		if mode == loadHeaderAndFlags || mode == loadFull {
			t.SFlag[i] = SectorFlag(flag)
		}

		recordLen := sectorRecordLength(flag, sectorSize)

		switch mode {
		case loadHeaderOnly:
			if recordLen > 0 {
				if _, err := r.Seek(int64(recordLen), io.SeekCurrent); err != nil {
					return nil, newErr(KindIO, "skip sector data", err)
				}
			}
		case loadHeaderAndFlags:
			if recordLen > 0 {
				if _, err := r.Seek(int64(recordLen), io.SeekCurrent); err != nil {
					return nil, newErr(KindIO, "skip sector data", err)
				}
			}
		case loadFull:
			slice := t.Data[i*sectorSize : (i+1)*sectorSize]
			switch {
			case flag == uint8(FlagUnavailable):
				fillBytes(slice, fillByte)
			case SectorFlag(flag).IsCompressed():
				var b [1]byte
				if _, err := io.ReadFull(r, b[:]); err != nil {
					return nil, newErr(KindInvalidFormat, "compressed sector byte", err)
				}
				fillBytes(slice, b[0])
			default:
				if _, err := io.ReadFull(r, slice); err != nil {
					return nil, newErr(KindInvalidFormat, "sector data", err)
				}
			}
		}
	}

	guard.Disarm()
	return t, nil
}

// sectorRecordLength returns how many data bytes follow the flag byte for
// a sector-data record: 0 for unavailable, 1 for compressed, sectorSize
// for normal.
func sectorRecordLength(flag uint8, sectorSize int) int {
	switch {
	case flag == uint8(FlagUnavailable):
		return 0
	case SectorFlag(flag).IsCompressed():
		return 1
	default:
		return sectorSize
	}
}

func fillBytes(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// emitTrack writes one track record to w per spec.md §4.2's emit
// pipeline: optional interleave on a copy of the track, mode translation,
// per-sector flag re-derivation, then the header, maps, and sector-data
// records.
func emitTrack(w io.Writer, t *Track, opts WriteOptions) error {
	work := t
	if opts.Interleave != InterleaveAsRead && t.NumSectors() >= 2 {
		cp := cloneTrack(t)
		if err := applyInterleave(cp, opts.Interleave); err != nil {
			return err
		}
		work = cp
	}

	writtenMode := work.Mode
	if int(work.Mode) < len(opts.ModeTranslation) {
		writtenMode = opts.ModeTranslation[work.Mode]
	}

	sz, err := work.sectorSizeBytes()
	if err != nil {
		return err
	}

	n := work.NumSectors()
	headByte := work.Head&0x0F | work.HFlag&0xC0

	hdr := [trackHeaderSize]byte{writtenMode, work.Cylinder, headByte, uint8(n), work.SectorSize}
	if _, err := w.Write(hdr[:]); err != nil {
		return newErr(KindIO, "write track header", err)
	}

	if n > 0 {
		if _, err := w.Write(work.SMap); err != nil {
			return newErr(KindIO, "write sector map", err)
		}
	}
	if work.HasCylinderMap() {
		if _, err := w.Write(work.CMap); err != nil {
			return newErr(KindIO, "write cylinder map", err)
		}
	}
	if work.HasHeadMap() {
		if _, err := w.Write(work.HMap); err != nil {
			return newErr(KindIO, "write head map", err)
		}
	}

	for i := 0; i < n; i++ {
		original := safeFlag(work.SFlag, i)
		var flag SectorFlag
		var slice []byte
		if work.Data != nil {
			slice = work.Data[i*sz : (i+1)*sz]
		}

		if !original.HasData() {
			flag = FlagUnavailable
		} else {
			uniform, _ := isUniform(slice)
			flag = finalSectorFlag(opts, original, uniform)
		}

		if err := writeSectorRecord(w, flag, slice); err != nil {
			return err
		}
	}

	return nil
}

func safeFlag(flags []SectorFlag, i int) SectorFlag {
	if i >= len(flags) {
		return FlagUnavailable
	}
	return flags[i]
}

// writeSectorRecord writes one sector-data record: the flag byte, then 0,
// 1, or len(data) payload bytes depending on the flag.
func writeSectorRecord(w io.Writer, flag SectorFlag, data []byte) error {
	if _, err := w.Write([]byte{uint8(flag)}); err != nil {
		return newErr(KindIO, "write sector flag", err)
	}
	switch {
	case flag == FlagUnavailable:
		return nil
	case flag.IsCompressed():
		uniform, b := isUniform(data)
		if !uniform {
			return newErr(KindInvalidArgument, "write compressed sector", errorf("sector data is not uniform"))
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return newErr(KindIO, "write compressed sector byte", err)
		}
		return nil
	default:
		if _, err := w.Write(data); err != nil {
			return newErr(KindIO, "write sector data", err)
		}
		return nil
	}
}

// cloneTrack makes a deep copy of a track's maps and data buffer, used so
// interleaving for emit never mutates the caller's in-memory track.
func cloneTrack(t *Track) *Track {
	cp := *t
	cp.SMap = append([]uint8(nil), t.SMap...)
	cp.CMap = append([]uint8(nil), t.CMap...)
	cp.HMap = append([]uint8(nil), t.HMap...)
	cp.SFlag = append([]SectorFlag(nil), t.SFlag...)
	cp.Data = append([]byte(nil), t.Data...)
	return &cp
}
