package imd

import (
	"bufio"
	"os"
)

// CheckFailure is a bitmask of scan failures. Multiple bits may be set;
// which ones short-circuit the scan is controlled by CheckOptions.ErrorMask.
type CheckFailure uint32

const (
	FailBadHeader CheckFailure = 1 << iota
	FailBadComment
	FailBadTrack
	FailGeometryCylinder
	FailGeometryHead
	FailGeometrySectors
)

// CheckOptions configures one consistency-checker pass (spec.md §6).
type CheckOptions struct {
	// ErrorMask selects which CheckFailure bits are fatal (abort the scan
	// and return an error) versus merely recorded in the returned mask.
	ErrorMask CheckFailure

	// MaxCylinder flags tracks with a cylinder above it. RequiredHeads is a
	// head count: tracks with a head number >= it are flagged, and 0 also
	// disables the check. MaxSectors flags tracks with more sectors than
	// it. unusedGeometry (0xFF) means "no limit" for each of the three.
	MaxCylinder   uint8
	RequiredHeads uint8
	MaxSectors    uint8
}

// CheckStats summarizes one consistency-checker pass.
type CheckStats struct {
	TracksRead         int
	TotalSectors       int
	UnavailableSectors int
	DeletedSectors     int
	CompressedSectors  int
	DataErrorSectors   int
	MaxCylinderSeen    uint8
	MaxHeadSeen        uint8
	DetectedInterleave int
}

// Check opens path read-only and scans it with the header/comment parsers
// and the flag-reading (non-data-materializing) track reader, accumulating
// a failure bitmask and statistics. It never mutates the file. A failure
// class set in opts.ErrorMask aborts the scan and returns it as err;
// otherwise it is recorded in the returned mask and scanning continues
// where it safely can.
func Check(path string, opts CheckOptions) (CheckFailure, CheckStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, CheckStats{}, newErr(KindIO, "check: open", err)
	}
	defer f.Close()

	var mask CheckFailure
	var stats CheckStats
	haveInterleave := false

	br := bufio.NewReader(f)
	if _, err := readHeaderLine(br); err != nil {
		mask |= FailBadHeader
		if opts.ErrorMask&FailBadHeader != 0 {
			return mask, stats, err
		}
		return mask, stats, nil
	}
	if err := skipComment(br); err != nil {
		mask |= FailBadComment
		if opts.ErrorMask&FailBadComment != 0 {
			return mask, stats, err
		}
		return mask, stats, nil
	}

	if err := syncFilePosition(f, br); err != nil {
		return mask, stats, newErr(KindIO, "check: sync position", err)
	}

	for {
		t, err := readTrack(f, loadHeaderAndFlags, 0)
		if err == errEndOfTracks {
			break
		}
		if err != nil {
			mask |= FailBadTrack
			if opts.ErrorMask&FailBadTrack != 0 {
				return mask, stats, err
			}
			break
		}

		stats.TracksRead++

		if opts.MaxCylinder != unusedGeometry && t.Cylinder > opts.MaxCylinder {
			mask |= FailGeometryCylinder
			if opts.ErrorMask&FailGeometryCylinder != 0 {
				return mask, stats, newErr(KindGeometryViolation, "check: cylinder", nil)
			}
		}
		headNum := t.Head & 0x0F
		if opts.RequiredHeads != unusedGeometry && opts.RequiredHeads != 0 && headNum >= opts.RequiredHeads {
			mask |= FailGeometryHead
			if opts.ErrorMask&FailGeometryHead != 0 {
				return mask, stats, newErr(KindGeometryViolation, "check: head", nil)
			}
		}
		if opts.MaxSectors != unusedGeometry && t.NumSectors() > int(opts.MaxSectors) {
			mask |= FailGeometrySectors
			if opts.ErrorMask&FailGeometrySectors != 0 {
				return mask, stats, newErr(KindGeometryViolation, "check: sectors", nil)
			}
		}

		if t.Cylinder > stats.MaxCylinderSeen {
			stats.MaxCylinderSeen = t.Cylinder
		}
		if headNum > stats.MaxHeadSeen {
			stats.MaxHeadSeen = headNum
		}
		if !haveInterleave && t.NumSectors() >= 2 {
			stats.DetectedInterleave = bestGuessInterleave(t.SMap)
			haveInterleave = true
		}

		for _, flag := range t.SFlag {
			stats.TotalSectors++
			if !flag.HasData() {
				stats.UnavailableSectors++
				continue
			}
			if flag.IsCompressed() {
				stats.CompressedSectors++
			}
			if flag.HasDAM() {
				stats.DeletedSectors++
			}
			if flag.HasError() {
				stats.DataErrorSectors++
			}
		}
	}

	return mask, stats, nil
}
