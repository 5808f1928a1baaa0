package imd

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// defaultFillByte is used to materialize unavailable sectors during Open,
// matching the convention (seen across the archival IMD tooling this
// library imitates) of filling unread sectors with the classic "blank
// diskette" byte.
const defaultFillByte = 0xE5

// Image is the in-memory model of an open IMD file: header info, comment,
// ordered track list, geometry limits, and write-protection (spec.md
// §3/§4.5). An Image exclusively owns its tracks, its comment, its path,
// and its backing file handle; there is no shared ownership anywhere in
// this package. An Image is not safe for concurrent use — callers sharing
// one across goroutines must serialize access themselves (spec.md §5).
type Image struct {
	file     *os.File
	path     string
	readOnly bool

	header  HeaderInfo
	comment []byte

	// Tracks is exposed directly, ordered by (cylinder, head) ascending,
	// the way a freshly-parsed file is expected to already be ordered.
	Tracks []*Track

	maxCylinder uint8
	maxHead     uint8
	maxSpt      uint8

	writeProtect bool
	lastWarning  error
}

// Open opens path, parses its header and comment, and full-loads every
// track until a clean end-of-file. On any error every buffer allocated so
// far is released and the file is closed before the error is returned.
func Open(path string, readOnly bool) (*Image, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, newErr(KindIO, "open", err)
	}

	img := &Image{file: f, path: path, readOnly: readOnly, maxCylinder: unusedGeometry, maxHead: unusedGeometry, maxSpt: unusedGeometry}

	if err := img.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return img, nil
}

// load parses the header line, comment, and then full-loads tracks until
// a clean EOF. Used only from Open.
func (img *Image) load() error {
	br := bufio.NewReader(img.file)

	header, err := readHeaderLine(br)
	if err != nil {
		return err
	}
	img.header = header

	comment, err := readComment(br)
	if err != nil {
		return err
	}
	img.comment = comment

	if err := syncFilePosition(img.file, br); err != nil {
		return newErr(KindIO, "sync reader position", err)
	}

	for {
		t, err := readTrack(img.file, loadFull, defaultFillByte)
		if err == errEndOfTracks {
			break
		}
		if err != nil {
			img.Tracks = nil
			return err
		}
		img.Tracks = append(img.Tracks, t)
	}

	return nil
}

// syncFilePosition repositions f at the logical offset br has consumed,
// undoing bufio's read-ahead so raw, seekable reads can resume exactly
// where the buffered reader left off.
func syncFilePosition(f *os.File, br *bufio.Reader) error {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	pos -= int64(br.Buffered())
	_, err = f.Seek(pos, io.SeekStart)
	return err
}

// Close releases every track's data buffer and closes the backing file.
func (img *Image) Close() error {
	img.Tracks = nil
	img.comment = nil
	if img.file == nil {
		return nil
	}
	err := img.file.Close()
	img.file = nil
	if err != nil {
		return newErr(KindIO, "close", err)
	}
	return nil
}

// SetGeometry sets the three geometry limits. unusedGeometry (0xFF) means
// "no limit" for that axis.
func (img *Image) SetGeometry(maxCylinder, maxHead, maxSpt uint8) {
	img.maxCylinder = maxCylinder
	img.maxHead = maxHead
	img.maxSpt = maxSpt
}

// GetGeometry returns the three geometry limits currently in effect.
func (img *Image) GetGeometry() (maxCylinder, maxHead, maxSpt uint8) {
	return img.maxCylinder, img.maxHead, img.maxSpt
}

// SetWriteProtect sets or clears the write-protect flag. Clearing it on an
// image opened read-only fails: a read-only-opened image may never become
// writable again for the lifetime of the handle.
func (img *Image) SetWriteProtect(protect bool) error {
	if !protect && img.readOnly {
		return newErr(KindWriteProtected, "clear write protect on read-only image", nil)
	}
	img.writeProtect = protect
	return nil
}

// GetWriteProtect reports the current write-protect flag.
func (img *Image) GetWriteProtect() bool {
	return img.writeProtect
}

// GetHeaderInfo returns the parsed ASCII header line content.
func (img *Image) GetHeaderInfo() HeaderInfo {
	return img.header
}

// GetComment returns the comment bytes and its length.
func (img *Image) GetComment() ([]byte, int) {
	return img.comment, len(img.comment)
}

// GetNumTracks returns the number of tracks currently held in memory.
func (img *Image) GetNumTracks() int {
	return len(img.Tracks)
}

// GetTrackInfo returns the track at the given index in (cyl, head) order.
func (img *Image) GetTrackInfo(index int) (*Track, error) {
	if index < 0 || index >= len(img.Tracks) {
		return nil, newErr(KindTrackNotFound, "get track info", errorf("index %d out of range", index))
	}
	return img.Tracks[index], nil
}

// FindTrackByCH returns the index of the track at (cylinder, head), or
// ErrTrackNotFound.
func (img *Image) FindTrackByCH(cylinder, head uint8) (int, error) {
	for i, t := range img.Tracks {
		if t.Cylinder == cylinder && t.Head&0x0F == head {
			return i, nil
		}
	}
	return -1, newErr(KindTrackNotFound, "find track", errorf("no track at cyl=%d head=%d", cylinder, head))
}

// insertionIndex returns the index at which a track with key k belongs,
// by binary search over the ascending (cyl, head) order.
func (img *Image) insertionIndex(k Key) int {
	return sort.Search(len(img.Tracks), func(i int) bool {
		return !img.Tracks[i].key().less(k)
	})
}

// checkGeometry validates (cylinder, head) against the configured limits,
// and the logical sector id against maxSpt using the asymmetric rule
// preserved verbatim from spec.md §9: reject only when maxSpt is set, id
// exceeds it, and id is not the special case 0.
func (img *Image) checkGeometry(cylinder, head uint8, logicalID *uint8) error {
	if img.maxCylinder != unusedGeometry && cylinder > img.maxCylinder {
		return newErr(KindGeometryViolation, "geometry", errorf("cylinder %d exceeds max %d", cylinder, img.maxCylinder))
	}
	if img.maxHead != unusedGeometry && head > img.maxHead {
		return newErr(KindGeometryViolation, "geometry", errorf("head %d exceeds max %d", head, img.maxHead))
	}
	if logicalID != nil && img.maxSpt != unusedGeometry && *logicalID > img.maxSpt && *logicalID != 0 {
		return newErr(KindGeometryViolation, "geometry", errorf("sector id %d exceeds max %d", *logicalID, img.maxSpt))
	}
	return nil
}

// ReadSector copies the sector_size bytes of the sector identified by
// (cylinder, head, logicalID) into buf. buf must be at least sector_size
// bytes long.
func (img *Image) ReadSector(cylinder, head, logicalID uint8, buf []byte) error {
	if err := img.checkGeometry(cylinder, head, &logicalID); err != nil {
		return err
	}

	ti, err := img.FindTrackByCH(cylinder, head)
	if err != nil {
		return err
	}
	t := img.Tracks[ti]

	pi := t.findLogical(logicalID)
	if pi < 0 {
		return newErr(KindSectorNotFound, "read sector", errorf("logical id %d not on track", logicalID))
	}

	flag := safeFlag(t.SFlag, pi)
	if !flag.HasData() {
		return newErr(KindSectorUnavailable, "read sector", nil)
	}

	slice, err := t.sectorSlice(pi)
	if err != nil {
		return err
	}
	if len(buf) < len(slice) {
		return newErr(KindBufferTooSmall, "read sector", errorf("buffer is %d bytes, need %d", len(buf), len(slice)))
	}
	copy(buf, slice)
	return nil
}

// WriteSector patches one sector's data in place, then persists the
// change by rewriting the whole file (spec.md §4.5). buf must be exactly
// sector_size bytes; a mismatch fails before any mutation.
func (img *Image) WriteSector(cylinder, head, logicalID uint8, buf []byte) error {
	if img.readOnly || img.writeProtect {
		return newErr(KindWriteProtected, "write sector", nil)
	}
	if err := img.checkGeometry(cylinder, head, &logicalID); err != nil {
		return err
	}

	ti, err := img.FindTrackByCH(cylinder, head)
	if err != nil {
		return err
	}
	t := img.Tracks[ti]

	pi := t.findLogical(logicalID)
	if pi < 0 {
		return newErr(KindSectorNotFound, "write sector", errorf("logical id %d not on track", logicalID))
	}

	sz, err := t.sectorSizeBytes()
	if err != nil {
		return err
	}
	if len(buf) != sz {
		return newErr(KindSectorSizeMismatch, "write sector", errorf("buffer is %d bytes, need exactly %d", len(buf), sz))
	}

	originalFlag := safeFlag(t.SFlag, pi)
	wasCompressed := originalFlag.IsCompressed()

	slice, err := t.sectorSlice(pi)
	if err != nil {
		return err
	}
	copy(slice, buf)

	uniform, _ := isUniform(slice)
	forceDecompress := wasCompressed && !uniform

	opts := DefaultWriteOptions()
	if forceDecompress {
		opts.Compression = CompressionForceDecompress
	} else {
		opts.Compression = CompressionAsRead
	}

	warn, err := rewriteFile(img.file, img.header.Version, img.comment, img.Tracks, ti, opts)
	if err != nil {
		return err
	}
	img.lastWarning = warn

	if forceDecompress {
		for i := range t.SFlag {
			f := t.SFlag[i]
			if !f.HasData() {
				continue
			}
			t.SFlag[i] = sectorFlagFor(false, f.HasDAM(), f.HasError())
		}
	} else {
		t.SFlag[pi] = finalSectorFlag(opts, originalFlag, uniform)
	}

	return nil
}

// WriteTrack creates or replaces the track at (cylinder, head) with n
// sectors of the given size, all initialized to fillByte, then persists
// the change. If cmap/hmap are nil they default to the track's cylinder
// and head; otherwise they must each have length n.
func (img *Image) WriteTrack(cylinder, head uint8, n int, sectorSizeCode uint8, fillByte byte, smap []uint8, cmap, hmap []uint8) error {
	if img.readOnly || img.writeProtect {
		return newErr(KindWriteProtected, "write track", nil)
	}
	sectorSize, ok := sectorSizeFromCode(sectorSizeCode)
	if !ok {
		return newErr(KindInvalidArgument, "write track", errorf("sector size code %d out of range", sectorSizeCode))
	}
	if len(smap) != n {
		return newErr(KindInvalidArgument, "write track", errorf("smap length %d != n %d", len(smap), n))
	}
	if cmap != nil && len(cmap) != n {
		return newErr(KindInvalidArgument, "write track", errorf("cmap length %d != n %d", len(cmap), n))
	}
	if hmap != nil && len(hmap) != n {
		return newErr(KindInvalidArgument, "write track", errorf("hmap length %d != n %d", len(hmap), n))
	}
	if err := img.checkGeometry(cylinder, head, nil); err != nil {
		return err
	}

	t := &Track{
		Mode:       0,
		Cylinder:   cylinder,
		Head:       head & 0x0F,
		SectorSize: sectorSizeCode,
		SMap:       append([]uint8(nil), smap...),
		Loaded:     true,
	}

	if cmap != nil {
		t.HFlag |= 0x80
		t.CMap = append([]uint8(nil), cmap...)
	} else if n > 0 {
		t.CMap = make([]uint8, n)
		fillBytes(t.CMap, cylinder)
	}
	if hmap != nil {
		t.HFlag |= 0x40
		t.HMap = append([]uint8(nil), hmap...)
	} else if n > 0 {
		t.HMap = make([]uint8, n)
		fillBytes(t.HMap, head&0x0F)
	}

	t.Data = make([]byte, n*sectorSize)
	fillBytes(t.Data, fillByte)

	t.SFlag = make([]SectorFlag, n)
	for i := range t.SFlag {
		t.SFlag[i] = FlagNormal
	}

	existingIdx, findErr := img.FindTrackByCH(cylinder, head&0x0F)
	inserted := findErr != nil

	var targetIdx int
	if !inserted {
		targetIdx = existingIdx
		img.Tracks[targetIdx] = t
	} else {
		targetIdx = img.insertionIndex(t.key())
		img.Tracks = append(img.Tracks, nil)
		copy(img.Tracks[targetIdx+1:], img.Tracks[targetIdx:len(img.Tracks)-1])
		img.Tracks[targetIdx] = t
	}

	opts := DefaultWriteOptions()
	opts.Compression = CompressionForceCompress

	warn, err := rewriteFile(img.file, img.header.Version, img.comment, img.Tracks, targetIdx, opts)
	if err != nil {
		if inserted {
			img.Tracks = append(img.Tracks[:targetIdx], img.Tracks[targetIdx+1:]...)
		}
		return err
	}
	img.lastWarning = warn

	for i := range t.SFlag {
		t.SFlag[i] = FlagCompressed
	}

	return nil
}

// LastWarning returns the non-fatal warning (if any) from the most recent
// persisting operation: a failure to measure or truncate the file after a
// successful rewrite. The on-disk data is correct in that case; trailing
// garbage may simply remain past the new logical end.
func (img *Image) LastWarning() error {
	return img.lastWarning
}

// ContentHash returns an xxhash64 digest of the image's canonical
// representation: version string, comment, and every track emitted with
// DefaultWriteOptions(). Two images with identical logical content hash
// equal even if one was produced by a rewrite that only changed the
// regenerated header timestamp.
func (img *Image) ContentHash() (uint64, error) {
	var buf bytes.Buffer
	buf.WriteString(img.header.Version)
	buf.Write(img.comment)
	for _, t := range img.Tracks {
		if err := emitTrack(&buf, t, DefaultWriteOptions()); err != nil {
			return 0, err
		}
	}
	return xxhash.Sum64(buf.Bytes()), nil
}
