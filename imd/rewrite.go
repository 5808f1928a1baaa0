package imd

import (
	"bufio"
	"io"
	"os"
)

// unusedGeometry is the sentinel meaning "this geometry limit is unused"
// (spec.md §4.5/§6).
const unusedGeometry uint8 = 0xFF

// rewriteFile performs the whole-file rewrite + truncate of spec.md §4.6:
// seek to 0, emit header, emit comment, emit every track with
// DefaultWriteOptions() except modifiedIndex (which uses modifiedOpts),
// flush, measure the new length, and truncate the file to it.
//
// Any I/O error while emitting header/comment/tracks is fatal and returned
// as err. A failure measuring or truncating after a successful emission is
// reported as warn with err == nil: the bytes already on disk are correct,
// but trailing data from the previous, longer file may remain.
func rewriteFile(f *os.File, version string, comment []byte, tracks []*Track, modifiedIndex int, modifiedOpts WriteOptions) (warn error, err error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, newErr(KindIO, "seek to start", err)
	}

	w := bufio.NewWriter(f)

	if err := writeHeaderLine(w, version); err != nil {
		return nil, err
	}
	if err := writeComment(w, comment); err != nil {
		return nil, err
	}

	for i, t := range tracks {
		opts := DefaultWriteOptions()
		if i == modifiedIndex {
			opts = modifiedOpts
		}
		if err := emitTrack(w, t, opts); err != nil {
			return nil, err
		}
	}

	if err := w.Flush(); err != nil {
		return nil, newErr(KindIO, "flush rewrite", err)
	}

	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return newErr(KindIO, "measure rewritten length", err), nil
	}
	if err := f.Truncate(offset); err != nil {
		return newErr(KindIO, "truncate rewritten file", err), nil
	}
	if err := f.Sync(); err != nil {
		return newErr(KindIO, "sync rewritten file", err), nil
	}

	return nil, nil
}
