package imd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTestImage assembles a minimal valid IMD file: header line, comment,
// terminator, and a single track (cyl=0, head=0, mode=5, n=4, size=128)
// with every sector compressed to fillByte, matching the seed scenario of
// one all-E5 track.
func writeTestImage(t *testing.T, path string, comment string, fillByte byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeHeaderLine(&buf, "1.19"))
	require.NoError(t, writeComment(&buf, []byte(comment)))

	buf.Write([]byte{5, 0, 0, 4, 0})
	buf.Write([]byte{1, 2, 3, 4})
	for i := 0; i < 4; i++ {
		buf.WriteByte(uint8(FlagCompressed))
		buf.WriteByte(fillByte)
	}

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestOpenParsesHeaderCommentAndTracks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "hello", 0xE5)

	img, err := Open(path, false)
	require.NoError(t, err)
	defer img.Close()

	require.Equal(t, "1.19", img.GetHeaderInfo().Version)
	comment, n := img.GetComment()
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), comment)

	require.Equal(t, 1, img.GetNumTracks())
	tr, err := img.GetTrackInfo(0)
	require.NoError(t, err)
	require.Equal(t, 4, tr.NumSectors())
	for _, f := range tr.SFlag {
		require.True(t, f.IsCompressed())
	}
}

func TestReadSectorReturnsMaterializedData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5)

	img, err := Open(path, true)
	require.NoError(t, err)
	defer img.Close()

	buf := make([]byte, 128)
	require.NoError(t, img.ReadSector(0, 0, 2, buf))
	for _, b := range buf {
		require.Equal(t, byte(0xE5), b)
	}
}

func TestReadSectorUnknownGeometryFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5)

	img, err := Open(path, true)
	require.NoError(t, err)
	defer img.Close()

	buf := make([]byte, 128)
	err = img.ReadSector(1, 0, 1, buf)
	require.Error(t, err)
}

func TestWriteSectorForcesDecompressionOnNonUniformData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5)

	img, err := Open(path, false)
	require.NoError(t, err)
	defer img.Close()

	newData := make([]byte, 128)
	for i := range newData {
		newData[i] = byte(i)
	}
	require.NoError(t, img.WriteSector(0, 0, 2, newData))

	tr, err := img.GetTrackInfo(0)
	require.NoError(t, err)
	for _, f := range tr.SFlag {
		require.False(t, f.IsCompressed())
	}

	img2, err := Open(path, true)
	require.NoError(t, err)
	defer img2.Close()

	buf := make([]byte, 128)
	require.NoError(t, img2.ReadSector(0, 0, 2, buf))
	require.Equal(t, newData, buf)
}

func TestWriteSectorRejectsWrongSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5)

	img, err := Open(path, false)
	require.NoError(t, err)
	defer img.Close()

	err = img.WriteSector(0, 0, 1, make([]byte, 64))
	require.Error(t, err)
}

func TestWriteSectorFailsOnReadOnlyImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5)

	img, err := Open(path, true)
	require.NoError(t, err)
	defer img.Close()

	err = img.WriteSector(0, 0, 1, make([]byte, 128))
	require.ErrorIs(t, err, ErrWriteProtected)
}

func TestWriteTrackInsertsNewTrackInSortedPosition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5) // single track at (0,0)

	img, err := Open(path, false)
	require.NoError(t, err)
	defer img.Close()

	err = img.WriteTrack(0, 1, 2, 0, 0xE5, []uint8{1, 2}, nil, nil)
	require.NoError(t, err)

	require.Equal(t, 2, img.GetNumTracks())
	idx, err := img.FindTrackByCH(0, 1)
	require.NoError(t, err)
	require.Equal(t, 1, idx)

	tr, err := img.GetTrackInfo(idx)
	require.NoError(t, err)
	require.False(t, tr.HasCylinderMap())
	require.False(t, tr.HasHeadMap())
	require.Equal(t, []uint8{0, 0}, tr.CMap)
	require.Equal(t, []uint8{1, 1}, tr.HMap)

	img2, err := Open(path, true)
	require.NoError(t, err)
	defer img2.Close()
	require.Equal(t, 2, img2.GetNumTracks())
}

func TestSetWriteProtectFailsToClearOnReadOnlyImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5)

	img, err := Open(path, true)
	require.NoError(t, err)
	defer img.Close()

	require.NoError(t, img.SetWriteProtect(true))
	err = img.SetWriteProtect(false)
	require.ErrorIs(t, err, ErrWriteProtected)
}

func TestOpenTruncatedFileFailsCleanly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	var buf bytes.Buffer
	require.NoError(t, writeHeaderLine(&buf, "1.19"))
	require.NoError(t, writeComment(&buf, nil))
	buf.Write([]byte{5, 0, 0, 4, 0})
	buf.Write([]byte{1, 2, 3, 4})
	buf.WriteByte(uint8(FlagNormal))
	buf.Write(make([]byte, 10)) // short: needs 128 bytes of sector data
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	img, err := Open(path, true)
	require.Error(t, err)
	require.Nil(t, img)
}

func TestContentHashStableAcrossRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "hello", 0xE5)

	img, err := Open(path, false)
	require.NoError(t, err)
	h1, err := img.ContentHash()
	require.NoError(t, err)

	// Rewriting a sector with its existing uniform content rewrites the
	// whole file (regenerating the header timestamp) without changing it.
	same := make([]byte, 128)
	fillBytes(same, 0xE5)
	require.NoError(t, img.WriteSector(0, 0, 1, same))
	require.NoError(t, img.Close())

	img2, err := Open(path, false)
	require.NoError(t, err)
	defer img2.Close()
	h2, err := img2.ContentHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestFindTrackByCHNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5)

	img, err := Open(path, true)
	require.NoError(t, err)
	defer img.Close()

	_, err = img.FindTrackByCH(5, 1)
	require.ErrorIs(t, err, ErrTrackNotFound)
}
