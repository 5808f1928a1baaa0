package imd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckCountsSectorStatistics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "hi", 0xE5)

	mask, stats, err := Check(path, CheckOptions{MaxCylinder: unusedGeometry, RequiredHeads: unusedGeometry, MaxSectors: unusedGeometry})
	require.NoError(t, err)
	require.Zero(t, mask)
	require.Equal(t, 1, stats.TracksRead)
	require.Equal(t, 4, stats.TotalSectors)
	require.Equal(t, 4, stats.CompressedSectors)
	require.Equal(t, 0, stats.UnavailableSectors)
	require.Equal(t, uint8(0), stats.MaxCylinderSeen)
	require.Equal(t, uint8(0), stats.MaxHeadSeen)
}

func TestCheckFlagsGeometryViolationWithoutAborting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5) // single track at cyl 0

	mask, stats, err := Check(path, CheckOptions{MaxCylinder: 0, RequiredHeads: 1, MaxSectors: 2})
	require.NoError(t, err)
	require.NotZero(t, mask&FailGeometrySectors)
	require.Equal(t, 1, stats.TracksRead)
}

func TestCheckAbortsOnFatalErrorMask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	writeTestImage(t, path, "", 0xE5)

	_, _, err := Check(path, CheckOptions{MaxCylinder: unusedGeometry, RequiredHeads: unusedGeometry, MaxSectors: 2, ErrorMask: FailGeometrySectors})
	require.Error(t, err)
}

func TestCheckBadHeaderReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.imd")
	require.NoError(t, os.WriteFile(path, []byte("NOPE not an imd file\r\n\x1A"), 0o644))

	mask, _, err := Check(path, CheckOptions{})
	require.NoError(t, err)
	require.NotZero(t, mask&FailBadHeader)
}

func TestCheckMissingFileIsError(t *testing.T) {
	_, _, err := Check(filepath.Join(t.TempDir(), "missing.imd"), CheckOptions{})
	require.Error(t, err)
}
