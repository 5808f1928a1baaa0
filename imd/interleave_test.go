package imd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsUniform(t *testing.T) {
	uniform, b := isUniform([]byte{5, 5, 5, 5})
	require.True(t, uniform)
	require.Equal(t, byte(5), b)

	uniform, _ = isUniform([]byte{5, 5, 6, 5})
	require.False(t, uniform)

	uniform, b = isUniform(nil)
	require.True(t, uniform)
	require.Equal(t, byte(0), b)
}

func TestBestGuessInterleaveSingleSector(t *testing.T) {
	require.Equal(t, 1, bestGuessInterleave([]uint8{1}))
	require.Equal(t, 1, bestGuessInterleave(nil))
}

func TestBestGuessInterleaveSequential(t *testing.T) {
	// physical order already 1..n: every adjacent distance is 1.
	require.Equal(t, 1, bestGuessInterleave([]uint8{1, 2, 3, 4}))
}

func TestBestGuessInterleaveFactorTwo(t *testing.T) {
	// logical 1,2,3,4,5,6 laid out physically as 1,4,2,5,3,6 (2:1 interleave).
	require.Equal(t, 2, bestGuessInterleave([]uint8{1, 4, 2, 5, 3, 6}))
}

func TestInterleavePermutationFactorOne(t *testing.T) {
	perm := interleavePermutation(4, 1)
	require.Equal(t, []int{0, 1, 2, 3}, perm)
}

func TestInterleavePermutationFactorTwoSixSectors(t *testing.T) {
	perm := interleavePermutation(6, 2)
	// 0, 2, 4, then collisions step to 1, 3, 5.
	require.Equal(t, []int{0, 2, 4, 1, 3, 5}, perm)
}

func TestApplyInterleavePreservesDataByLogicalID(t *testing.T) {
	tr := &Track{
		SectorSize: 0, // 128 bytes
		SMap:       []uint8{1, 2, 3, 4},
		CMap:       []uint8{0, 0, 0, 0},
		HMap:       []uint8{0, 0, 0, 0},
		SFlag:      []SectorFlag{FlagNormal, FlagNormal, FlagNormal, FlagNormal},
		Data:       make([]byte, 4*128),
	}
	for i := 0; i < 4; i++ {
		fillBytes(tr.Data[i*128:(i+1)*128], byte(i+1))
	}

	err := applyInterleave(tr, 2)
	require.NoError(t, err)

	// Whatever the new physical order, logical id i's data must still be byte i.
	for physIdx, id := range tr.SMap {
		slice := tr.Data[physIdx*128 : (physIdx+1)*128]
		require.Equal(t, byte(id), slice[0])
	}
}

func TestApplyInterleaveAsReadIsNoop(t *testing.T) {
	tr := &Track{SMap: []uint8{2, 1, 3}}
	orig := append([]uint8(nil), tr.SMap...)
	err := applyInterleave(tr, InterleaveAsRead)
	require.NoError(t, err)
	require.Equal(t, orig, tr.SMap)
}
