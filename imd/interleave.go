package imd

import "sort"

// InterleaveAsRead leaves a track's physical sector order untouched.
// InterleaveBestGuess resolves to the computed best-guess interleave
// before being applied. Any value >= 1 is a concrete interleave factor.
const (
	InterleaveAsRead    = 0
	InterleaveBestGuess = -1
)

// isUniform reports whether every byte of b equals the same value. An
// empty buffer is uniform by convention (spec.md §4.3), returning the
// zero byte.
func isUniform(b []byte) (bool, byte) {
	if len(b) == 0 {
		return true, 0
	}
	first := b[0]
	for _, v := range b[1:] {
		if v != first {
			return false, 0
		}
	}
	return true, first
}

// bestGuessInterleave estimates the interleave factor of a track from its
// logical sector order (spec.md §4.3): for each pair of logically-adjacent
// IDs (after sorting smap), the forward physical distance mod n is
// computed, and the mode of that distribution is the guess, ties broken by
// smallest distance. Returns 1 when n < 2 or no positive distances exist.
func bestGuessInterleave(smap []uint8) int {
	n := len(smap)
	if n < 2 {
		return 1
	}

	// physicalPos[id] = physical index of the sector carrying logical id.
	physicalPos := make(map[uint8]int, n)
	for i, id := range smap {
		physicalPos[id] = i
	}

	sorted := append([]uint8(nil), smap...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	counts := make(map[int]int)
	for i := 0; i < n; i++ {
		a := sorted[i]
		b := sorted[(i+1)%n]
		dist := ((physicalPos[b] - physicalPos[a]) % n + n) % n
		if dist > 0 {
			counts[dist]++
		}
	}

	if len(counts) == 0 {
		return 1
	}

	best, bestCount := 0, -1
	for dist := 1; dist < n; dist++ {
		c, ok := counts[dist]
		if !ok {
			continue
		}
		if c > bestCount {
			best, bestCount = dist, c
		}
	}
	return best
}

// interleavePermutation builds the physical-position permutation for
// interleave factor k over n sectors, per spec.md §4.3: logically-sorted
// sectors are placed at 0, k mod n, 2k mod n, ..., stepping to the next
// free physical slot on collision.
//
// perm[logicalRank] = physical index chosen for the logical-rank-th
// sector in ascending ID order.
func interleavePermutation(n, k int) []int {
	if n <= 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}

	perm := make([]int, n)
	taken := make([]bool, n)
	pos := 0
	for i := 0; i < n; i++ {
		for taken[pos] {
			pos = (pos + 1) % n
		}
		perm[i] = pos
		taken[pos] = true
		pos = (pos + k) % n
	}
	return perm
}

// applyInterleave permutes a track's parallel arrays (SMap, CMap, HMap,
// SFlag, Data) in place according to interleave factor k. factor may be
// InterleaveAsRead (no-op) or InterleaveBestGuess (resolved first via
// bestGuessInterleave). A concrete k < 1 is treated as 1.
func applyInterleave(t *Track, factor int) error {
	if factor == InterleaveAsRead {
		return nil
	}

	n := t.NumSectors()
	if n < 2 {
		return nil
	}

	k := factor
	if factor == InterleaveBestGuess {
		k = bestGuessInterleave(t.SMap)
	}

	sz, err := t.sectorSizeBytes()
	if err != nil {
		return err
	}

	// order[logicalRank] = original physical index, sorted by logical ID
	// ascending, so we know which original sector goes to which new slot.
	type sectorRef struct {
		id  uint8
		idx int
	}
	refs := make([]sectorRef, n)
	for i, id := range t.SMap {
		refs[i] = sectorRef{id: id, idx: i}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].id < refs[j].id })

	perm := interleavePermutation(n, k)

	newSMap := make([]uint8, n)
	var newCMap, newHMap []uint8
	if t.CMap != nil {
		newCMap = make([]uint8, n)
	}
	if t.HMap != nil {
		newHMap = make([]uint8, n)
	}
	var newSFlag []SectorFlag
	if t.SFlag != nil {
		newSFlag = make([]SectorFlag, n)
	}
	var newData []byte
	if t.Data != nil {
		newData = make([]byte, len(t.Data))
	}

	for rank, ref := range refs {
		dst := perm[rank]
		src := ref.idx

		newSMap[dst] = t.SMap[src]
		if newCMap != nil {
			newCMap[dst] = t.CMap[src]
		}
		if newHMap != nil {
			newHMap[dst] = t.HMap[src]
		}
		if newSFlag != nil {
			newSFlag[dst] = t.SFlag[src]
		}
		if newData != nil {
			copy(newData[dst*sz:(dst+1)*sz], t.Data[src*sz:(src+1)*sz])
		}
	}

	t.SMap = newSMap
	if newCMap != nil {
		t.CMap = newCMap
	}
	if newHMap != nil {
		t.HMap = newHMap
	}
	if newSFlag != nil {
		t.SFlag = newSFlag
	}
	if newData != nil {
		t.Data = newData
	}
	return nil
}
