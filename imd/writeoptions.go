package imd

// CompressionMode selects how WriteOptions decides whether a sector with
// data is emitted as a compressed (single repeating byte) or normal
// record (spec.md §4.4).
type CompressionMode int

const (
	// CompressionAsRead keeps a sector compressed only if it already was
	// and its data is still uniform, with one documented exception: data
	// that is uniform is always emitted compressed, even if the original
	// flag was normal. See finalBaseType and spec.md §9's first open
	// question — this is observed source behavior, kept deliberately.
	CompressionAsRead CompressionMode = iota
	CompressionForceCompress
	CompressionForceDecompress
)

// ModeTranslation maps an original track mode (0..5) to the mode written
// on emit (spec.md §4.2's 6-entry tmode table). The table is applied as
// given, so the zero value writes every mode as 0; use
// IdentityModeTranslation for the unchanged mapping.
type ModeTranslation [6]uint8

// IdentityModeTranslation returns the translation table that writes every
// mode unchanged.
func IdentityModeTranslation() ModeTranslation {
	return ModeTranslation{0, 1, 2, 3, 4, 5}
}

// WriteOptions controls how emitTrack transforms a track on the way to disk
// (spec.md §4.4).
type WriteOptions struct {
	Compression     CompressionMode
	ForceNonBad     bool
	ForceNonDeleted bool
	ModeTranslation ModeTranslation
	Interleave      int // InterleaveAsRead, InterleaveBestGuess, or >= 1
}

// DefaultWriteOptions returns the options used for every track during a
// whole-file rewrite except the one the caller is actively editing
// (spec.md §4.6): as-read compression, no forced flags, identity mode
// translation, original sector order.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		Compression:     CompressionAsRead,
		ModeTranslation: IdentityModeTranslation(),
		Interleave:      InterleaveAsRead,
	}
}

// finalBaseType decides, for one sector with data, whether the base
// on-wire type is compressed or normal, per the table in spec.md §4.4.
func finalBaseType(mode CompressionMode, uniform bool) (compressed bool) {
	switch mode {
	case CompressionForceCompress:
		return uniform
	case CompressionForceDecompress:
		return false
	default: // CompressionAsRead
		// Observed behavior, preserved verbatim per spec.md §9: under
		// as-read, uniform data is always written compressed, whether or
		// not the original record was compressed.
		return uniform
	}
}

// finalSectorFlag computes the on-wire flag for a sector with data, given
// its chosen base type and the DAM/ERR bits carried over from the
// original flag (overridden by the force-non-* options).
func finalSectorFlag(opts WriteOptions, original SectorFlag, uniform bool) SectorFlag {
	compressed := finalBaseType(opts.Compression, uniform)

	dam := original.HasDAM() && !opts.ForceNonDeleted
	bad := original.HasError() && !opts.ForceNonBad

	return sectorFlagFor(compressed, dam, bad)
}
