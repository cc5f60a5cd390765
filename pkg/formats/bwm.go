package formats

import "errors"

// Walkmesh format errors.
var (
	ErrInvalidBWMHeader = errors.New("invalid BWM header")
	ErrInvalidBWMType   = errors.New("invalid BWM walkmesh type")
	ErrTruncatedBWMData = errors.New("truncated BWM data")
)

// bwmMagic is the 8-byte fixed file tag.
const bwmMagic = "BWM V1.0"

// Walkmesh header field offsets. Unlike the model format, every
// stored offset here is absolute from the start of the file.
const (
	bwmOffType     = 8
	bwmOffUseVec1  = 12
	bwmOffUseVec2  = 24
	bwmOffPosition = 36
	bwmOffVerts    = 48  // count, offset
	bwmOffFaces    = 56  // count, offset (indices)
	bwmOffMats     = 64  // offset; count is the face count
	bwmOffNormals  = 68  // offset
	bwmOffDists    = 72  // offset
	bwmOffAABBs    = 76  // count, offset
	bwmOffAdj      = 88  // count, offset
	bwmOffEdges    = 96  // count, offset
	bwmOffPerims   = 104 // count, offset

	bwmHeaderSize = 112
)

// On-disk AABB entry: min, max, leaf face, split plane, child indices.
const bwmAABBEntrySize = 40
