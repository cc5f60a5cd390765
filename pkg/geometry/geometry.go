// Package geometry normalizes a parsed scene model: it rebuilds every
// piece of derived data that neither the binary nor the ascii format
// stores losslessly (vertex normals and tangent bases, smoothing
// groups, welded vertex lists, bounding-volume trees, compressed
// orientation keys, skin bone tables).
//
// Process runs after either codec's read path and before either
// codec's write path and is idempotent on already-normalized data.
package geometry

import (
	"go.uber.org/zap"
)

// Options control derived-data reconstruction.
type Options struct {
	// WeldTolerance is the position/UV distance under which two
	// face-corner tuples count as equal.
	WeldTolerance float32
	// AreaWeight scales each face's normal contribution by its
	// surface area.
	AreaWeight bool
	// AngleWeight scales each face's normal contribution by the
	// angle it subtends at the shared vertex.
	AngleWeight bool
	// CreaseAngle, when > 0 (radians), stops normal accumulation
	// across faces whose normal deviates more than this from the
	// running accumulated normal. Tangent accumulation ignores it.
	CreaseAngle float32

	Logger *zap.Logger
}

// DefaultOptions returns the converter defaults.
func DefaultOptions() Options {
	return Options{
		WeldTolerance: 1e-4,
		AreaWeight:    true,
		AngleWeight:   true,
		Logger:        zap.NewNop(),
	}
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
