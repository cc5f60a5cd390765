package formats

import (
	"bytes"
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// bwmReader mirrors mdlReader's sticky-error accessors for the
// walkmesh stream.
type bwmReader struct {
	data []byte
	err  error
}

func (r *bwmReader) u32(off int) uint32 {
	if r.err != nil {
		return 0
	}
	if off < 0 || off+4 > len(r.data) {
		r.err = ErrTruncatedBWMData
		return 0
	}
	return binary.LittleEndian.Uint32(r.data[off:])
}

func (r *bwmReader) i32(off int) int32 { return int32(r.u32(off)) }

func (r *bwmReader) f32(off int) float32 {
	return gomath.Float32frombits(r.u32(off))
}

func (r *bwmReader) vec3(off int) math.Vec3 {
	return math.Vec3{X: r.f32(off), Y: r.f32(off + 4), Z: r.f32(off + 8)}
}

// ReadWalkmesh parses a binary walkmesh. Derived sections are taken
// from the file as stored; reprocessing is the caller's choice.
func ReadWalkmesh(data []byte, opts *CodecOptions) (*model.Walkmesh, error) {
	if len(data) < bwmHeaderSize {
		return nil, ErrTruncatedBWMData
	}
	if !bytes.Equal(data[:8], []byte(bwmMagic)) {
		return nil, ErrInvalidBWMHeader
	}
	r := &bwmReader{data: data}

	w := &model.Walkmesh{
		Type:     model.WalkmeshType(r.u32(bwmOffType)),
		UseVec1:  r.vec3(bwmOffUseVec1),
		UseVec2:  r.vec3(bwmOffUseVec2),
		Position: r.vec3(bwmOffPosition),
	}
	if w.Type != model.WalkmeshHook && w.Type != model.WalkmeshArea {
		return nil, ErrInvalidBWMType
	}

	vertCount := int(r.u32(bwmOffVerts))
	vertOff := int(r.u32(bwmOffVerts + 4))
	for i := 0; i < vertCount; i++ {
		w.Verts = append(w.Verts, r.vec3(vertOff+i*12))
	}

	faceCount := int(r.u32(bwmOffFaces))
	faceOff := int(r.u32(bwmOffFaces + 4))
	matOff := int(r.u32(bwmOffMats))
	normOff := int(r.u32(bwmOffNormals))
	distOff := int(r.u32(bwmOffDists))
	for i := 0; i < faceCount; i++ {
		f := model.WalkmeshFace{
			Material:      r.u32(matOff + i*4),
			Normal:        r.vec3(normOff + i*12),
			PlaneDistance: r.f32(distOff + i*4),
		}
		for c := 0; c < 3; c++ {
			f.V[c] = int(r.u32(faceOff + i*12 + c*4))
		}
		w.Faces = append(w.Faces, f)
	}

	aabbCount := int(r.u32(bwmOffAABBs))
	aabbOff := int(r.u32(bwmOffAABBs + 4))
	if aabbCount > 0 {
		w.AABBRoot = r.readAABB(aabbOff, aabbCount, 0, 0)
	}

	adjCount := int(r.u32(bwmOffAdj))
	adjOff := int(r.u32(bwmOffAdj + 4))
	for i := 0; i < adjCount; i++ {
		var adj [3]int
		for c := 0; c < 3; c++ {
			adj[c] = int(r.i32(adjOff + i*12 + c*4))
		}
		w.Adjacency = append(w.Adjacency, adj)
	}

	edgeCount := int(r.u32(bwmOffEdges))
	edgeOff := int(r.u32(bwmOffEdges + 4))
	perimCount := int(r.u32(bwmOffPerims))
	perimOff := int(r.u32(bwmOffPerims + 4))
	edges := make([]model.PerimeterEdge, 0, edgeCount)
	for i := 0; i < edgeCount; i++ {
		edges = append(edges, model.PerimeterEdge{
			Edge:       int(r.i32(edgeOff + i*8)),
			Transition: int(r.i32(edgeOff + i*8 + 4)),
		})
	}
	// Perimeter entries are cumulative end indices into the edge list.
	start := 0
	for i := 0; i < perimCount; i++ {
		end := int(r.u32(perimOff + i*4))
		if r.err != nil {
			break
		}
		if end < start || end > len(edges) {
			return nil, ErrTruncatedBWMData
		}
		w.Perimeters = append(w.Perimeters, edges[start:end])
		start = end
	}

	if r.err != nil {
		return nil, r.err
	}
	return w, nil
}

// readAABB rebuilds the tree from the flat on-disk entry array; child
// references are entry indices.
func (r *bwmReader) readAABB(base, count, idx, depth int) *model.AABBNode {
	if r.err != nil || idx < 0 || idx >= count || depth > maxAABBDepth {
		if idx >= count || depth > maxAABBDepth {
			r.err = ErrTruncatedBWMData
		}
		return nil
	}
	e := base + idx*bwmAABBEntrySize
	node := &model.AABBNode{
		Min:      r.vec3(e),
		Max:      r.vec3(e + 12),
		LeafFace: int(r.i32(e + 24)),
		Plane:    r.u32(e + 28),
	}
	left := int(r.i32(e + 32))
	right := int(r.i32(e + 36))
	if left >= 0 {
		node.Left = r.readAABB(base, count, left, depth+1)
	}
	if right >= 0 {
		node.Right = r.readAABB(base, count, right, depth+1)
	}
	return node
}
