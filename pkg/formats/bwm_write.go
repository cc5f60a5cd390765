package formats

import (
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

type bwmWriter struct {
	buf []byte
}

func (w *bwmWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *bwmWriter) i32(v int32)   { w.u32(uint32(v)) }
func (w *bwmWriter) f32(v float32) { w.u32(gomath.Float32bits(v)) }

func (w *bwmWriter) vec3(v math.Vec3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *bwmWriter) patchU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[pos:], v)
}

// WriteWalkmesh serializes a walkmesh. The face list must already obey
// the walkable-first ordering; hook meshes get empty derived sections
// regardless of what the model carries.
func WriteWalkmesh(wm *model.Walkmesh, opts *CodecOptions) ([]byte, error) {
	w := &bwmWriter{buf: make([]byte, 0, bwmHeaderSize)}
	w.buf = append(w.buf, bwmMagic...)
	w.u32(uint32(wm.Type))
	w.vec3(wm.UseVec1)
	w.vec3(wm.UseVec2)
	w.vec3(wm.Position)
	// Section counts and offsets, patched as each section lands.
	for len(w.buf) < bwmHeaderSize {
		w.u32(0)
	}

	w.patchU32(bwmOffVerts, uint32(len(wm.Verts)))
	w.patchU32(bwmOffVerts+4, uint32(len(w.buf)))
	for _, v := range wm.Verts {
		w.vec3(v)
	}

	w.patchU32(bwmOffFaces, uint32(len(wm.Faces)))
	w.patchU32(bwmOffFaces+4, uint32(len(w.buf)))
	for _, f := range wm.Faces {
		for c := 0; c < 3; c++ {
			w.u32(uint32(f.V[c]))
		}
	}
	w.patchU32(bwmOffMats, uint32(len(w.buf)))
	for _, f := range wm.Faces {
		w.u32(f.Material)
	}
	w.patchU32(bwmOffNormals, uint32(len(w.buf)))
	for _, f := range wm.Faces {
		w.vec3(f.Normal)
	}
	w.patchU32(bwmOffDists, uint32(len(w.buf)))
	for _, f := range wm.Faces {
		w.f32(f.PlaneDistance)
	}

	if wm.Type == model.WalkmeshHook {
		return w.buf, nil
	}

	if wm.AABBRoot != nil {
		w.patchU32(bwmOffAABBs, uint32(wm.AABBRoot.Count()))
		w.patchU32(bwmOffAABBs+4, uint32(len(w.buf)))
		w.writeAABB(wm.AABBRoot)
	}

	w.patchU32(bwmOffAdj, uint32(len(wm.Adjacency)))
	w.patchU32(bwmOffAdj+4, uint32(len(w.buf)))
	for _, adj := range wm.Adjacency {
		for c := 0; c < 3; c++ {
			w.i32(int32(adj[c]))
		}
	}

	edgeCount := 0
	for _, loop := range wm.Perimeters {
		edgeCount += len(loop)
	}
	w.patchU32(bwmOffEdges, uint32(edgeCount))
	w.patchU32(bwmOffEdges+4, uint32(len(w.buf)))
	for _, loop := range wm.Perimeters {
		for _, e := range loop {
			w.i32(int32(e.Edge))
			w.i32(int32(e.Transition))
		}
	}

	w.patchU32(bwmOffPerims, uint32(len(wm.Perimeters)))
	w.patchU32(bwmOffPerims+4, uint32(len(w.buf)))
	end := 0
	for _, loop := range wm.Perimeters {
		end += len(loop)
		w.u32(uint32(end))
	}
	return w.buf, nil
}

// writeAABB flattens the tree pre-order; children become entry
// indices, assigned in emission order.
func (w *bwmWriter) writeAABB(root *model.AABBNode) {
	serial := 0
	var emit func(node *model.AABBNode) int
	emit = func(node *model.AABBNode) int {
		id := serial
		serial++
		w.vec3(node.Min)
		w.vec3(node.Max)
		w.i32(int32(node.LeafFace))
		w.u32(node.Plane)
		leftPos := len(w.buf)
		w.i32(-1)
		w.i32(-1)
		if !node.IsLeaf() {
			left := emit(node.Left)
			right := emit(node.Right)
			w.patchU32(leftPos, uint32(int32(left)))
			w.patchU32(leftPos+4, uint32(int32(right)))
		}
		return id
	}
	emit(root)
}
