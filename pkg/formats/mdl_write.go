package formats

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/Faultbox/aurora-mdl/pkg/geometry"
	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// binWriter builds the structural stream in memory. Forward references
// are written as zero placeholders and recorded as pending fixups
// against named entities; once every entity has an assigned offset the
// fixups are resolved in one final pass, each patched to the entity's
// offset minus the 12-byte lead header.
type binWriter struct {
	buf     []byte
	fixups  []fixup
	offsets map[string]int
}

type fixup struct {
	pos int
	key string
}

func newBinWriter() *binWriter {
	return &binWriter{offsets: make(map[string]int)}
}

func (w *binWriter) pos() int { return len(w.buf) }

func (w *binWriter) mark(key string) {
	w.offsets[key] = len(w.buf)
}

func (w *binWriter) u8(v uint8)  { w.buf = append(w.buf, v) }
func (w *binWriter) pad(n int)   { w.buf = append(w.buf, make([]byte, n)...) }

func (w *binWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *binWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *binWriter) i32(v int32) { w.u32(uint32(v)) }

func (w *binWriter) f32(v float32) { w.u32(gomath.Float32bits(v)) }

func (w *binWriter) vec3(v math.Vec3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

// quatWXYZ writes a quaternion in on-disk order: w first.
func (w *binWriter) quatWXYZ(q math.Quat) {
	w.f32(q.W)
	w.f32(q.X)
	w.f32(q.Y)
	w.f32(q.Z)
}

// fixedString writes a NUL-padded fixed-width string field.
func (w *binWriter) fixedString(s string, width int) {
	b := make([]byte, width)
	copy(b, s)
	b[width-1] = 0
	w.buf = append(w.buf, b...)
}

// ref writes a placeholder word to be patched with (offset of key)-12.
func (w *binWriter) ref(key string) {
	w.fixups = append(w.fixups, fixup{pos: len(w.buf), key: key})
	w.u32(0)
}

// arrayDef writes an array descriptor: offset placeholder plus the
// count twice. Empty arrays keep a zero offset and get no fixup.
func (w *binWriter) arrayDef(key string, count int) {
	if count > 0 {
		w.ref(key)
	} else {
		w.u32(0)
	}
	w.u32(uint32(count))
	w.u32(uint32(count))
}

// patchU32 overwrites an already-emitted word.
func (w *binWriter) patchU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[pos:], v)
}

// resolve patches every pending fixup.
func (w *binWriter) resolve() error {
	for _, f := range w.fixups {
		off, ok := w.offsets[f.key]
		if !ok {
			return fmt.Errorf("unresolved fixup %q", f.key)
		}
		w.patchU32(f.pos, uint32(off-fileHeaderSize))
	}
	return nil
}

// WriteModel serializes a normalized model into the paired MDL and
// MDX streams in the given dialect.
//
// The model must be post-processed first: the writer trusts plane
// equations, smoothing groups, bone tables and AABB trees to be
// populated. Node emission order is the pre-order traversal of the
// tree, matching discovery order.
func WriteModel(m *model.Model, dialect *Dialect, opts *CodecOptions) ([]byte, []byte, error) {
	if dialect == nil {
		dialect = DialectK1
	}
	w := newBinWriter()
	mw := &mdlModelWriter{w: w, m: m, dialect: dialect}

	// Lead header: patched once both stream sizes are known.
	w.u32(0)
	mdlSizePos := w.pos()
	w.u32(0)
	mdxSizePos := w.pos()
	w.u32(0)

	mw.writeGeometryHeader(m.Name, geomTypeModel, "node:0", len(m.Nodes))
	mw.writeModelHeader()
	mdxSizeDupPos := mw.writeNamesHeader()
	mw.writeNameTable()
	mw.writeAnimations()
	mw.writeNodeTree("node", m.Nodes, -1)

	if err := w.resolve(); err != nil {
		return nil, nil, err
	}
	w.patchU32(mdlSizePos, uint32(len(w.buf)-fileHeaderSize))
	w.patchU32(mdxSizePos, uint32(len(mw.mdx)))
	w.patchU32(mdxSizeDupPos, uint32(len(mw.mdx)))
	return w.buf, mw.mdx, nil
}

type mdlModelWriter struct {
	w       *binWriter
	m       *model.Model
	dialect *Dialect
	mdx     []byte
}

func (mw *mdlModelWriter) writeGeometryHeader(name string, geomType uint8, rootKey string, nodeCount int) {
	w := mw.w
	if geomType == geomTypeAnim {
		w.u32(mw.dialect.AnimFnPtr1)
		w.u32(mw.dialect.AnimFnPtr2)
	} else {
		w.u32(mw.dialect.ModelFnPtr1)
		w.u32(mw.dialect.ModelFnPtr2)
	}
	w.fixedString(name, 32)
	if rootKey == "" {
		w.u32(0)
	} else {
		w.ref(rootKey)
	}
	w.u32(uint32(nodeCount))
	w.pad(24) // runtime arrays
	w.u32(0)  // reference count
	w.u8(geomType)
	w.pad(3)
}

func (mw *mdlModelWriter) writeModelHeader() {
	w := mw.w
	m := mw.m
	w.u8(uint8(m.Classification))
	w.u8(m.Subclassification)
	w.u8(0)
	if m.AffectedByFog {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u32(0) // child model count
	w.arrayDef("animoffsets", len(m.Anims))
	w.u32(0) // supermodel runtime pointer
	w.vec3(m.BoundingMin)
	w.vec3(m.BoundingMax)
	w.f32(m.Radius)
	w.f32(m.AnimScale)
	w.fixedString(m.Supermodel, 32)
}

// writeNamesHeader returns the position of the duplicate MDX size
// word so WriteModel can patch it last.
func (mw *mdlModelWriter) writeNamesHeader() int {
	w := mw.w
	w.ref("node:0")
	w.u32(0)
	pos := w.pos()
	w.u32(0) // mdx size, patched
	w.u32(0) // mdx offset
	w.arrayDef("nameoffsets", len(mw.m.Names))
	return pos
}

func (mw *mdlModelWriter) writeNameTable() {
	w := mw.w
	w.mark("nameoffsets")
	for i := range mw.m.Names {
		w.ref(fmt.Sprintf("name:%d", i))
	}
	for i, name := range mw.m.Names {
		w.mark(fmt.Sprintf("name:%d", i))
		w.buf = append(w.buf, name...)
		w.u8(0)
	}
}

func (mw *mdlModelWriter) writeAnimations() {
	w := mw.w
	if len(mw.m.Anims) == 0 {
		return
	}
	w.mark("animoffsets")
	for i := range mw.m.Anims {
		w.ref(fmt.Sprintf("anim:%d", i))
	}
	for i, anim := range mw.m.Anims {
		w.mark(fmt.Sprintf("anim:%d", i))
		ns := fmt.Sprintf("anim%d", i)
		rootKey := ns + ":0"
		if len(anim.Nodes) == 0 {
			rootKey = ""
		}
		mw.writeGeometryHeader(anim.Name, geomTypeAnim, rootKey, len(anim.Nodes))
		w.f32(anim.Length)
		w.f32(anim.TransTime)
		w.fixedString(anim.AnimRoot, 32)
		w.arrayDef(ns+":events", len(anim.Events))
		w.u32(0)
		if len(anim.Events) > 0 {
			w.mark(ns + ":events")
			for _, ev := range anim.Events {
				w.f32(ev.Time)
				w.fixedString(ev.Name, 32)
			}
		}
		mw.writeNodeTree(ns, anim.Nodes, i)
	}
}

// writeNodeTree emits a node arena depth-first. Keys inside the tree
// are namespaced so base-tree and per-animation trees never collide.
func (mw *mdlModelWriter) writeNodeTree(ns string, nodes []*model.Node, anim int) {
	if len(nodes) == 0 {
		return
	}
	var rec func(idx int)
	rec = func(idx int) {
		mw.writeNode(ns, nodes, idx, anim >= 0)
		for _, ci := range nodes[idx].Children {
			rec(ci)
		}
	}
	rec(0)
}

func key(ns string, kind string, idx int) string {
	if kind == "" {
		return fmt.Sprintf("%s:%d", ns, idx)
	}
	return fmt.Sprintf("%s:%s:%d", ns, kind, idx)
}

func (mw *mdlModelWriter) writeNode(ns string, nodes []*model.Node, idx int, inAnim bool) {
	w := mw.w
	n := nodes[idx]
	w.mark(key(ns, "", idx))

	w.u16(uint16(n.Flags))
	w.u16(n.Number)
	w.u16(uint16(n.NameIndex))
	w.u16(0)
	w.ref(key(ns, "", 0))
	if n.Parent >= 0 {
		w.ref(key(ns, "", n.Parent))
	} else {
		w.u32(0)
	}
	w.vec3(n.Position)
	w.quatWXYZ(n.Orientation)
	w.arrayDef(key(ns, "children", idx), len(n.Children))

	ctrl := packControllers(n, inAnim)
	w.arrayDef(key(ns, "ctrl", idx), len(n.Controllers))
	w.arrayDef(key(ns, "ctrldata", idx), len(ctrl.data))

	if n.Flags&model.FlagLight != 0 && n.Light != nil {
		mw.writeLightHeader(ns, idx, n.Light)
	}
	if n.Flags&model.FlagEmitter != 0 && n.Emitter != nil {
		mw.writeEmitterHeader(n.Emitter)
	}
	if n.Flags&model.FlagReference != 0 && n.Reference != nil {
		ref := n.Reference
		w.fixedString(ref.RefModel, 32)
		if ref.Reattachable {
			w.u32(1)
		} else {
			w.u32(0)
		}
	}
	if n.Flags&model.FlagMesh != 0 && n.Mesh != nil {
		mw.writeMeshHeaders(ns, idx, n)
		mw.writeMeshArrays(ns, idx, n)
	}
	if n.Flags&model.FlagLight != 0 && n.Light != nil {
		mw.writeLightArrays(ns, idx, n.Light)
	}

	// Controller rows and their shared data span.
	if len(n.Controllers) > 0 {
		w.mark(key(ns, "ctrl", idx))
		for _, row := range ctrl.rows {
			w.u32(row.id)
			w.u16(0xFFFF)
			w.u16(row.rowCount)
			w.u16(row.timeIndex)
			w.u16(row.dataIndex)
			w.u8(row.columns)
			w.pad(3)
		}
	}
	if len(ctrl.data) > 0 {
		w.mark(key(ns, "ctrldata", idx))
		for _, v := range ctrl.data {
			w.u32(v)
		}
	}

	if len(n.Children) > 0 {
		w.mark(key(ns, "children", idx))
		for _, ci := range n.Children {
			w.ref(key(ns, "", ci))
		}
	}
}

// controllerRow is the on-disk form of one controller.
type controllerRow struct {
	id        uint32
	rowCount  uint16
	timeIndex uint16
	dataIndex uint16
	columns   uint8
}

type packedControllers struct {
	rows []controllerRow
	data []uint32 // raw little-endian words of the float span
}

// packControllers lays every controller's keys into the node's shared
// data span. Orientation tracks inside animations are stored as
// compressed single-word keys; everything else is plain floats.
// Bezier-keyed tracks carry three value tuples per key and set the
// bezier bit in the column count.
func packControllers(n *model.Node, inAnim bool) packedControllers {
	var p packedControllers
	for _, c := range n.Controllers {
		row := controllerRow{
			id:        c.ID,
			rowCount:  uint16(len(c.Keys)),
			timeIndex: uint16(len(p.data)),
		}
		for _, k := range c.Keys {
			p.data = append(p.data, gomath.Float32bits(k.Time))
		}
		row.dataIndex = uint16(len(p.data))

		compressed := inAnim && c.ID == model.CtrlOrientation && !c.Bezier
		switch {
		case compressed:
			row.columns = 2
			for _, k := range c.Keys {
				q := math.Quat{}
				if len(k.Values) >= 4 {
					q = math.Quat{X: k.Values[0], Y: k.Values[1], Z: k.Values[2], W: k.Values[3]}
				}
				p.data = append(p.data, geometry.CompressQuat(q))
			}
		default:
			cols := c.Columns
			if cols == 0 && len(c.Keys) > 0 {
				cols = len(c.Keys[0].Values)
				if c.Bezier {
					cols /= 3
				}
			}
			row.columns = uint8(cols)
			if c.Bezier {
				row.columns |= 0x10
			}
			width := cols
			if c.Bezier {
				width = cols * 3
			}
			for _, k := range c.Keys {
				for vi := 0; vi < width; vi++ {
					var v float32
					if vi < len(k.Values) {
						v = k.Values[vi]
					}
					p.data = append(p.data, gomath.Float32bits(v))
				}
			}
		}
		p.rows = append(p.rows, row)
	}
	return p
}

func (mw *mdlModelWriter) writeLightHeader(ns string, idx int, l *model.Light) {
	w := mw.w
	w.f32(l.FlareRadius)
	w.arrayDef("", 0) // runtime unknown array
	w.arrayDef(key(ns, "flaresizes", idx), len(l.FlareSizes))
	w.arrayDef(key(ns, "flarepositions", idx), len(l.FlarePositions))
	w.arrayDef(key(ns, "flarecolors", idx), len(l.FlareColorShift))
	w.arrayDef(key(ns, "flaretex", idx), len(l.FlareTextures))
	w.u32(l.LightPriority)
	w.u32(l.AmbientOnly)
	w.u32(l.DynamicType)
	w.u32(l.AffectDynamic)
	w.u32(l.Shadow)
	w.u32(l.Flare)
	w.u32(l.FadingLight)
}

func (mw *mdlModelWriter) writeLightArrays(ns string, idx int, l *model.Light) {
	w := mw.w
	if len(l.FlareSizes) > 0 {
		w.mark(key(ns, "flaresizes", idx))
		for _, v := range l.FlareSizes {
			w.f32(v)
		}
	}
	if len(l.FlarePositions) > 0 {
		w.mark(key(ns, "flarepositions", idx))
		for _, v := range l.FlarePositions {
			w.f32(v)
		}
	}
	if len(l.FlareColorShift) > 0 {
		w.mark(key(ns, "flarecolors", idx))
		for _, v := range l.FlareColorShift {
			w.vec3(v)
		}
	}
	if len(l.FlareTextures) > 0 {
		w.mark(key(ns, "flaretex", idx))
		for ti := range l.FlareTextures {
			w.ref(key(ns, fmt.Sprintf("flaretexname%d", ti), idx))
		}
		for ti, name := range l.FlareTextures {
			w.mark(key(ns, fmt.Sprintf("flaretexname%d", ti), idx))
			w.buf = append(w.buf, name...)
			w.u8(0)
		}
	}
}

func (mw *mdlModelWriter) writeEmitterHeader(e *model.Emitter) {
	w := mw.w
	w.f32(e.DeadSpace)
	w.f32(e.BlastRadius)
	w.f32(e.BlastLength)
	w.u32(e.BranchCount)
	w.f32(e.ControlPtSmooth)
	w.u32(e.XGrid)
	w.u32(e.YGrid)
	w.u32(e.SpawnType)
	w.fixedString(e.Update, 32)
	w.fixedString(e.Render, 32)
	w.fixedString(e.Blend, 32)
	w.fixedString(e.Texture, 32)
	w.fixedString(e.ChunkName, 16)
	w.u32(e.TwoSidedTex)
	w.u32(e.Loop)
	w.u16(e.RenderOrder)
	w.u8(e.FrameBlending)
	w.u8(0)
	w.fixedString(e.DepthTextureName, 32)
	w.u32(e.Flags)
}

func (mw *mdlModelWriter) writeMeshHeaders(ns string, idx int, n *model.Node) {
	w := mw.w
	mesh := n.Mesh
	layout := computeRowLayout(mesh.Attr)
	isSkin := n.Flags&model.FlagSkin != 0

	w.arrayDef(key(ns, "faces", idx), len(mesh.Faces))
	w.vec3(mesh.BoundingMin)
	w.vec3(mesh.BoundingMax)
	w.f32(mesh.Radius)
	w.vec3(mesh.Average)
	w.vec3(mesh.Diffuse)
	w.vec3(mesh.Ambient)
	w.u32(mesh.TransparencyHint)
	w.fixedString(mesh.Textures[0], 32)
	w.fixedString(mesh.Textures[1], 32)
	w.fixedString(mesh.Textures[2], 12)
	w.fixedString(mesh.Textures[3], 12)
	indexArrays := 0
	if len(mesh.Faces) > 0 {
		indexArrays = 1
	}
	w.arrayDef(key(ns, "idxcount", idx), indexArrays)
	w.arrayDef(key(ns, "idxoffset", idx), indexArrays)
	invCount := len(mesh.InvCounters)
	if invCount == 0 && len(mesh.Faces) > 0 {
		invCount = 1
	}
	w.arrayDef(key(ns, "invcounter", idx), invCount)
	w.pad(12) // mesh sequence counters, observed as zero
	if mesh.AnimateUV {
		w.u32(1)
	} else {
		w.u32(0)
	}
	w.f32(mesh.UVDirectionX)
	w.f32(mesh.UVDirectionY)
	w.f32(mesh.UVJitter)
	w.f32(mesh.UVJitterSpeed)
	w.u32(uint32(layout.size))
	w.u32(uint32(mesh.Attr))
	w.i32(layout.position)
	w.i32(layout.normal)
	w.i32(layout.color)
	for ch := 0; ch < 4; ch++ {
		w.i32(layout.uv[ch])
	}
	w.i32(layout.tangent)
	if mw.dialect.MeshOffsetDelta > 0 {
		// Dirt block, second dialect only.
		w.u16(0)
		w.u16(0)
		w.u16(0)
		w.u16(0)
	}
	w.u16(uint16(len(mesh.Verts)))
	w.u16(textureCount(mesh))
	w.u8(boolByte(mesh.Lightmapped))
	w.u8(boolByte(mesh.RotateTexture))
	w.u8(boolByte(mesh.BackgroundGeometry))
	w.u8(boolByte(mesh.Shadow))
	w.u8(boolByte(mesh.Beaming))
	w.u8(boolByte(mesh.Render))
	w.u16(0)
	w.f32(mesh.TotalArea)
	w.u32(0)
	w.pad(28) // reserved block, zero in every sampled file
	w.u32(uint32(len(mw.mdx))) // this node's span in the vertex stream
	w.arrayRef(key(ns, "verts", idx), len(mesh.Verts))

	if isSkin && mesh.Skin != nil {
		mw.writeSkinHeader(ns, idx, n, layout)
	}
	if n.Flags&model.FlagDangly != 0 && mesh.Dangly != nil {
		w.arrayDef(key(ns, "constraints", idx), len(mesh.Verts))
		w.f32(mesh.Dangly.Displacement)
		w.f32(mesh.Dangly.Tightness)
		w.f32(mesh.Dangly.Period)
		w.arrayRef(key(ns, "constraints", idx), len(mesh.Verts))
	}
	if n.Flags&model.FlagAABB != 0 {
		w.arrayRef(key(ns, "aabb", idx), mesh.AABBRoot.Count())
	}
	if n.Flags&model.FlagSaber != 0 && mesh.Saber != nil {
		s := mesh.Saber
		w.arrayRef(key(ns, "saberverts", idx), len(s.Verts))
		w.arrayRef(key(ns, "saberuvs", idx), len(s.UVs))
		w.arrayRef(key(ns, "sabernormals", idx), len(s.Normals))
		w.u32(s.InvCount1)
		w.u32(s.InvCount2)
	}

	// Vertex rows go to the MDX stream immediately, in node order.
	mw.mdx = append(mw.mdx, encodeMDXRows(mesh, isSkin, mw.boneSlots(mesh))...)
}

// arrayRef writes a bare offset placeholder (no counts).
func (w *binWriter) arrayRef(key string, count int) {
	if count > 0 {
		w.ref(key)
	} else {
		w.u32(0)
	}
}

func (mw *mdlModelWriter) writeSkinHeader(ns string, idx int, n *model.Node, layout rowLayout) {
	w := mw.w
	skin := n.Mesh.Skin
	w.arrayDef("", 0) // runtime weights array
	w.i32(layout.weights)
	w.i32(layout.indices)
	w.arrayRef(key(ns, "bonemap", idx), len(skin.BoneMap))
	w.u32(uint32(len(skin.BoneMap)))
	w.arrayDef(key(ns, "qbones", idx), len(skin.QBones))
	w.arrayDef(key(ns, "tbones", idx), len(skin.TBones))
	w.arrayDef("", 0) // runtime garbage array
	for i := 0; i < 12; i++ {
		w.u16(0) // bone part numbers, unused here
	}
}

func (mw *mdlModelWriter) writeMeshArrays(ns string, idx int, n *model.Node) {
	w := mw.w
	mesh := n.Mesh

	if len(mesh.Faces) > 0 {
		w.mark(key(ns, "faces", idx))
		for _, f := range mesh.Faces {
			w.vec3(f.Normal)
			w.f32(f.PlaneDistance)
			w.u32(f.Material)
			w.u32(f.SmoothGroup)
			for c := 0; c < 3; c++ {
				w.u16(uint16(f.V[c]))
			}
			w.u16(0)
		}
	}
	if len(mesh.Verts) > 0 {
		w.mark(key(ns, "verts", idx))
		for _, v := range mesh.Verts {
			w.vec3(v.Position)
		}
	}
	if len(mesh.Faces) > 0 {
		w.mark(key(ns, "idxcount", idx))
		w.u32(uint32(len(mesh.Faces) * 3))
		w.mark(key(ns, "idxoffset", idx))
		w.ref(key(ns, "indices", idx))
		w.mark(key(ns, "indices", idx))
		for _, f := range mesh.Faces {
			for c := 0; c < 3; c++ {
				w.u16(uint16(f.V[c]))
			}
		}
		if len(mesh.Faces)%2 != 0 {
			w.u16(0) // keep following structures word aligned
		}
	}
	if len(mesh.Faces) > 0 || len(mesh.InvCounters) > 0 {
		w.mark(key(ns, "invcounter", idx))
		if len(mesh.InvCounters) > 0 {
			for _, v := range mesh.InvCounters {
				w.u32(v)
			}
		} else {
			w.u32(0)
		}
	}

	if n.Flags&model.FlagSkin != 0 && mesh.Skin != nil {
		skin := mesh.Skin
		if len(skin.BoneMap) > 0 {
			w.mark(key(ns, "bonemap", idx))
			for _, b := range skin.BoneMap {
				w.f32(float32(b))
			}
		}
		if len(skin.QBones) > 0 {
			w.mark(key(ns, "qbones", idx))
			for _, q := range skin.QBones {
				w.quatWXYZ(q)
			}
		}
		if len(skin.TBones) > 0 {
			w.mark(key(ns, "tbones", idx))
			for _, t := range skin.TBones {
				w.vec3(t)
			}
		}
	}
	if n.Flags&model.FlagDangly != 0 && mesh.Dangly != nil && len(mesh.Verts) > 0 {
		w.mark(key(ns, "constraints", idx))
		for _, v := range mesh.Verts {
			w.f32(v.Constraint)
		}
	}
	if n.Flags&model.FlagAABB != 0 && mesh.AABBRoot != nil {
		mw.writeAABBTree(ns, idx, mesh.AABBRoot)
	}
	if n.Flags&model.FlagSaber != 0 && mesh.Saber != nil {
		s := mesh.Saber
		if len(s.Verts) > 0 {
			w.mark(key(ns, "saberverts", idx))
			for _, v := range s.Verts {
				w.vec3(v)
			}
		}
		if len(s.UVs) > 0 {
			w.mark(key(ns, "saberuvs", idx))
			for _, uv := range s.UVs {
				w.f32(uv.X)
				w.f32(uv.Y)
			}
		}
		if len(s.Normals) > 0 {
			w.mark(key(ns, "sabernormals", idx))
			for _, v := range s.Normals {
				w.vec3(v)
			}
		}
	}
}

// writeAABBTree emits the tree pre-order with child placeholders
// resolved through the fixup list like every other forward reference.
func (mw *mdlModelWriter) writeAABBTree(ns string, idx int, root *model.AABBNode) {
	w := mw.w
	serial := 0
	var rec func(node *model.AABBNode) int
	rec = func(node *model.AABBNode) int {
		id := serial
		serial++
		w.mark(key(ns, fmt.Sprintf("aabbnode%d", id), idx))
		if id == 0 {
			w.mark(key(ns, "aabb", idx))
		}
		w.vec3(node.Min)
		w.vec3(node.Max)
		leftPos := w.pos()
		w.u32(0)
		rightPos := w.pos()
		w.u32(0)
		w.i32(int32(node.LeafFace))
		w.u32(node.Plane)
		if !node.IsLeaf() {
			leftID := rec(node.Left)
			rightID := rec(node.Right)
			w.fixups = append(w.fixups,
				fixup{pos: leftPos, key: key(ns, fmt.Sprintf("aabbnode%d", leftID), idx)},
				fixup{pos: rightPos, key: key(ns, fmt.Sprintf("aabbnode%d", rightID), idx)},
			)
		}
		return id
	}
	rec(root)
}

// boneSlots maps bone names to the mesh-local slots the vertex
// stream's bone indices use, derived from the skin's bone map.
func (mw *mdlModelWriter) boneSlots(mesh *model.Mesh) map[string]int16 {
	if mesh.Skin == nil || len(mesh.Skin.BoneMap) == 0 {
		return nil
	}
	slots := make(map[string]int16)
	for ni, slot := range mesh.Skin.BoneMap {
		if slot >= 0 && ni < len(mw.m.Nodes) {
			slots[mw.m.NodeName(mw.m.Nodes[ni])] = slot
		}
	}
	return slots
}

func textureCount(mesh *model.Mesh) uint16 {
	var n uint16
	for _, t := range mesh.Textures {
		if t != "" && t != "NULL" {
			n++
		}
	}
	return n
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
