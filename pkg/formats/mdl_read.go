package formats

import (
	"encoding/binary"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/aurora-mdl/pkg/geometry"
	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// mdlReader wraps the structural stream with bounds-checked accessors.
// The error is sticky: after the first out-of-range access every
// further read returns zero values, so parse code stays linear and
// checks r.err at section boundaries.
type mdlReader struct {
	data    []byte
	mdx     []byte
	dialect *Dialect
	log     *zap.Logger
	err     error
}

func (r *mdlReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *mdlReader) bytes(off, n int) []byte {
	if r.err != nil {
		return nil
	}
	if off < 0 || n < 0 || off+n > len(r.data) {
		r.fail(ErrTruncatedMDLData)
		return nil
	}
	return r.data[off : off+n]
}

func (r *mdlReader) u8(off int) uint8 {
	b := r.bytes(off, 1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *mdlReader) u16(off int) uint16 {
	b := r.bytes(off, 2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *mdlReader) u32(off int) uint32 {
	b := r.bytes(off, 4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *mdlReader) i32(off int) int32 { return int32(r.u32(off)) }

func (r *mdlReader) f32(off int) float32 {
	return gomath.Float32frombits(r.u32(off))
}

func (r *mdlReader) vec3(off int) math.Vec3 {
	return math.Vec3{X: r.f32(off), Y: r.f32(off + 4), Z: r.f32(off + 8)}
}

func (r *mdlReader) quatWXYZ(off int) math.Quat {
	return math.Quat{
		W: r.f32(off),
		X: r.f32(off + 4),
		Y: r.f32(off + 8),
		Z: r.f32(off + 12),
	}
}

// ref reads a cross-reference word and re-applies the lead-header
// correction; zero stays zero so empty references stay detectable.
func (r *mdlReader) ref(off int) int {
	v := r.u32(off)
	if v == 0 {
		return 0
	}
	return int(v) + fileHeaderSize
}

// arrayDef reads an array descriptor, returning the corrected data
// offset and the element count.
func (r *mdlReader) arrayDef(off int) (int, int) {
	dataOff := r.ref(off)
	count := int(r.u32(off + 4))
	if count < 0 || count > len(r.data) {
		r.fail(ErrTruncatedMDLData)
		return 0, 0
	}
	return dataOff, count
}

func (r *mdlReader) fixedString(off, width int) string {
	b := r.bytes(off, width)
	if b == nil {
		return ""
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (r *mdlReader) cstring(off int) string {
	if r.err != nil {
		return ""
	}
	if off < 0 || off >= len(r.data) {
		r.fail(ErrTruncatedMDLData)
		return ""
	}
	end := off
	for end < len(r.data) && r.data[end] != 0 {
		end++
	}
	return string(r.data[off:end])
}

// ReadModel parses the paired structural and vertex streams into a
// normalized model, detecting the dialect from the geometry function
// pointer. The returned dialect is the one detected.
func ReadModel(mdl, mdx []byte, opts *CodecOptions) (*model.Model, *Dialect, error) {
	if len(mdl) < fileHeaderSize+modelHeaderSize+namesHeaderSize {
		return nil, nil, ErrTruncatedMDLData
	}
	if binary.LittleEndian.Uint32(mdl) != 0 {
		return nil, nil, ErrInvalidMDLHeader
	}
	dialect, err := detectDialect(binary.LittleEndian.Uint32(mdl[fileHeaderSize:]))
	if err != nil {
		return nil, nil, err
	}
	r := &mdlReader{data: mdl, mdx: mdx, dialect: dialect, log: opts.logger()}

	geo := fileHeaderSize
	m := &model.Model{
		Name: r.fixedString(geo+8, 32),
	}
	rootOff := r.ref(geo + 40)
	nodeCount := int(r.u32(geo + 44))
	if nodeCount <= 0 || nodeCount > len(mdl) {
		return nil, nil, ErrInvalidNodeCount
	}

	mh := geo + geomHeaderSize
	m.Classification = model.Classification(r.u8(mh))
	m.Subclassification = r.u8(mh + 1)
	m.AffectedByFog = r.u8(mh+3) != 0
	animOff, animCount := r.arrayDef(mh + 8)
	m.BoundingMin = r.vec3(mh + 24)
	m.BoundingMax = r.vec3(mh + 36)
	m.Radius = r.f32(mh + 48)
	m.AnimScale = r.f32(mh + 52)
	m.Supermodel = r.fixedString(mh+56, 32)
	if m.Supermodel == "NULL" {
		m.Supermodel = ""
	}

	nh := geo + modelHeaderSize
	nameOff, nameCount := r.arrayDef(nh + 16)
	m.Names = make([]string, 0, nameCount)
	for i := 0; i < nameCount; i++ {
		m.Names = append(m.Names, r.cstring(r.ref(nameOff+i*4)))
	}
	if r.err != nil {
		return nil, nil, r.err
	}

	tp := &treeParser{r: r, limit: nodeCount, visited: make(map[int]bool)}
	tp.parseNode(rootOff, -1)
	if r.err != nil {
		return nil, nil, r.err
	}
	m.Nodes = tp.nodes

	for i := 0; i < animCount; i++ {
		anim := r.parseAnimation(r.ref(animOff + i*4))
		if r.err != nil {
			return nil, nil, r.err
		}
		m.Anims = append(m.Anims, anim)
	}

	resolveBoneNames(m)
	return m, dialect, r.err
}

// resolveBoneNames turns the mesh-local bone slots decoded from the
// vertex stream back into bone names, so downstream processing is
// independent of this file's slot assignment.
func resolveBoneNames(m *model.Model) {
	for _, n := range m.Nodes {
		if n.Flags&model.FlagSkin == 0 || n.Mesh == nil || n.Mesh.Skin == nil {
			continue
		}
		bySlot := make(map[int]string)
		for ni, slot := range n.Mesh.Skin.BoneMap {
			if slot >= 0 && ni < len(m.Nodes) {
				bySlot[int(slot)] = m.NodeName(m.Nodes[ni])
			}
		}
		for vi := range n.Mesh.Verts {
			for wi := range n.Mesh.Verts[vi].Weights {
				w := &n.Mesh.Verts[vi].Weights[wi]
				if name, ok := bySlot[w.BoneIndex]; ok {
					w.BoneName = name
					w.BoneIndex = -1
				}
			}
		}
	}
}

func (r *mdlReader) parseAnimation(off int) *model.Animation {
	anim := &model.Animation{
		Name: r.fixedString(off+8, 32),
	}
	rootOff := r.ref(off + 40)
	nodeCount := int(r.u32(off + 44))
	if nodeCount < 0 || nodeCount > len(r.data) {
		r.fail(ErrInvalidNodeCount)
		return anim
	}

	ah := off + geomHeaderSize
	anim.Length = r.f32(ah)
	anim.TransTime = r.f32(ah + 4)
	anim.AnimRoot = r.fixedString(ah+8, 32)
	evOff, evCount := r.arrayDef(ah + 40)
	for i := 0; i < evCount; i++ {
		e := evOff + i*animEventSize
		anim.Events = append(anim.Events, model.AnimEvent{
			Time: r.f32(e),
			Name: r.fixedString(e+4, 32),
		})
	}

	// Marker animations carry timing and events with no node tree.
	if nodeCount > 0 && rootOff != 0 {
		tp := &treeParser{r: r, limit: nodeCount, visited: make(map[int]bool)}
		tp.parseNode(rootOff, -1)
		anim.Nodes = tp.nodes
	}
	return anim
}

// treeParser accumulates one node arena in discovery order. The
// visited set and the node-count limit from the geometry header guard
// against cyclic or lying child-offset arrays.
type treeParser struct {
	r       *mdlReader
	nodes   []*model.Node
	visited map[int]bool
	limit   int
}

func (t *treeParser) parseNode(off, parent int) int {
	r := t.r
	if r.err != nil {
		return -1
	}
	if t.visited[off] || len(t.nodes) >= t.limit {
		r.fail(ErrMalformedNodeTree)
		return -1
	}
	t.visited[off] = true

	n := &model.Node{
		Index:  len(t.nodes),
		Parent: parent,
	}
	t.nodes = append(t.nodes, n)

	n.Flags = model.NodeFlags(r.u16(off))
	n.Number = r.u16(off + 2)
	n.NameIndex = int(r.u16(off + 4))
	n.Position = r.vec3(off + 16)
	n.Orientation = r.quatWXYZ(off + 28)
	childOff, childCount := r.arrayDef(off + 44)
	ctrlOff, ctrlCount := r.arrayDef(off + 56)
	dataOff, dataCount := r.arrayDef(off + 68)

	p := off + nodeHeaderSize
	if n.Flags&model.FlagLight != 0 {
		n.Light = r.parseLight(p)
		p += lightHeaderSize
	}
	if n.Flags&model.FlagEmitter != 0 {
		n.Emitter = r.parseEmitter(p)
		p += emitterHeaderSize
	}
	if n.Flags&model.FlagReference != 0 {
		n.Reference = &model.Reference{
			RefModel:     r.fixedString(p, 32),
			Reattachable: r.u32(p+32) != 0,
		}
		p += refHeaderSize
	}
	if n.Flags&model.FlagMesh != 0 {
		n.Mesh = r.parseMesh(p, n)
	}

	r.parseControllers(n, ctrlOff, ctrlCount, dataOff, dataCount)

	for i := 0; i < childCount; i++ {
		ci := t.parseNode(r.ref(childOff+i*4), n.Index)
		if ci < 0 {
			return -1
		}
		n.Children = append(n.Children, ci)
	}
	return n.Index
}

func (r *mdlReader) parseLight(p int) *model.Light {
	l := &model.Light{
		FlareRadius:   r.f32(p),
		LightPriority: r.u32(p + 64),
		AmbientOnly:   r.u32(p + 68),
		DynamicType:   r.u32(p + 72),
		AffectDynamic: r.u32(p + 76),
		Shadow:        r.u32(p + 80),
		Flare:         r.u32(p + 84),
		FadingLight:   r.u32(p + 88),
	}
	sizesOff, sizesCount := r.arrayDef(p + 16)
	for i := 0; i < sizesCount; i++ {
		l.FlareSizes = append(l.FlareSizes, r.f32(sizesOff+i*4))
	}
	posOff, posCount := r.arrayDef(p + 28)
	for i := 0; i < posCount; i++ {
		l.FlarePositions = append(l.FlarePositions, r.f32(posOff+i*4))
	}
	colOff, colCount := r.arrayDef(p + 40)
	for i := 0; i < colCount; i++ {
		l.FlareColorShift = append(l.FlareColorShift, r.vec3(colOff+i*12))
	}
	texOff, texCount := r.arrayDef(p + 52)
	for i := 0; i < texCount; i++ {
		l.FlareTextures = append(l.FlareTextures, r.cstring(r.ref(texOff+i*4)))
	}
	return l
}

func (r *mdlReader) parseEmitter(p int) *model.Emitter {
	return &model.Emitter{
		DeadSpace:        r.f32(p),
		BlastRadius:      r.f32(p + 4),
		BlastLength:      r.f32(p + 8),
		BranchCount:      r.u32(p + 12),
		ControlPtSmooth:  r.f32(p + 16),
		XGrid:            r.u32(p + 20),
		YGrid:            r.u32(p + 24),
		SpawnType:        r.u32(p + 28),
		Update:           r.fixedString(p+32, 32),
		Render:           r.fixedString(p+64, 32),
		Blend:            r.fixedString(p+96, 32),
		Texture:          r.fixedString(p+128, 32),
		ChunkName:        r.fixedString(p+160, 16),
		TwoSidedTex:      r.u32(p + 176),
		Loop:             r.u32(p + 180),
		RenderOrder:      r.u16(p + 184),
		FrameBlending:    r.u8(p + 186),
		DepthTextureName: r.fixedString(p+188, 32),
		Flags:            r.u32(p + 220),
	}
}

func (r *mdlReader) parseMesh(p int, n *model.Node) *model.Mesh {
	mesh := &model.Mesh{}
	faceOff, faceCount := r.arrayDef(p)
	mesh.BoundingMin = r.vec3(p + 12)
	mesh.BoundingMax = r.vec3(p + 24)
	mesh.Radius = r.f32(p + 36)
	mesh.Average = r.vec3(p + 40)
	mesh.Diffuse = r.vec3(p + 52)
	mesh.Ambient = r.vec3(p + 64)
	mesh.TransparencyHint = r.u32(p + 76)
	mesh.Textures[0] = r.fixedString(p+80, 32)
	mesh.Textures[1] = r.fixedString(p+112, 32)
	mesh.Textures[2] = r.fixedString(p+144, 12)
	mesh.Textures[3] = r.fixedString(p+156, 12)
	invOff, invCount := r.arrayDef(p + 192)
	mesh.AnimateUV = r.u32(p+216) != 0
	mesh.UVDirectionX = r.f32(p + 220)
	mesh.UVDirectionY = r.f32(p + 224)
	mesh.UVJitter = r.f32(p + 228)
	mesh.UVJitterSpeed = r.f32(p + 232)
	rowSize := r.i32(p + 236)
	mesh.Attr = model.Attr(r.u32(p + 240))

	d := r.dialect.MeshOffsetDelta
	vertexCount := int(r.u16(p + 276 + d))
	mesh.Lightmapped = r.u8(p+280+d) != 0
	mesh.RotateTexture = r.u8(p+281+d) != 0
	mesh.BackgroundGeometry = r.u8(p+282+d) != 0
	mesh.Shadow = r.u8(p+283+d) != 0
	mesh.Beaming = r.u8(p+284+d) != 0
	mesh.Render = r.u8(p+285+d) != 0
	mesh.TotalArea = r.f32(p + 288 + d)
	mdxOffset := r.u32(p + 324 + d)

	for i := 0; i < faceCount; i++ {
		f := faceOff + i*faceSize
		face := model.Face{
			Normal:        r.vec3(f),
			PlaneDistance: r.f32(f + 16),
			Material:      r.u32(f + 20),
			SmoothGroup:   r.u32(f + 24),
			Adjacent:      [3]int{-1, -1, -1},
		}
		for c := 0; c < 3; c++ {
			face.V[c] = int(r.u16(f + 28 + c*2))
		}
		mesh.Faces = append(mesh.Faces, face)
	}
	for i := 0; i < invCount; i++ {
		mesh.InvCounters = append(mesh.InvCounters, r.u32(invOff+i*4))
	}

	q := p + r.dialect.MeshHeaderSize
	if n.Flags&model.FlagSkin != 0 {
		mesh.Skin = r.parseSkin(q)
		q += skinHeaderSize
	}
	constraintsOff, constraintsCount := 0, 0
	if n.Flags&model.FlagDangly != 0 {
		constraintsOff, constraintsCount = r.arrayDef(q)
		mesh.Dangly = &model.Dangly{
			Displacement: r.f32(q + 12),
			Tightness:    r.f32(q + 16),
			Period:       r.f32(q + 20),
		}
		q += danglyHeaderSize
	}
	if n.Flags&model.FlagAABB != 0 {
		mesh.AABBRoot = r.parseAABB(r.ref(q), 0)
		q += aabbHeaderSize
	}
	if n.Flags&model.FlagSaber != 0 {
		mesh.Saber = r.parseSaber(q, vertexCount)
	}
	if r.err != nil {
		return mesh
	}

	if vertexCount > 0 && mesh.Attr != 0 {
		if len(r.mdx) == 0 {
			r.fail(ErrMissingVertexStream)
			return mesh
		}
		verts, err := decodeMDXRows(r.mdx, mdxOffset, vertexCount, rowSize, mesh.Attr)
		if err != nil {
			r.fail(err)
			return mesh
		}
		mesh.Verts = verts
	}
	for i := 0; i < constraintsCount && i < len(mesh.Verts); i++ {
		mesh.Verts[i].Constraint = r.f32(constraintsOff + i*4)
	}
	return mesh
}

func (r *mdlReader) parseSkin(q int) *model.Skin {
	skin := &model.Skin{}
	mapOff := r.ref(q + 20)
	mapCount := int(r.u32(q + 24))
	if mapCount < 0 || mapCount > len(r.data) {
		r.fail(ErrTruncatedMDLData)
		return skin
	}
	for i := 0; i < mapCount; i++ {
		skin.BoneMap = append(skin.BoneMap, int16(r.f32(mapOff+i*4)))
	}
	qOff, qCount := r.arrayDef(q + 28)
	for i := 0; i < qCount; i++ {
		skin.QBones = append(skin.QBones, r.quatWXYZ(qOff+i*16))
	}
	tOff, tCount := r.arrayDef(q + 40)
	for i := 0; i < tCount; i++ {
		skin.TBones = append(skin.TBones, r.vec3(tOff+i*12))
	}
	return skin
}

func (r *mdlReader) parseSaber(q, vertexCount int) *model.Saber {
	s := &model.Saber{
		InvCount1: r.u32(q + 12),
		InvCount2: r.u32(q + 16),
	}
	vOff := r.ref(q)
	uvOff := r.ref(q + 4)
	nOff := r.ref(q + 8)
	for i := 0; i < vertexCount; i++ {
		s.Verts = append(s.Verts, r.vec3(vOff+i*12))
		s.UVs = append(s.UVs, math.Vec2{X: r.f32(uvOff + i*8), Y: r.f32(uvOff + i*8 + 4)})
		s.Normals = append(s.Normals, r.vec3(nOff+i*12))
	}
	return s
}

const maxAABBDepth = 128

func (r *mdlReader) parseAABB(off, depth int) *model.AABBNode {
	if r.err != nil || off == 0 {
		return nil
	}
	if depth > maxAABBDepth {
		r.fail(ErrMalformedNodeTree)
		return nil
	}
	node := &model.AABBNode{
		Min:      r.vec3(off),
		Max:      r.vec3(off + 12),
		LeafFace: int(r.i32(off + 32)),
		Plane:    r.u32(off + 36),
	}
	node.Left = r.parseAABB(r.ref(off+24), depth+1)
	node.Right = r.parseAABB(r.ref(off+28), depth+1)
	return node
}

// parseControllers reads the node's controller rows and their shared
// float span. Orientation rows with a two-column width hold compressed
// single-word keys and are expanded back to four columns here, so the
// in-memory model never sees the packed form.
func (r *mdlReader) parseControllers(n *model.Node, rowsOff, rowCount, dataOff, dataCount int) {
	data := make([]float32, dataCount)
	words := make([]uint32, dataCount)
	for i := 0; i < dataCount; i++ {
		words[i] = r.u32(dataOff + i*4)
		data[i] = gomath.Float32frombits(words[i])
	}
	for i := 0; i < rowCount; i++ {
		row := rowsOff + i*controllerSize
		id := r.u32(row)
		keys := int(r.u16(row + 6))
		timeIdx := int(r.u16(row + 8))
		dataIdx := int(r.u16(row + 10))
		colByte := r.u8(row + 12)
		bezier := colByte&0x10 != 0
		cols := int(colByte & 0x0F)

		c := model.Controller{ID: id, Bezier: bezier, Columns: cols}
		compressed := id == model.CtrlOrientation && cols == 2 && !bezier
		width := cols
		if bezier {
			width = cols * 3
		}
		if compressed {
			width = 1
			c.Columns = 4
		}
		if timeIdx+keys > dataCount || dataIdx+keys*width > dataCount {
			r.fail(ErrTruncatedMDLData)
			return
		}
		for k := 0; k < keys; k++ {
			key := model.Key{Time: data[timeIdx+k]}
			if compressed {
				q := geometry.DecompressQuat(words[dataIdx+k])
				key.Values = []float32{q.X, q.Y, q.Z, q.W}
			} else {
				key.Values = append(key.Values, data[dataIdx+k*width:dataIdx+(k+1)*width]...)
			}
			c.Keys = append(c.Keys, key)
		}
		n.Controllers = append(n.Controllers, c)
	}
}
