package formats

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/Faultbox/aurora-mdl/pkg/geometry"
	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// WriteASCII renders the model in its text form. Welded vertices are
// expanded back into separate position and texture-vertex lists, the
// representation the text form uses.
func WriteASCII(m *model.Model, opts *CodecOptions) ([]byte, error) {
	aw := &asciiWriter{m: m, weld: geometry.DefaultOptions().WeldTolerance}
	aw.writeModel()
	return aw.buf.Bytes(), nil
}

type asciiWriter struct {
	buf  bytes.Buffer
	m    *model.Model
	weld float32
}

// ft formats a float with the shortest representation that parses
// back to the same 32-bit value.
func ft(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func (aw *asciiWriter) line(format string, args ...interface{}) {
	fmt.Fprintf(&aw.buf, format, args...)
	aw.buf.WriteByte('\n')
}

func (aw *asciiWriter) nodeName(n *model.Node) string {
	return aw.m.NodeName(n)
}

func (aw *asciiWriter) parentName(nodes []*model.Node, n *model.Node) string {
	if n.Parent < 0 || n.Parent >= len(nodes) {
		return "NULL"
	}
	return aw.nodeName(nodes[n.Parent])
}

func (aw *asciiWriter) writeModel() {
	m := aw.m
	super := m.Supermodel
	if super == "" {
		super = "NULL"
	}
	aw.line("newmodel %s", m.Name)
	aw.line("setsupermodel %s %s", m.Name, super)
	aw.line("classification %s", m.Classification)
	aw.line("setanimationscale %s", ft(m.AnimScale))
	aw.line("ignorefog %d", b2i(!m.AffectedByFog))
	aw.line("beginmodelgeom %s", m.Name)
	aw.line("  bmin %s %s %s", ft(m.BoundingMin.X), ft(m.BoundingMin.Y), ft(m.BoundingMin.Z))
	aw.line("  bmax %s %s %s", ft(m.BoundingMax.X), ft(m.BoundingMax.Y), ft(m.BoundingMax.Z))
	aw.line("  radius %s", ft(m.Radius))
	m.Walk(func(n *model.Node) {
		aw.writeNode(n)
	})
	aw.line("endmodelgeom %s", m.Name)
	for _, anim := range m.Anims {
		aw.writeAnim(anim)
	}
	aw.line("donemodel %s", m.Name)
}

func (aw *asciiWriter) writeNode(n *model.Node) {
	aw.line("node %s %s", n.Flags.TypeName(), aw.nodeName(n))
	aw.line("  parent %s", aw.parentName(aw.m.Nodes, n))
	aw.line("  position %s %s %s", ft(n.Position.X), ft(n.Position.Y), ft(n.Position.Z))
	axis, angle := n.Orientation.ToAxisAngle()
	aw.line("  orientation %s %s %s %s", ft(axis.X), ft(axis.Y), ft(axis.Z), ft(angle))

	if n.Light != nil {
		aw.writeLight(n.Light)
	}
	if n.Emitter != nil {
		aw.writeEmitter(n.Emitter)
	}
	if n.Reference != nil {
		aw.line("  refmodel %s", orNull(n.Reference.RefModel))
		aw.line("  reattachable %d", b2i(n.Reference.Reattachable))
	}
	aw.writeControllers(n)
	if n.Mesh != nil {
		aw.writeMesh(n)
	}
	aw.line("endnode")
}

func orNull(s string) string {
	if s == "" {
		return "NULL"
	}
	return s
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// writeControllers emits non-structural controller tracks. Position
// and orientation already appear as header lines, so their single-key
// tracks are skipped; anything multi-keyed gets a key block.
func (aw *asciiWriter) writeControllers(n *model.Node) {
	for _, c := range n.Controllers {
		name := model.ControllerName(n.Flags, c.ID)
		if name == "" {
			continue
		}
		structural := c.ID == model.CtrlPosition || c.ID == model.CtrlOrientation
		if len(c.Keys) == 1 && !c.Bezier && !structural {
			var b bytes.Buffer
			for _, v := range c.Keys[0].Values {
				b.WriteByte(' ')
				b.WriteString(ft(v))
			}
			aw.line("  %s%s", name, b.String())
			continue
		}
		if structural && len(c.Keys) <= 1 {
			continue
		}
		aw.writeKeyBlock(n, c, "  ")
	}
}

func (aw *asciiWriter) writeKeyBlock(n *model.Node, c model.Controller, indent string) {
	name := model.ControllerName(n.Flags, c.ID)
	if name == "" {
		return
	}
	suffix := "key"
	if c.Bezier {
		suffix = "bezierkey"
	}
	aw.line("%s%s%s", indent, name, suffix)
	for _, k := range c.Keys {
		var b bytes.Buffer
		b.WriteString(ft(k.Time))
		vals := k.Values
		if c.ID == model.CtrlOrientation && !c.Bezier && len(vals) >= 4 {
			q := math.Quat{X: vals[0], Y: vals[1], Z: vals[2], W: vals[3]}
			axis, angle := q.ToAxisAngle()
			vals = []float32{axis.X, axis.Y, axis.Z, angle}
		}
		for _, v := range vals {
			b.WriteByte(' ')
			b.WriteString(ft(v))
		}
		aw.line("%s  %s", indent, b.String())
	}
	aw.line("%sendlist", indent)
}

func (aw *asciiWriter) writeLight(l *model.Light) {
	aw.line("  flareradius %s", ft(l.FlareRadius))
	aw.line("  lightpriority %d", l.LightPriority)
	aw.line("  ambientonly %d", l.AmbientOnly)
	aw.line("  ndynamictype %d", l.DynamicType)
	aw.line("  affectdynamic %d", l.AffectDynamic)
	aw.line("  lightshadow %d", l.Shadow)
	aw.line("  flare %d", l.Flare)
	aw.line("  fadinglight %d", l.FadingLight)
	if len(l.FlareSizes) > 0 {
		aw.line("  flaresizes %d", len(l.FlareSizes))
		for _, v := range l.FlareSizes {
			aw.line("    %s", ft(v))
		}
	}
	if len(l.FlarePositions) > 0 {
		aw.line("  flarepositions %d", len(l.FlarePositions))
		for _, v := range l.FlarePositions {
			aw.line("    %s", ft(v))
		}
	}
	if len(l.FlareColorShift) > 0 {
		aw.line("  flarecolorshifts %d", len(l.FlareColorShift))
		for _, v := range l.FlareColorShift {
			aw.line("    %s %s %s", ft(v.X), ft(v.Y), ft(v.Z))
		}
	}
	if len(l.FlareTextures) > 0 {
		aw.line("  texturenames %d", len(l.FlareTextures))
		for _, t := range l.FlareTextures {
			aw.line("    %s", t)
		}
	}
}

func (aw *asciiWriter) writeEmitter(e *model.Emitter) {
	aw.line("  deadspace %s", ft(e.DeadSpace))
	aw.line("  blastradius %s", ft(e.BlastRadius))
	aw.line("  blastlength %s", ft(e.BlastLength))
	aw.line("  numBranches %d", e.BranchCount)
	aw.line("  controlptsmoothing %s", ft(e.ControlPtSmooth))
	aw.line("  xgrid %d", e.XGrid)
	aw.line("  ygrid %d", e.YGrid)
	aw.line("  spawntype %d", e.SpawnType)
	aw.line("  update %s", orNull(e.Update))
	aw.line("  render %s", orNull(e.Render))
	aw.line("  blend %s", orNull(e.Blend))
	aw.line("  texture %s", orNull(e.Texture))
	if e.ChunkName != "" {
		aw.line("  chunkName %s", e.ChunkName)
	}
	aw.line("  twosidedtex %d", e.TwoSidedTex)
	aw.line("  loop %d", e.Loop)
	aw.line("  renderorder %d", e.RenderOrder)
	aw.line("  frameBlending %d", e.FrameBlending)
	if e.DepthTextureName != "" {
		aw.line("  depthTextureName %s", e.DepthTextureName)
	}
	aw.line("  p2p %d", b2i(e.Flags&model.EmitterFlagP2P != 0))
	aw.line("  p2p_sel %d", b2i(e.Flags&model.EmitterFlagP2PSel != 0))
	aw.line("  affectedByWind %d", b2i(e.Flags&model.EmitterFlagAffectWind != 0))
	aw.line("  m_isTinted %d", b2i(e.Flags&model.EmitterFlagTinted != 0))
	aw.line("  bounce %d", b2i(e.Flags&model.EmitterFlagBounce != 0))
	aw.line("  random %d", b2i(e.Flags&model.EmitterFlagRandom != 0))
	aw.line("  inherit %d", b2i(e.Flags&model.EmitterFlagInherit != 0))
	aw.line("  inheritvel %d", b2i(e.Flags&model.EmitterFlagInheritVel != 0))
	aw.line("  inherit_local %d", b2i(e.Flags&model.EmitterFlagInheritLocal != 0))
	aw.line("  splat %d", b2i(e.Flags&model.EmitterFlagSplat != 0))
	aw.line("  inherit_part %d", b2i(e.Flags&model.EmitterFlagInheritPart != 0))
	aw.line("  depth_texture %d", b2i(e.Flags&model.EmitterFlagDepthTexture != 0))
}

// asciiGeom is a mesh unwelded back into separate index spaces.
type asciiGeom struct {
	verts       []math.Vec3
	tverts      []math.Vec2
	tverts1     []math.Vec2
	colors      []math.Vec3
	weights     [][]model.VertexWeight
	constraints []float32
	faces       []asciiFace
	tindices1   [][3]int
}

// unweld splits welded vertices back into position and texture-vertex
// lists with independent indexing, merging duplicates within the weld
// tolerance so a weld/unweld cycle is stable.
func (aw *asciiWriter) unweld(mesh *model.Mesh) *asciiGeom {
	g := &asciiGeom{}
	inv := float32(1) / aw.weld

	posIdx := make(map[[3]int64]int)
	vertOf := make([]int, len(mesh.Verts))
	uvIdx := make(map[[2]int64]int)
	uv1Idx := make(map[[2]int64]int)
	hasUV := mesh.Attr&model.AttrUV1 != 0
	hasUV1 := mesh.Attr&model.AttrUV2 != 0

	qv := func(v float32) int64 {
		if v < 0 {
			return int64(v*inv - 0.5)
		}
		return int64(v*inv + 0.5)
	}
	uvOf := func(idx map[[2]int64]int, list *[]math.Vec2, uv math.Vec2) int {
		k := [2]int64{qv(uv.X), qv(uv.Y)}
		if i, ok := idx[k]; ok {
			return i
		}
		i := len(*list)
		idx[k] = i
		*list = append(*list, uv)
		return i
	}

	for vi, v := range mesh.Verts {
		k := [3]int64{qv(v.Position.X), qv(v.Position.Y), qv(v.Position.Z)}
		if i, ok := posIdx[k]; ok {
			vertOf[vi] = i
			continue
		}
		i := len(g.verts)
		posIdx[k] = i
		vertOf[vi] = i
		g.verts = append(g.verts, v.Position)
		g.colors = append(g.colors, v.Color)
		g.weights = append(g.weights, v.Weights)
		g.constraints = append(g.constraints, v.Constraint)
	}

	for _, f := range mesh.Faces {
		af := asciiFace{smoothGroup: f.SmoothGroup, material: f.Material}
		var ti1 [3]int
		for c := 0; c < 3; c++ {
			v := mesh.Verts[f.V[c]]
			af.v[c] = vertOf[f.V[c]]
			if hasUV {
				af.t[c] = uvOf(uvIdx, &g.tverts, v.UV[0])
			}
			if hasUV1 {
				ti1[c] = uvOf(uv1Idx, &g.tverts1, v.UV[1])
			}
		}
		g.faces = append(g.faces, af)
		if hasUV1 {
			g.tindices1 = append(g.tindices1, ti1)
		}
	}
	return g
}

func (aw *asciiWriter) writeMesh(n *model.Node) {
	mesh := n.Mesh
	aw.line("  ambient %s %s %s", ft(mesh.Ambient.X), ft(mesh.Ambient.Y), ft(mesh.Ambient.Z))
	aw.line("  diffuse %s %s %s", ft(mesh.Diffuse.X), ft(mesh.Diffuse.Y), ft(mesh.Diffuse.Z))
	aw.line("  transparencyhint %d", mesh.TransparencyHint)
	aw.line("  bitmap %s", orNull(mesh.Textures[0]))
	if mesh.Textures[1] != "" {
		aw.line("  lightmap %s", mesh.Textures[1])
	}
	aw.line("  render %d", b2i(mesh.Render))
	aw.line("  shadow %d", b2i(mesh.Shadow))
	if mesh.Beaming {
		aw.line("  beaming 1")
	}
	if mesh.RotateTexture {
		aw.line("  rotatetexture 1")
	}
	if mesh.BackgroundGeometry {
		aw.line("  background_geometry 1")
	}
	if mesh.AnimateUV {
		aw.line("  animateuv 1")
		aw.line("  uvdirectionx %s", ft(mesh.UVDirectionX))
		aw.line("  uvdirectiony %s", ft(mesh.UVDirectionY))
		aw.line("  uvjitter %s", ft(mesh.UVJitter))
		aw.line("  uvjitterspeed %s", ft(mesh.UVJitterSpeed))
	}
	if mesh.Attr&model.AttrTangent != 0 {
		aw.line("  tangentspace 1")
	}
	if d := mesh.Dangly; d != nil {
		aw.line("  displacement %s", ft(d.Displacement))
		aw.line("  tightness %s", ft(d.Tightness))
		aw.line("  period %s", ft(d.Period))
	}

	g := aw.unweld(mesh)
	aw.line("  verts %d", len(g.verts))
	for _, v := range g.verts {
		aw.line("    %s %s %s", ft(v.X), ft(v.Y), ft(v.Z))
	}
	if len(g.tverts) > 0 {
		aw.line("  tverts %d", len(g.tverts))
		for _, uv := range g.tverts {
			aw.line("    %s %s 0", ft(uv.X), ft(uv.Y))
		}
	}
	if len(g.tverts1) > 0 {
		aw.line("  tverts1 %d", len(g.tverts1))
		for _, uv := range g.tverts1 {
			aw.line("    %s %s 0", ft(uv.X), ft(uv.Y))
		}
	}
	if mesh.Attr&model.AttrColor != 0 {
		aw.line("  colors %d", len(g.colors))
		for _, c := range g.colors {
			aw.line("    %s %s %s", ft(c.X), ft(c.Y), ft(c.Z))
		}
	}
	aw.line("  faces %d", len(g.faces))
	for _, f := range g.faces {
		aw.line("    %d %d %d %d %d %d %d %d",
			f.v[0], f.v[1], f.v[2], f.smoothGroup, f.t[0], f.t[1], f.t[2], f.material)
	}
	if len(g.tindices1) > 0 {
		aw.line("  texindices1 %d", len(g.tindices1))
		for _, ti := range g.tindices1 {
			aw.line("    %d %d %d", ti[0], ti[1], ti[2])
		}
	}
	if n.Flags&model.FlagSkin != 0 {
		aw.line("  weights %d", len(g.weights))
		for _, ws := range g.weights {
			var b bytes.Buffer
			for i, w := range ws {
				if i > 0 {
					b.WriteByte(' ')
				}
				fmt.Fprintf(&b, "%s %s", w.BoneName, ft(w.Weight))
			}
			aw.line("    %s", b.String())
		}
	}
	if n.Flags&model.FlagDangly != 0 {
		aw.line("  constraints %d", len(g.constraints))
		for _, c := range g.constraints {
			aw.line("    %s", ft(c))
		}
	}
	if n.Flags&model.FlagAABB != 0 && mesh.AABBRoot != nil {
		aw.line("  aabb")
		aw.writeAABBNode(mesh.AABBRoot, "    ")
	}
}

// writeAABBNode emits the tree pre-order, one bbox + leaf face per
// line (-1 for internal nodes).
func (aw *asciiWriter) writeAABBNode(node *model.AABBNode, indent string) {
	aw.line("%s%s %s %s %s %s %s %d", indent,
		ft(node.Min.X), ft(node.Min.Y), ft(node.Min.Z),
		ft(node.Max.X), ft(node.Max.Y), ft(node.Max.Z),
		node.LeafFace)
	if node.Left != nil {
		aw.writeAABBNode(node.Left, indent+"  ")
	}
	if node.Right != nil {
		aw.writeAABBNode(node.Right, indent+"  ")
	}
}

func (aw *asciiWriter) writeAnim(anim *model.Animation) {
	aw.line("newanim %s %s", anim.Name, aw.m.Name)
	aw.line("  length %s", ft(anim.Length))
	aw.line("  transtime %s", ft(anim.TransTime))
	aw.line("  animroot %s", orNull(anim.AnimRoot))
	for _, ev := range anim.Events {
		aw.line("  event %s %s", ft(ev.Time), ev.Name)
	}
	var walk func(idx int)
	walk = func(idx int) {
		n := anim.Nodes[idx]
		aw.line("  node %s %s", n.Flags.TypeName(), aw.nodeName(n))
		aw.line("    parent %s", aw.parentName(anim.Nodes, n))
		for _, c := range n.Controllers {
			aw.writeKeyBlock(n, c, "    ")
		}
		aw.line("  endnode")
		for _, ci := range n.Children {
			walk(ci)
		}
	}
	if len(anim.Nodes) > 0 {
		walk(0)
	}
	aw.line("doneanim %s %s", anim.Name, aw.m.Name)
}
