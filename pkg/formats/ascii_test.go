package formats

import (
	"errors"
	gomath "math"
	"strings"
	"testing"

	"github.com/Faultbox/aurora-mdl/pkg/geometry"
	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

const asciiQuad = `# exported scene
newmodel testbox
setsupermodel testbox NULL
classification Character
setanimationscale 1.0
beginmodelgeom testbox
node dummy testbox
  parent NULL
endnode
node trimesh body
  parent testbox
  position 0.0 0.0 1.0
  orientation 0.0 0.0 1.0 0.0
  ambient 0.2 0.2 0.2
  diffuse 0.8 0.8 0.8
  bitmap panel01
  transparencyhint 0
  render 1
  shadow 0
  verts 4
    0.0 0.0 0.0
    1.0 0.0 0.0
    1.0 1.0 0.0
    0.0 1.0 0.0
  tverts 4
    0.0 0.0 0
    1.0 0.0 0
    1.0 1.0 0
    0.0 1.0 0
  faces 2
    0 1 2 1 0 1 2 0
    0 2 3 1 0 2 3 0
endnode
endmodelgeom testbox
newanim wave testbox
  length 1.5
  transtime 0.25
  animroot testbox
  event 0.5 hit
  node dummy testbox
    parent NULL
    positionkey 2
      0.0 0.0 0.0 0.0
      1.5 0.0 0.0 2.0
    orientationkey 2
      0.0 0.0 0.0 1.0 0.0
      1.5 0.0 0.0 1.0 1.0471976
  endnode
doneanim wave testbox
donemodel testbox
`

func TestReadASCII(t *testing.T) {
	m, err := ReadASCII([]byte(asciiQuad), nil)
	if err != nil {
		t.Fatalf("ReadASCII: %v", err)
	}
	if m.Name != "testbox" {
		t.Errorf("name = %q", m.Name)
	}
	if m.Classification != model.ClassCharacter {
		t.Errorf("classification = %v", m.Classification)
	}
	if len(m.Nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(m.Nodes))
	}
	body := m.Nodes[1]
	if body.Parent != 0 {
		t.Errorf("body parent = %d, want 0", body.Parent)
	}
	if got := m.Nodes[0].Children; len(got) != 1 || got[0] != 1 {
		t.Errorf("root children = %v", got)
	}
	if body.Position.Z != 1 {
		t.Errorf("body position = %v", body.Position)
	}

	mesh := body.Mesh
	if mesh == nil {
		t.Fatal("no mesh payload")
	}
	// Corner tuples all agree on position and UV, so welding returns
	// one vertex per source position.
	if len(mesh.Verts) != 4 {
		t.Errorf("welded vertex count = %d, want 4", len(mesh.Verts))
	}
	if len(mesh.Faces) != 2 {
		t.Fatalf("face count = %d", len(mesh.Faces))
	}
	if mesh.Faces[0].SmoothGroup != 1 {
		t.Errorf("smoothgroup = %d", mesh.Faces[0].SmoothGroup)
	}
	if mesh.Textures[0] != "panel01" {
		t.Errorf("bitmap = %q", mesh.Textures[0])
	}
	if mesh.Attr&model.AttrUV1 == 0 {
		t.Error("UV1 attribute not set")
	}

	if len(m.Anims) != 1 {
		t.Fatalf("anim count = %d", len(m.Anims))
	}
	anim := m.Anims[0]
	if anim.Length != 1.5 || anim.TransTime != 0.25 {
		t.Errorf("anim timing = %v/%v", anim.Length, anim.TransTime)
	}
	orient := anim.Nodes[0].FindController(model.CtrlOrientation)
	if orient == nil || len(orient.Keys) != 2 {
		t.Fatalf("orientation track = %+v", orient)
	}
	// 60 degrees about +Z, stored axis-angle in the text form.
	want := math.QuatFromAxisAngle(math.Vec3{Z: 1}, gomath.Pi/3)
	v := orient.Keys[1].Values
	got := math.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}
	if dot := got.Dot(want); gomath.Abs(float64(dot)) < 0.99999 {
		t.Errorf("orientation key = %+v, want %+v", got, want)
	}
}

func TestASCIIRoundTrip(t *testing.T) {
	m1, err := ReadASCII([]byte(asciiQuad), nil)
	if err != nil {
		t.Fatalf("ReadASCII: %v", err)
	}
	out1, err := WriteASCII(m1, nil)
	if err != nil {
		t.Fatalf("WriteASCII: %v", err)
	}
	m2, err := ReadASCII(out1, nil)
	if err != nil {
		t.Fatalf("ReadASCII(generated): %v\n%s", err, out1)
	}
	if len(m2.Nodes) != len(m1.Nodes) {
		t.Fatalf("node count = %d, want %d", len(m2.Nodes), len(m1.Nodes))
	}
	if len(m2.Nodes[1].Mesh.Verts) != len(m1.Nodes[1].Mesh.Verts) {
		t.Errorf("vertex count changed: %d -> %d",
			len(m1.Nodes[1].Mesh.Verts), len(m2.Nodes[1].Mesh.Verts))
	}
	if len(m2.Anims) != 1 || len(m2.Anims[0].Events) != 1 {
		t.Error("animation lost in round trip")
	}
	p1 := m1.Nodes[1].Position
	p2 := m2.Nodes[1].Position
	if !vecNear(p1, p2, 1e-6) {
		t.Errorf("position drifted: %v -> %v", p1, p2)
	}
	q1 := m1.Nodes[1].Orientation
	q2 := m2.Nodes[1].Orientation
	if dot := q1.Dot(q2); gomath.Abs(float64(dot)) < 0.99999 {
		t.Errorf("orientation drifted: %+v -> %+v", q1, q2)
	}
}

func TestASCIIBinaryRoundTrip(t *testing.T) {
	m, err := ReadASCII([]byte(asciiQuad), nil)
	if err != nil {
		t.Fatalf("ReadASCII: %v", err)
	}
	geometry.Process(m, nil, geometry.DefaultOptions())
	mdl, mdx, err := WriteModel(m, DialectK1, nil)
	if err != nil {
		t.Fatalf("WriteModel: %v", err)
	}
	back, _, err := ReadModel(mdl, mdx, nil)
	if err != nil {
		t.Fatalf("ReadModel: %v", err)
	}
	out, err := WriteASCII(back, nil)
	if err != nil {
		t.Fatalf("WriteASCII: %v", err)
	}
	if !strings.Contains(string(out), "node trimesh body") {
		t.Error("mesh node lost crossing formats")
	}
	if !strings.Contains(string(out), "newanim wave") {
		t.Error("animation lost crossing formats")
	}
}

func TestReadASCIIErrors(t *testing.T) {
	cases := map[string]string{
		"unknown parent": `newmodel m
node dummy a
  parent ghost
endnode
donemodel m`,
		"truncated verts": `newmodel m
node trimesh a
  parent NULL
  verts 5
    0 0 0
endnode
donemodel m`,
		"unclosed node": `newmodel m
node dummy a
  parent NULL`,
		"bad number": `newmodel m
node dummy a
  parent NULL
  position 0 zero 0
endnode
donemodel m`,
	}
	for name, doc := range cases {
		if _, err := ReadASCII([]byte(doc), nil); !errors.Is(err, ErrASCIISyntax) {
			t.Errorf("%s: err = %v, want %v", name, err, ErrASCIISyntax)
		}
	}
}

const asciiRig = `newmodel lamp
classification Other
beginmodelgeom lamp
node dummy lamp
  parent NULL
endnode
node light glow
  parent lamp
  color 1 0.5 0.25
  radius 5
  multiplier 2
  lightpriority 4
endnode
node emitter sparks
  parent lamp
  birthrate 20
  alphaStart 0.9
  xgrid 4
endnode
node trimesh panel
  parent lamp
  bitmap NULL
  verts 3
    0 0 0
    1 0 0
    0 1 0
  tverts 3
    0 0 0
    1 0 0
    0 1 0
  faces 1
    0 1 2 1 0 1 2 0
  alphakey
    0 1
    1 0.25
  endlist
endnode
endmodelgeom lamp
newanim spin lamp
  length 1
  transtime 0.25
  animroot lamp
  node dummy lamp
    parent NULL
    orientationbezierkey
      0 0 0 0 1 0 0 0 0 0 0 0 0
    endlist
  endnode
doneanim spin lamp
donemodel lamp
`

// checkRigControllers asserts the animation channels of the asciiRig
// fixture, so they can be verified on first parse and again after a
// write/read cycle.
func checkRigControllers(t *testing.T, m *model.Model) {
	t.Helper()

	light := m.NodeByName("glow")
	if light == nil {
		t.Fatal("light node missing")
	}
	color := light.FindController(model.CtrlColor)
	if color == nil || len(color.Keys) != 1 {
		t.Fatalf("light color controller = %+v", color)
	}
	want := []float32{1, 0.5, 0.25}
	for i, v := range want {
		if color.Keys[0].Values[i] != v {
			t.Errorf("color value %d = %v, want %v", i, color.Keys[0].Values[i], v)
		}
	}
	radius := light.FindController(model.CtrlRadius)
	if radius == nil || radius.Keys[0].Values[0] != 5 {
		t.Errorf("light radius controller = %+v", radius)
	}
	if mult := light.FindController(model.CtrlMultiplier); mult == nil {
		t.Error("light multiplier controller missing")
	}
	if light.Light.LightPriority != 4 {
		t.Errorf("lightpriority = %d, want 4", light.Light.LightPriority)
	}

	em := m.NodeByName("sparks")
	if em == nil {
		t.Fatal("emitter node missing")
	}
	if br := em.FindController(model.CtrlBirthRate); br == nil || br.Keys[0].Values[0] != 20 {
		t.Errorf("emitter birthrate controller = %+v", br)
	}
	if as := em.FindController(model.CtrlAlphaStart); as == nil || as.Keys[0].Values[0] != 0.9 {
		t.Errorf("emitter alphaStart controller = %+v", as)
	}
	if em.Emitter.XGrid != 4 {
		t.Errorf("xgrid = %d, want 4", em.Emitter.XGrid)
	}

	panel := m.NodeByName("panel")
	if panel == nil {
		t.Fatal("mesh node missing")
	}
	alpha := panel.FindController(model.CtrlAlpha)
	if alpha == nil || len(alpha.Keys) != 2 {
		t.Fatalf("mesh alpha track = %+v", alpha)
	}
	if alpha.Keys[1].Time != 1 || alpha.Keys[1].Values[0] != 0.25 {
		t.Errorf("alpha key 1 = %+v", alpha.Keys[1])
	}

	if len(m.Anims) != 1 {
		t.Fatalf("anim count = %d", len(m.Anims))
	}
	spin := m.Anims[0].Nodes[0]
	orient := spin.FindController(model.CtrlOrientation)
	if orient == nil || !orient.Bezier {
		t.Fatalf("bezier orientation track = %+v", orient)
	}
	if orient.Columns != 4 || len(orient.Keys[0].Values) != 12 {
		t.Fatalf("bezier orientation shape: columns=%d values=%d",
			orient.Columns, len(orient.Keys[0].Values))
	}
	// Bezier keys hold raw tuples; the axis-angle form applies only to
	// plain orientation keys.
	if orient.Keys[0].Values[3] != 1 {
		t.Errorf("bezier orientation w = %v, want 1", orient.Keys[0].Values[3])
	}
}

func TestControllerChannelsSurviveText(t *testing.T) {
	m, err := ReadASCII([]byte(asciiRig), nil)
	if err != nil {
		t.Fatalf("ReadASCII: %v", err)
	}
	checkRigControllers(t, m)

	text, err := WriteASCII(m, nil)
	if err != nil {
		t.Fatalf("WriteASCII: %v", err)
	}
	m2, err := ReadASCII(text, nil)
	if err != nil {
		t.Fatalf("ReadASCII(rewritten): %v", err)
	}
	checkRigControllers(t, m2)
}
