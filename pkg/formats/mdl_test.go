package formats

import (
	"encoding/binary"
	"errors"
	gomath "math"
	"testing"

	"github.com/Faultbox/aurora-mdl/pkg/geometry"
	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// quadModel builds a dummy root with one trimesh child holding a unit
// quad, post-processed so derived data is populated.
func quadModel() *model.Model {
	mesh := &model.Mesh{
		Attr:   model.AttrPosition | model.AttrNormal | model.AttrUV1,
		Render: true,
		Verts: []model.Vertex{
			{Position: math.Vec3{X: 0, Y: 0, Z: 0}, UV: [4]math.Vec2{{X: 0, Y: 0}}},
			{Position: math.Vec3{X: 1, Y: 0, Z: 0}, UV: [4]math.Vec2{{X: 1, Y: 0}}},
			{Position: math.Vec3{X: 1, Y: 1, Z: 0}, UV: [4]math.Vec2{{X: 1, Y: 1}}},
			{Position: math.Vec3{X: 0, Y: 1, Z: 0}, UV: [4]math.Vec2{{X: 0, Y: 1}}},
		},
		Faces: []model.Face{
			{V: [3]int{0, 1, 2}, SmoothGroup: 1, Adjacent: [3]int{-1, -1, -1}},
			{V: [3]int{0, 2, 3}, SmoothGroup: 1, Adjacent: [3]int{-1, -1, -1}},
		},
		Textures: [4]string{"panel01"},
	}
	m := &model.Model{
		Name:           "testbox",
		Classification: model.ClassCharacter,
		AnimScale:      1,
		Names:          []string{"testbox", "body"},
		Nodes: []*model.Node{
			{
				Index: 0, Number: 0, NameIndex: 0,
				Flags: model.NodeTypeDummy, Parent: -1,
				Children:    []int{1},
				Orientation: math.QuatIdentity(),
			},
			{
				Index: 1, Number: 1, NameIndex: 1,
				Flags: model.NodeTypeTrimesh, Parent: 0,
				Position:    math.Vec3{X: 0, Y: 0, Z: 1},
				Orientation: math.QuatIdentity(),
				Mesh:        mesh,
			},
		},
	}
	geometry.Process(m, nil, geometry.DefaultOptions())
	return m
}

func vecNear(a, b math.Vec3, tol float32) bool {
	return a.Distance(b) <= tol
}

func TestModelRoundTrip(t *testing.T) {
	for _, dialect := range []*Dialect{DialectK1, DialectK2} {
		t.Run(dialect.Name, func(t *testing.T) {
			src := quadModel()
			mdl, mdx, err := WriteModel(src, dialect, nil)
			if err != nil {
				t.Fatalf("WriteModel: %v", err)
			}

			got, detected, err := ReadModel(mdl, mdx, nil)
			if err != nil {
				t.Fatalf("ReadModel: %v", err)
			}
			if detected != dialect {
				t.Errorf("detected dialect %q, want %q", detected.Name, dialect.Name)
			}
			if got.Name != src.Name {
				t.Errorf("name = %q, want %q", got.Name, src.Name)
			}
			if got.Classification != src.Classification {
				t.Errorf("classification = %v, want %v", got.Classification, src.Classification)
			}
			if len(got.Nodes) != len(src.Nodes) {
				t.Fatalf("node count = %d, want %d", len(got.Nodes), len(src.Nodes))
			}
			for i, n := range got.Nodes {
				if n.Flags != src.Nodes[i].Flags {
					t.Errorf("node %d flags = %v, want %v", i, n.Flags, src.Nodes[i].Flags)
				}
				if got.NodeName(n) != src.NodeName(src.Nodes[i]) {
					t.Errorf("node %d name = %q, want %q", i, got.NodeName(n), src.NodeName(src.Nodes[i]))
				}
			}

			mesh := got.Nodes[1].Mesh
			want := src.Nodes[1].Mesh
			if mesh == nil {
				t.Fatal("mesh payload lost")
			}
			if len(mesh.Verts) != len(want.Verts) || len(mesh.Faces) != len(want.Faces) {
				t.Fatalf("geometry counts %d/%d, want %d/%d",
					len(mesh.Verts), len(mesh.Faces), len(want.Verts), len(want.Faces))
			}
			for vi := range mesh.Verts {
				if !vecNear(mesh.Verts[vi].Position, want.Verts[vi].Position, 1e-6) {
					t.Errorf("vert %d position %v, want %v", vi, mesh.Verts[vi].Position, want.Verts[vi].Position)
				}
				if !vecNear(mesh.Verts[vi].Normal, want.Verts[vi].Normal, 1e-6) {
					t.Errorf("vert %d normal %v, want %v", vi, mesh.Verts[vi].Normal, want.Verts[vi].Normal)
				}
			}
			for fi := range mesh.Faces {
				if mesh.Faces[fi].V != want.Faces[fi].V {
					t.Errorf("face %d indices %v, want %v", fi, mesh.Faces[fi].V, want.Faces[fi].V)
				}
				if mesh.Faces[fi].SmoothGroup != want.Faces[fi].SmoothGroup {
					t.Errorf("face %d smoothgroup %d, want %d", fi, mesh.Faces[fi].SmoothGroup, want.Faces[fi].SmoothGroup)
				}
			}
			if mesh.Textures[0] != "panel01" {
				t.Errorf("texture = %q, want panel01", mesh.Textures[0])
			}
		})
	}
}

func TestModelHeaderSizes(t *testing.T) {
	src := quadModel()
	mdl, mdx, err := WriteModel(src, DialectK1, nil)
	if err != nil {
		t.Fatalf("WriteModel: %v", err)
	}
	if got := binary.LittleEndian.Uint32(mdl[4:]); got != uint32(len(mdl)-fileHeaderSize) {
		t.Errorf("stored MDL size %d, want %d", got, len(mdl)-fileHeaderSize)
	}
	if got := binary.LittleEndian.Uint32(mdl[8:]); got != uint32(len(mdx)) {
		t.Errorf("stored MDX size %d, want %d", got, len(mdx))
	}
	if len(mdx)%mdxRowAlign != 0 {
		t.Errorf("MDX size %d not aligned to %d", len(mdx), mdxRowAlign)
	}
}

func TestMDXGuardRow(t *testing.T) {
	src := quadModel()
	_, mdx, err := WriteModel(src, DialectK1, nil)
	if err != nil {
		t.Fatalf("WriteModel: %v", err)
	}
	layout := computeRowLayout(src.Nodes[1].Mesh.Attr)
	guard := mdx[len(mdx)-int(layout.size):]
	for o := 0; o+4 <= len(guard); o += 4 {
		if v := getF32(guard[o:]); v != mdxPadValue {
			t.Fatalf("guard word at %d = %v, want %v", o, v, mdxPadValue)
		}
	}
}

func TestReadModelErrors(t *testing.T) {
	if _, _, err := ReadModel(nil, nil, nil); err != ErrTruncatedMDLData {
		t.Errorf("empty input: err = %v, want %v", err, ErrTruncatedMDLData)
	}

	src := quadModel()
	mdl, mdx, err := WriteModel(src, DialectK1, nil)
	if err != nil {
		t.Fatalf("WriteModel: %v", err)
	}

	bad := append([]byte(nil), mdl...)
	binary.LittleEndian.PutUint32(bad, 0xDEADBEEF)
	if _, _, err := ReadModel(bad, mdx, nil); err != ErrInvalidMDLHeader {
		t.Errorf("nonzero lead word: err = %v, want %v", err, ErrInvalidMDLHeader)
	}

	bad = append([]byte(nil), mdl...)
	binary.LittleEndian.PutUint32(bad[fileHeaderSize:], 12345)
	if _, _, err := ReadModel(bad, mdx, nil); !errors.Is(err, ErrUnsupportedDialect) {
		t.Errorf("unknown fn pointer: err = %v, want %v", err, ErrUnsupportedDialect)
	}

	if _, _, err := ReadModel(mdl[:200], mdx, nil); err == nil {
		t.Error("truncated body: expected an error")
	}

	if _, _, err := ReadModel(mdl, nil, nil); err != ErrMissingVertexStream {
		t.Errorf("missing vertex stream: err = %v, want %v", err, ErrMissingVertexStream)
	}
}

func TestAnimationRoundTrip(t *testing.T) {
	src := quadModel()
	turn := math.QuatFromAxisAngle(math.Vec3{Z: 1}, gomath.Pi/3)
	src.Anims = []*model.Animation{{
		Name:     "wave",
		Length:   1.5,
		AnimRoot: "testbox",
		Events:   []model.AnimEvent{{Time: 0.5, Name: "hit"}},
		Nodes: []*model.Node{{
			Index: 0, Number: 0, NameIndex: 0,
			Flags: model.NodeTypeDummy, Parent: -1,
			Orientation: math.QuatIdentity(),
			Controllers: []model.Controller{
				{
					ID: model.CtrlPosition, Columns: 3,
					Keys: []model.Key{
						{Time: 0, Values: []float32{0, 0, 0}},
						{Time: 1.5, Values: []float32{0, 0, 2}},
					},
				},
				{
					ID: model.CtrlOrientation, Columns: 4,
					Keys: []model.Key{
						{Time: 0, Values: []float32{0, 0, 0, 1}},
						{Time: 1.5, Values: []float32{turn.X, turn.Y, turn.Z, turn.W}},
					},
				},
			},
		}},
	}}

	mdl, mdx, err := WriteModel(src, DialectK2, nil)
	if err != nil {
		t.Fatalf("WriteModel: %v", err)
	}
	got, _, err := ReadModel(mdl, mdx, nil)
	if err != nil {
		t.Fatalf("ReadModel: %v", err)
	}
	if len(got.Anims) != 1 {
		t.Fatalf("anim count = %d, want 1", len(got.Anims))
	}
	anim := got.Anims[0]
	if anim.Name != "wave" || anim.Length != 1.5 || anim.AnimRoot != "testbox" {
		t.Errorf("anim header = %q/%v/%q", anim.Name, anim.Length, anim.AnimRoot)
	}
	if len(anim.Events) != 1 || anim.Events[0].Name != "hit" {
		t.Fatalf("events = %+v", anim.Events)
	}

	pos := anim.Nodes[0].FindController(model.CtrlPosition)
	if pos == nil || len(pos.Keys) != 2 {
		t.Fatalf("position track lost: %+v", pos)
	}
	if pos.Keys[1].Values[2] != 2 {
		t.Errorf("position key = %v", pos.Keys[1].Values)
	}

	// Orientation keys pass through lossy compression; verify the
	// angular error stays within the quantization bound.
	orient := anim.Nodes[0].FindController(model.CtrlOrientation)
	if orient == nil || len(orient.Keys) != 2 {
		t.Fatalf("orientation track lost: %+v", orient)
	}
	if orient.Columns != 4 {
		t.Errorf("orientation columns = %d, want 4", orient.Columns)
	}
	v := orient.Keys[1].Values
	gotQ := math.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}
	dot := gotQ.Dot(turn)
	if dot < 0 {
		dot = -dot
	}
	if dot > 1 {
		dot = 1
	}
	if angErr := 2 * gomath.Acos(float64(dot)); angErr > 0.1*gomath.Pi/180 {
		t.Errorf("orientation key angular error %v rad", angErr)
	}
}

func TestSkinRoundTrip(t *testing.T) {
	src := quadModel()
	n := src.Nodes[1]
	n.Flags = model.NodeTypeSkin
	n.Mesh.Attr |= model.AttrWeights | model.AttrIndices
	for vi := range n.Mesh.Verts {
		n.Mesh.Verts[vi].Weights = []model.VertexWeight{
			{BoneName: "testbox", Weight: 0.75},
			{BoneName: "body", Weight: 0.25},
		}
	}
	geometry.Process(src, nil, geometry.DefaultOptions())

	mdl, mdx, err := WriteModel(src, DialectK1, nil)
	if err != nil {
		t.Fatalf("WriteModel: %v", err)
	}
	got, _, err := ReadModel(mdl, mdx, nil)
	if err != nil {
		t.Fatalf("ReadModel: %v", err)
	}

	mesh := got.Nodes[1].Mesh
	if mesh.Skin == nil {
		t.Fatal("skin payload lost")
	}
	if len(mesh.Skin.BoneMap) != len(src.Nodes) {
		t.Errorf("bone map length %d, want %d", len(mesh.Skin.BoneMap), len(src.Nodes))
	}
	for vi := range mesh.Verts {
		ws := mesh.Verts[vi].Weights
		if len(ws) != 2 {
			t.Fatalf("vert %d weight count = %d", vi, len(ws))
		}
		if ws[0].BoneName != "testbox" || ws[1].BoneName != "body" {
			t.Errorf("vert %d bones = %q/%q", vi, ws[0].BoneName, ws[1].BoneName)
		}
		if ws[0].Weight != 0.75 || ws[1].Weight != 0.25 {
			t.Errorf("vert %d weights = %v/%v", vi, ws[0].Weight, ws[1].Weight)
		}
	}
}

func TestDialectByName(t *testing.T) {
	for name, want := range map[string]*Dialect{"k1": DialectK1, "K2": DialectK2} {
		got, err := DialectByName(name)
		if err != nil || got != want {
			t.Errorf("DialectByName(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := DialectByName("k3"); !errors.Is(err, ErrUnsupportedDialect) {
		t.Errorf("DialectByName(k3) err = %v", err)
	}
}

func TestEmptyAnimationRoundTrip(t *testing.T) {
	src := quadModel()
	src.Anims = []*model.Animation{{
		Name:   "marker",
		Length: 0.25,
		Events: []model.AnimEvent{{Time: 0.1, Name: "cue"}},
	}}

	mdl, mdx, err := WriteModel(src, DialectK1, nil)
	if err != nil {
		t.Fatalf("WriteModel: %v", err)
	}
	got, _, err := ReadModel(mdl, mdx, nil)
	if err != nil {
		t.Fatalf("ReadModel: %v", err)
	}
	if len(got.Anims) != 1 {
		t.Fatalf("anim count = %d, want 1", len(got.Anims))
	}
	anim := got.Anims[0]
	if anim.Name != "marker" || anim.Length != 0.25 {
		t.Errorf("anim header = %q/%v", anim.Name, anim.Length)
	}
	if len(anim.Events) != 1 || anim.Events[0].Name != "cue" {
		t.Errorf("events = %+v", anim.Events)
	}
	if len(anim.Nodes) != 0 {
		t.Errorf("nodes = %d, want none", len(anim.Nodes))
	}
}

func TestDecodeMDXRowsShortRowSize(t *testing.T) {
	// A stored row size smaller than the attribute layout's packed
	// size must be rejected, not used to index past the row.
	attr := model.AttrPosition | model.AttrTangent
	_, err := decodeMDXRows(make([]byte, 8), 0, 2, 4, attr)
	if !errors.Is(err, ErrTruncatedMDXData) {
		t.Fatalf("err = %v, want ErrTruncatedMDXData", err)
	}
}
