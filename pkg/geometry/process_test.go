package geometry

import (
	"testing"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// quadMesh returns two adjacent coplanar triangles sharing the edge
// (b, c) and one smoothing group.
func quadMesh() *model.Mesh {
	return &model.Mesh{
		Attr:   model.AttrPosition | model.AttrNormal,
		Render: true,
		Verts: []model.Vertex{
			{Position: math.Vec3{X: 0, Y: 0, Z: 0}},
			{Position: math.Vec3{X: 1, Y: 0, Z: 0}},
			{Position: math.Vec3{X: 0, Y: 1, Z: 0}},
			{Position: math.Vec3{X: 1, Y: 1, Z: 0}},
		},
		Faces: []model.Face{
			{V: [3]int{0, 1, 2}},
			{V: [3]int{1, 3, 2}},
		},
	}
}

func singleMeshModel(mesh *model.Mesh, flags model.NodeFlags) *model.Model {
	m := &model.Model{
		Name:  "test",
		Names: []string{"root", "geom"},
	}
	m.Nodes = []*model.Node{
		{Index: 0, NameIndex: 0, Flags: model.NodeTypeDummy, Parent: -1, Children: []int{1}},
		{Index: 1, NameIndex: 1, Flags: flags, Parent: 0, Mesh: mesh},
	}
	return m
}

func TestRebuildSmoothGroupsConnected(t *testing.T) {
	mesh := quadMesh()
	RebuildSmoothGroups(mesh, 1e-4)
	if mesh.Faces[0].SmoothGroup != mesh.Faces[1].SmoothGroup {
		t.Errorf("adjacent faces got groups %d / %d, want equal",
			mesh.Faces[0].SmoothGroup, mesh.Faces[1].SmoothGroup)
	}
	if sg := mesh.Faces[0].SmoothGroup; sg&(sg-1) != 0 || sg == 0 {
		t.Errorf("group %d is not a power of two", sg)
	}
}

func TestRebuildSmoothGroupsDisconnected(t *testing.T) {
	mesh := quadMesh()
	// Move the second triangle far away, breaking the shared edge.
	mesh.Verts = append(mesh.Verts,
		model.Vertex{Position: math.Vec3{X: 10, Y: 0, Z: 0}},
		model.Vertex{Position: math.Vec3{X: 11, Y: 0, Z: 0}},
		model.Vertex{Position: math.Vec3{X: 10, Y: 1, Z: 0}},
	)
	mesh.Faces[1] = model.Face{V: [3]int{4, 5, 6}}
	RebuildSmoothGroups(mesh, 1e-4)
	a, b := mesh.Faces[0].SmoothGroup, mesh.Faces[1].SmoothGroup
	if a == b {
		t.Errorf("disconnected components share group %d", a)
	}
	if a != 1 || b != 2 {
		t.Errorf("groups = %d, %d; want 1, 2 (input order)", a, b)
	}
}

func TestRebuildSmoothGroupsDeterministic(t *testing.T) {
	run := func() []uint32 {
		mesh := quadMesh()
		RebuildSmoothGroups(mesh, 1e-4)
		out := make([]uint32, len(mesh.Faces))
		for i, f := range mesh.Faces {
			out[i] = f.SmoothGroup
		}
		return out
	}
	a := run()
	b := run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("run differs at face %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestProcessSharedEdgeNormals(t *testing.T) {
	// Two adjacent coplanar triangles: the averaged normal at each
	// shared-edge vertex is identical and equals the face normal.
	m := singleMeshModel(quadMesh(), model.NodeTypeTrimesh)
	Process(m, nil, DefaultOptions())

	mesh := m.Nodes[1].Mesh
	want := math.Vec3{X: 0, Y: 0, Z: 1}
	for _, vi := range []int{1, 2} { // shared edge vertices
		got := mesh.Verts[vi].Normal
		if got.Distance(want) > 1e-4 {
			t.Errorf("vertex %d normal = %v, want %v", vi, got, want)
		}
	}
}

func TestProcessFillsPlanes(t *testing.T) {
	m := singleMeshModel(quadMesh(), model.NodeTypeTrimesh)
	Process(m, nil, DefaultOptions())
	f := m.Nodes[1].Mesh.Faces[0]
	if f.Normal.Distance(math.Vec3{X: 0, Y: 0, Z: 1}) > 1e-5 {
		t.Errorf("face normal = %v, want +Z", f.Normal)
	}
	if f.PlaneDistance != 0 {
		t.Errorf("plane distance = %v, want 0", f.PlaneDistance)
	}
}

func TestProcessAdjacency(t *testing.T) {
	m := singleMeshModel(quadMesh(), model.NodeTypeTrimesh)
	Process(m, nil, DefaultOptions())
	mesh := m.Nodes[1].Mesh
	found := false
	for _, adj := range mesh.Faces[0].Adjacent {
		if adj == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("face 0 adjacency %v does not reference face 1", mesh.Faces[0].Adjacent)
	}
}

func TestProcessDegenerateFace(t *testing.T) {
	mesh := quadMesh()
	// Collapse the second triangle to a point.
	mesh.Faces[1] = model.Face{V: [3]int{1, 1, 1}}
	m := singleMeshModel(mesh, model.NodeTypeTrimesh)
	Process(m, nil, DefaultOptions()) // must not panic
	if mesh.Faces[1].PlaneDistance != 0 {
		t.Errorf("degenerate plane distance = %v, want fallback 0", mesh.Faces[1].PlaneDistance)
	}
}

func TestProcessAABBNode(t *testing.T) {
	mesh := quadMesh()
	m := singleMeshModel(mesh, model.NodeTypeAABB)
	Process(m, nil, DefaultOptions())
	if mesh.AABBRoot == nil {
		t.Fatal("aabb node did not get a tree")
	}
	if got := mesh.AABBRoot.Count(); got != 3 {
		t.Errorf("tree node count = %d, want 3 (root + 2 leaves)", got)
	}
}

func TestProcessSingleTriangleAABBIsLeaf(t *testing.T) {
	mesh := &model.Mesh{
		Attr:   model.AttrPosition,
		Render: true,
		Verts: []model.Vertex{
			{Position: math.Vec3{X: 0, Y: 0, Z: 0}},
			{Position: math.Vec3{X: 1, Y: 0, Z: 0}},
			{Position: math.Vec3{X: 0, Y: 1, Z: 0}},
		},
		Faces: []model.Face{{V: [3]int{0, 1, 2}}},
	}
	m := singleMeshModel(mesh, model.NodeTypeAABB)
	Process(m, nil, DefaultOptions())
	if mesh.AABBRoot == nil || !mesh.AABBRoot.IsLeaf() {
		t.Errorf("single triangle AABB tree = %+v, want one leaf", mesh.AABBRoot)
	}
}

func TestProcessModelBounds(t *testing.T) {
	m := singleMeshModel(quadMesh(), model.NodeTypeTrimesh)
	Process(m, nil, DefaultOptions())
	if m.BoundingMin != (math.Vec3{X: 0, Y: 0, Z: 0}) || m.BoundingMax != (math.Vec3{X: 1, Y: 1, Z: 0}) {
		t.Errorf("model bounds = %v..%v", m.BoundingMin, m.BoundingMax)
	}
	if m.Radius <= 0 {
		t.Errorf("model radius = %v, want > 0", m.Radius)
	}
}

func TestProcessIdempotent(t *testing.T) {
	m := singleMeshModel(quadMesh(), model.NodeTypeTrimesh)
	Process(m, nil, DefaultOptions())
	mesh := m.Nodes[1].Mesh
	firstNormals := make([]math.Vec3, len(mesh.Verts))
	for i, v := range mesh.Verts {
		firstNormals[i] = v.Normal
	}
	firstGroups := make([]uint32, len(mesh.Faces))
	for i, f := range mesh.Faces {
		firstGroups[i] = f.SmoothGroup
	}

	Process(m, nil, DefaultOptions())
	for i, v := range mesh.Verts {
		if v.Normal.Distance(firstNormals[i]) > 1e-5 {
			t.Errorf("vertex %d normal changed on second run", i)
		}
	}
	for i, f := range mesh.Faces {
		if f.SmoothGroup != firstGroups[i] {
			t.Errorf("face %d smoothing group changed on second run", i)
		}
	}
}

func TestProcessWeightNormalization(t *testing.T) {
	mesh := quadMesh()
	mesh.Attr |= model.AttrWeights | model.AttrIndices
	for vi := range mesh.Verts {
		mesh.Verts[vi].Weights = []model.VertexWeight{
			{BoneName: "root", Weight: 0.3},
			{BoneName: "geom", Weight: 0.3},
		}
	}
	m := singleMeshModel(mesh, model.NodeTypeSkin)
	Process(m, nil, DefaultOptions())

	for vi, v := range mesh.Verts {
		var sum float32
		for _, w := range v.Weights {
			sum += w.Weight
		}
		if sum < 0.9999 || sum > 1.0001 {
			t.Errorf("vertex %d weight sum = %v, want 1", vi, sum)
		}
	}
	if mesh.Skin == nil || len(mesh.Skin.QBones) != len(m.Nodes) {
		t.Fatalf("skin inverse binds not built")
	}
	// The skin node's own entry is the zero reference.
	if mesh.Skin.TBones[1] != (math.Vec3{}) {
		t.Errorf("skin node TBone = %v, want zero", mesh.Skin.TBones[1])
	}
}

func TestBuildBoneTableSupermodelOrder(t *testing.T) {
	super := &model.Model{
		Names: []string{"root", "torso", "head"},
		Nodes: []*model.Node{
			{Index: 0, NameIndex: 0, Parent: -1, Children: []int{1}},
			{Index: 1, NameIndex: 1, Parent: 0, Children: []int{2}},
			{Index: 2, NameIndex: 2, Parent: 1},
		},
	}
	m := &model.Model{
		Names: []string{"root", "head", "cape"},
		Nodes: []*model.Node{
			{Index: 0, NameIndex: 0, Parent: -1, Children: []int{1, 2}},
			{Index: 1, NameIndex: 1, Parent: 0},
			{Index: 2, NameIndex: 2, Parent: 0},
		},
	}
	table := buildBoneTable(m, super)
	if table["root"] != 0 || table["torso"] != 1 || table["head"] != 2 {
		t.Errorf("supermodel numbering not inherited: %v", table)
	}
	if table["cape"] != 3 {
		t.Errorf("new bone index = %d, want appended after supermodel's", table["cape"])
	}
}
