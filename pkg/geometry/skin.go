package geometry

import (
	"go.uber.org/zap"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// buildBoneTable walks the skeleton once and returns a bone-name to
// bone-index table. When a supermodel is given, its numbering wins:
// nodes present in the supermodel inherit its indices so every model
// variant of a family agrees on bone order; new nodes are appended.
func buildBoneTable(m *model.Model, super *model.Model) map[string]int {
	table := make(map[string]int)
	if super != nil {
		super.Walk(func(n *model.Node) {
			name := super.NodeName(n)
			if _, seen := table[name]; !seen {
				table[name] = len(table)
			}
		})
	}
	m.Walk(func(n *model.Node) {
		name := m.NodeName(n)
		if _, seen := table[name]; !seen {
			table[name] = len(table)
		}
	})
	return table
}

// mapSkins resolves every skin node's bone references and rebuilds the
// per-bone inverse-bind position/orientation lists.
//
// The inverse bind of node i is the reverse of its accumulated
// root-to-node transform, re-anchored so the skin node's own entry is
// the zero reference.
func mapSkins(m *model.Model, super *model.Model, log *zap.Logger) {
	hasSkin := false
	for _, n := range m.Nodes {
		if n.Flags&model.FlagSkin != 0 && n.Mesh != nil {
			hasSkin = true
			break
		}
	}
	if !hasSkin {
		return
	}

	table := buildBoneTable(m, super)
	transforms := worldTransforms(m)

	for ni, n := range m.Nodes {
		if n.Flags&model.FlagSkin == 0 || n.Mesh == nil {
			continue
		}
		mesh := n.Mesh
		if mesh.Skin == nil {
			mesh.Skin = &model.Skin{}
		}

		// Resolve per-vertex bone names to table indices.
		for vi := range mesh.Verts {
			for wi := range mesh.Verts[vi].Weights {
				w := &mesh.Verts[vi].Weights[wi]
				if w.BoneName == "" {
					continue
				}
				if idx, ok := table[w.BoneName]; ok {
					w.BoneIndex = idx
				} else {
					w.BoneIndex = -1
					log.Warn("skin references unknown bone",
						zap.String("node", m.NodeName(n)),
						zap.String("bone", w.BoneName))
				}
			}
		}

		// BoneMap: one slot per model node, -1 when the node is not a
		// bone of this skin; referenced nodes get mesh-local slots in
		// first-use order.
		boneMap := make([]int16, len(m.Nodes))
		for i := range boneMap {
			boneMap[i] = -1
		}
		slots := 0
		m.Walk(func(bone *model.Node) {
			name := m.NodeName(bone)
			idx := table[name]
			for vi := range mesh.Verts {
				for _, w := range mesh.Verts[vi].Weights {
					if w.BoneIndex == idx && boneMap[bone.Index] < 0 {
						boneMap[bone.Index] = int16(slots)
						slots++
					}
				}
			}
		})
		mesh.Skin.BoneMap = boneMap

		// Inverse binds for every node, anchored at the skin node.
		anchor := transforms[ni]
		qBones := make([]math.Quat, len(m.Nodes))
		tBones := make([]math.Vec3, len(m.Nodes))
		for i := range m.Nodes {
			qBones[i] = transforms[i].orientation.Inverse().Mul(anchor.orientation)
			tBones[i] = anchor.position.Sub(transforms[i].position)
		}
		mesh.Skin.QBones = qBones
		mesh.Skin.TBones = tBones

		normalizeWeights(m, n, log)
	}
}

// normalizeWeights redistributes any shortfall so each vertex's bone
// weights sum to one.
func normalizeWeights(m *model.Model, n *model.Node, log *zap.Logger) {
	for vi := range n.Mesh.Verts {
		ws := n.Mesh.Verts[vi].Weights
		if len(ws) == 0 {
			continue
		}
		var sum float32
		for _, w := range ws {
			sum += w.Weight
		}
		diff := 1 - sum
		if diff > -1e-4 && diff < 1e-4 {
			continue
		}
		log.Debug("bone weights do not sum to 1, redistributing",
			zap.String("node", m.NodeName(n)),
			zap.Int("vertex", vi),
			zap.Float32("sum", sum))
		share := diff / float32(len(ws))
		for wi := range ws {
			ws[wi].Weight += share
		}
	}
}
