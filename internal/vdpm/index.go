package vdpm

// NodeHandle is the dense position of a node in the hierarchy arena.
type NodeHandle int32

const InvalidNode NodeHandle = -1

func (h NodeHandle) IsValid() bool { return h >= 0 }

// NodeIndex identifies a node independently of the order nodes were created in: the
// tree id sits in the high treeIDBits bits and the node id in the rest. Roots have node
// id 1 and the children of node k are 2k and 2k+1.
type NodeIndex uint32

const InvalidNodeIndex NodeIndex = 0

func NewNodeIndex(treeID, nodeID uint32, treeIDBits int) NodeIndex {
	if treeIDBits == 0 {
		return NodeIndex(nodeID)
	}
	return NodeIndex(treeID<<(32-treeIDBits) | nodeID)
}

func (i NodeIndex) TreeID(treeIDBits int) uint32 {
	if treeIDBits == 0 {
		return 0
	}
	return uint32(i) >> (32 - treeIDBits)
}

func (i NodeIndex) NodeID(treeIDBits int) uint32 {
	return uint32(uint64(i) & nodeIDMask(treeIDBits))
}

func nodeIDMask(treeIDBits int) uint64 {
	return 1<<(32-treeIDBits) - 1
}

// isAncestorIndex reports whether a is b or one of its ancestors.
func isAncestorIndex(a, b NodeIndex, treeIDBits int) bool {
	if a.TreeID(treeIDBits) != b.TreeID(treeIDBits) {
		return false
	}
	na, nb := a.NodeID(treeIDBits), b.NodeID(treeIDBits)
	for ; nb >= na && nb > 0; nb >>= 1 {
		if na == nb {
			return true
		}
	}
	return false
}
