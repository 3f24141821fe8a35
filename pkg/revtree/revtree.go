// Package revtree implements the per-document revision DAG: merge,
// deterministic winner selection, conflict and leaf enumeration, and
// stemming.
package revtree

import "github.com/gocouch/gocouch/pkg/revision"

// Status marks whether a node's body is known locally.
type Status int

const (
	// Available means the body for this revision is stored locally.
	Available Status = iota
	// Missing means the revision is known only by identity — learned
	// through replication ancestry, but its body was never fetched.
	Missing
)

func (s Status) String() string {
	if s == Available {
		return "available"
	}
	return "missing"
}

// Node is one revision in a document's edit history.
type Node struct {
	Hash     string
	Status   Status
	Deleted  bool
	Children []*Node
}

func leaf(hash string, status Status, deleted bool) *Node {
	return &Node{Hash: hash, Status: status, Deleted: deleted}
}

func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Hash: n.Hash, Status: n.Status, Deleted: n.Deleted}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.clone()
		}
	}
	return c
}

// Path is one lineage, starting at generation Pos with Root as its first
// node.
type Path struct {
	Pos  int64
	Root *Node
}

func (p *Path) clone() *Path {
	if p == nil {
		return nil
	}
	return &Path{Pos: p.Pos, Root: p.Root.clone()}
}

// Tree is the ordered list of a document's lineages. Disjoint roots
// coexist until replication links them; equal roots merge during Merge.
type Tree []*Path

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	out := make(Tree, len(t))
	for i, p := range t {
		out[i] = p.clone()
	}
	return out
}

// NewPath builds a linear two-node path representing a single ordinary
// edit: {pos: prev.Pos+1, hash: rev.Hash} as a child of {pos: prev.Pos,
// hash: prev.Hash}. If prev is the zero Revision, the result is a single
// root node (a brand-new document).
func NewPath(prev revision.Revision, rev revision.Revision, deleted bool) *Path {
	newNode := leaf(rev.Hash, Available, deleted)
	if prev.IsZero() {
		return &Path{Pos: rev.Pos, Root: newNode}
	}
	prevNode := &Node{Hash: prev.Hash, Status: Available, Children: []*Node{newNode}}
	return &Path{Pos: prev.Pos, Root: prevNode}
}

// NewPathFromAncestry builds a full linear path from a revisions ancestry
// list ordered leaf-first, e.g. ["d","c","b","a"] with leaf pos 4 yields
// 1-a -> 2-b -> 3-c -> 4-d. The leaf node is marked Available (the body is
// present); every ancestor is Missing unless markAllAvailable is set (used
// when reconstructing a tree from fully-known local history).
func NewPathFromAncestry(leafPos int64, hashes []string, deleted bool, markAllAvailable bool) *Path {
	if len(hashes) == 0 {
		return nil
	}
	// hashes[0] is the leaf; hashes[len-1] is the root.
	rootPos := leafPos - int64(len(hashes)) + 1
	var child *Node
	for i := 0; i < len(hashes); i++ {
		status := Missing
		if i == 0 || markAllAvailable {
			status = Available
		}
		n := &Node{Hash: hashes[i], Status: status}
		if i == 0 {
			n.Deleted = deleted
		}
		if child != nil {
			n.Children = []*Node{child}
		}
		child = n
	}
	return &Path{Pos: rootPos, Root: child}
}

// LeafInfo describes one leaf revision of the tree.
type LeafInfo struct {
	Pos     int64
	Hash    string
	Deleted bool
	Status  Status
}

func (l LeafInfo) Revision() revision.Revision { return revision.New(l.Pos, l.Hash) }

// Leaves enumerates every leaf across every path, in no particular order.
func Leaves(t Tree) []LeafInfo {
	var out []LeafInfo
	for _, p := range t {
		collectLeaves(p.Root, p.Pos, &out)
	}
	return out
}

func collectLeaves(n *Node, pos int64, out *[]LeafInfo) {
	if n == nil {
		return
	}
	if len(n.Children) == 0 {
		*out = append(*out, LeafInfo{Pos: pos, Hash: n.Hash, Deleted: n.Deleted, Status: n.Status})
		return
	}
	for _, c := range n.Children {
		collectLeaves(c, pos+1, out)
	}
}

// sortedLeaves orders leaves by (not deleted, pos, hash) descending, so
// index 0 is the winner.
func sortedLeaves(t Tree) []LeafInfo {
	leaves := Leaves(t)
	// Selection by repeated max is fine at document scale (few leaves).
	for i := 0; i < len(leaves); i++ {
		best := i
		for j := i + 1; j < len(leaves); j++ {
			if leafGreater(leaves[j], leaves[best]) {
				best = j
			}
		}
		leaves[i], leaves[best] = leaves[best], leaves[i]
	}
	return leaves
}

// leafGreater reports whether a outranks b under (not deleted, pos, hash).
func leafGreater(a, b LeafInfo) bool {
	if a.Deleted != b.Deleted {
		return !a.Deleted // non-deleted beats deleted
	}
	if a.Pos != b.Pos {
		return a.Pos > b.Pos
	}
	return a.Hash > b.Hash
}

// WinningRev returns the deterministic winner: among non-deleted leaves,
// the highest (pos, hash); if none exist, the highest (pos, hash) among
// deleted leaves. ok is false for an empty tree.
func WinningRev(t Tree) (revision.Revision, bool) {
	leaves := Leaves(t)
	if len(leaves) == 0 {
		return revision.Revision{}, false
	}
	best := leaves[0]
	for _, l := range leaves[1:] {
		if leafGreater(l, best) {
			best = l
		}
	}
	return best.Revision(), true
}

// IsDeleted reports whether the document's winning revision is a
// tombstone.
func IsDeleted(t Tree) bool {
	leaves := Leaves(t)
	if len(leaves) == 0 {
		return false
	}
	best := leaves[0]
	for _, l := range leaves[1:] {
		if leafGreater(l, best) {
			best = l
		}
	}
	return best.Deleted
}

// CollectConflicts returns every non-deleted leaf other than the winner.
func CollectConflicts(t Tree) []revision.Revision {
	sorted := sortedLeaves(t)
	var out []revision.Revision
	for _, l := range sorted[min(1, len(sorted)):] {
		if !l.Deleted {
			out = append(out, l.Revision())
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FindNode locates the node for rev, if present, regardless of status.
func FindNode(t Tree, rev revision.Revision) (*Node, bool) {
	for _, p := range t {
		if n := findNode(p.Root, p.Pos, rev.Pos, rev.Hash); n != nil {
			return n, true
		}
	}
	return nil, false
}

func findNode(n *Node, curPos, targetPos int64, targetHash string) *Node {
	if n == nil {
		return nil
	}
	if curPos == targetPos && n.Hash == targetHash {
		return n
	}
	for _, c := range n.Children {
		if found := findNode(c, curPos+1, targetPos, targetHash); found != nil {
			return found
		}
	}
	return nil
}

// Ancestry returns the chain of revisions from rev's path root up to and
// including rev, ordered root-first.
func Ancestry(t Tree, rev revision.Revision) ([]revision.Revision, bool) {
	for _, p := range t {
		if chain := ancestryChain(p.Root, p.Pos, rev.Pos, rev.Hash, nil); chain != nil {
			return chain, true
		}
	}
	return nil, false
}

func ancestryChain(n *Node, pos, targetPos int64, targetHash string, acc []revision.Revision) []revision.Revision {
	if n == nil {
		return nil
	}
	acc = append(acc, revision.New(pos, n.Hash))
	if pos == targetPos && n.Hash == targetHash {
		return acc
	}
	for _, c := range n.Children {
		if chain := ancestryChain(c, pos+1, targetPos, targetHash, acc); chain != nil {
			return chain
		}
	}
	return nil
}
