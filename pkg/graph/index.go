package graph

import "github.com/soundprediction/go-graphrank/pkg/types"

// Index assigns dense integer indices to entity ids in order of first
// appearance. Both analyses iterate nodes in index order, which makes their
// output a function of the edge list order alone.
type Index struct {
	ids []types.EntityID
	pos map[types.EntityID]int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{pos: make(map[types.EntityID]int)}
}

// Add returns the index of id, assigning the next free index if id is new.
func (ix *Index) Add(id types.EntityID) int {
	if i, ok := ix.pos[id]; ok {
		return i
	}
	i := len(ix.ids)
	ix.ids = append(ix.ids, id)
	ix.pos[id] = i
	return i
}

// Lookup returns the index of id.
func (ix *Index) Lookup(id types.EntityID) (int, bool) {
	i, ok := ix.pos[id]
	return i, ok
}

// ID returns the entity id stored at index i.
func (ix *Index) ID(i int) types.EntityID {
	return ix.ids[i]
}

// Len returns the number of indexed entities.
func (ix *Index) Len() int {
	return len(ix.ids)
}
