/*
 * Copyright (c) 2025 Briefer contributors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package layout

import (
	"sync"

	"github.com/Abbh1/briefer/internal/domain"
)

// BlockStore is the block mapping capability of the replicated document.
type BlockStore interface {
	Get(id domain.BlockID) (domain.Block, bool)
	Set(id domain.BlockID, b domain.Block)
	Delete(id domain.BlockID)
	IDs() []domain.BlockID
}

// GroupSequence is the ordered layout capability of the replicated document.
// Set replaces the record at an index; on a map-in-sequence substrate this is
// an in-place mutation of the group's tab map, not a delete-and-reinsert.
type GroupSequence interface {
	Len() int
	Insert(i int, g domain.BlockGroup)
	RemoveAt(i int)
	Set(i int, g domain.BlockGroup)
	ToArray() []domain.BlockGroup
}

// Store bundles the two replicated collaborators with the transaction
// boundary the substrate provides. Transact must apply fn as a single atomic
// unit: neither local readers nor remote peers may observe a state between
// the steps of fn.
type Store interface {
	Blocks() BlockStore
	Groups() GroupSequence
	Transact(fn func())
}

// DocStore is the in-memory Store implementation over a domain.Document.
// It serializes local mutation with a mutex; merging of remote edits is the
// substrate's concern and happens outside this process.
type DocStore struct {
	mu  sync.Mutex
	doc *domain.Document
}

// NewDocStore wraps doc. The document must not be mutated behind the store's
// back; the engine's operation set is the only sanctioned writer.
func NewDocStore(doc *domain.Document) *DocStore {
	if doc.Blocks == nil {
		doc.Blocks = map[domain.BlockID]domain.Block{}
	}
	return &DocStore{doc: doc}
}

// Document returns the underlying document. Callers must only read it.
func (s *DocStore) Document() *domain.Document { return s.doc }

func (s *DocStore) Blocks() BlockStore    { return &docBlocks{s} }
func (s *DocStore) Groups() GroupSequence { return &docGroups{s} }

func (s *DocStore) Transact(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.doc.Version++
}

type docBlocks struct{ s *DocStore }

func (b *docBlocks) Get(id domain.BlockID) (domain.Block, bool) {
	blk, ok := b.s.doc.Blocks[id]
	return blk, ok
}

func (b *docBlocks) Set(id domain.BlockID, blk domain.Block) {
	b.s.doc.Blocks[id] = blk
}

func (b *docBlocks) Delete(id domain.BlockID) {
	delete(b.s.doc.Blocks, id)
}

func (b *docBlocks) IDs() []domain.BlockID {
	ids := make([]domain.BlockID, 0, len(b.s.doc.Blocks))
	for id := range b.s.doc.Blocks {
		ids = append(ids, id)
	}
	return ids
}

type docGroups struct{ s *DocStore }

func (g *docGroups) Len() int { return len(g.s.doc.Layout) }

func (g *docGroups) Insert(i int, grp domain.BlockGroup) {
	l := g.s.doc.Layout
	if i < 0 {
		i = 0
	}
	if i > len(l) {
		i = len(l)
	}
	l = append(l, domain.BlockGroup{})
	copy(l[i+1:], l[i:])
	l[i] = grp
	g.s.doc.Layout = l
}

func (g *docGroups) RemoveAt(i int) {
	l := g.s.doc.Layout
	if i < 0 || i >= len(l) {
		return
	}
	g.s.doc.Layout = append(l[:i], l[i+1:]...)
}

func (g *docGroups) Set(i int, grp domain.BlockGroup) {
	if i < 0 || i >= len(g.s.doc.Layout) {
		return
	}
	g.s.doc.Layout[i] = grp
}

func (g *docGroups) ToArray() []domain.BlockGroup {
	out := make([]domain.BlockGroup, len(g.s.doc.Layout))
	for i, grp := range g.s.doc.Layout {
		out[i] = grp.Clone()
	}
	return out
}
