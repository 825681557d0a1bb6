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
	"encoding/json"

	"github.com/Abbh1/briefer/internal/domain"
)

// newBlock materializes a spec into a block with a fresh identifier.
func newBlock(spec domain.BlockSpec) domain.Block {
	b := domain.Block{
		ID:     domain.NewBlockID(),
		Type:   spec.Type,
		Title:  spec.Title,
		Status: domain.StatusIdle,
	}
	if spec.Payload != nil {
		b.Payload = append(json.RawMessage(nil), spec.Payload...)
	}
	return b
}

// ── creation ───────────────────────────────────────────────

// AddBlockGroup creates a new block from spec, wraps it in a new single-tab
// group and inserts the group at index (clamped to [0, len]) in the layout.
// Returns the new block id, or "" when the spec's type is unknown.
func (e *Engine) AddBlockGroup(index int, spec domain.BlockSpec) domain.BlockID {
	if !spec.Type.Valid() {
		return ""
	}
	block := newBlock(spec)
	e.transact("add_block_group", func() {
		e.store.Blocks().Set(block.ID, block)
		g := domain.BlockGroup{
			ID:   domain.NewGroupID(),
			Tabs: []domain.TabRef{{BlockID: block.ID, IsCurrent: true}},
		}
		e.store.Groups().Insert(clamp(index, e.store.Groups().Len()), g)
	})
	return block.ID
}

// AddGroupedBlock creates a new block and inserts it as a new tab of an
// existing group, immediately before or after the tab for anchorBlockID.
// The new tab becomes the group's current tab. Silent no-op (returns "")
// when the group or anchor cannot be found.
func (e *Engine) AddGroupedBlock(groupID domain.GroupID, anchorBlockID domain.BlockID, spec domain.BlockSpec, pos Placement) domain.BlockID {
	if !spec.Type.Valid() || (pos != Before && pos != After) {
		return ""
	}
	_, g, ok := e.findGroup(groupID)
	if !ok || g.TabIndex(anchorBlockID) < 0 {
		return ""
	}
	block := newBlock(spec)
	e.transact("add_grouped_block", func() {
		e.insertGroupedBlock(groupID, anchorBlockID, block, pos)
	})
	return block.ID
}

// insertGroupedBlock places block as a new tab next to the anchor and makes
// it the group's current tab. Callers hold the transaction boundary.
func (e *Engine) insertGroupedBlock(groupID domain.GroupID, anchorBlockID domain.BlockID, block domain.Block, pos Placement) {
	gi, g, ok := e.findGroup(groupID)
	if !ok {
		return
	}
	ti := g.TabIndex(anchorBlockID)
	if ti < 0 {
		return
	}
	e.store.Blocks().Set(block.ID, block)
	at := ti
	if pos == After {
		at = ti + 1
	}
	g.Tabs = insertTab(g.Tabs, at, domain.TabRef{BlockID: block.ID})
	setCurrentTab(&g, block.ID)
	e.store.Groups().Set(gi, g)
}

// AddBlockGroupAfterBlock locates the group containing afterBlockID. A
// single-tab group grows by sibling group: the new block lands in a fresh
// group right after it. A multi-tab group grows by tab: the new block is
// added after the anchor tab, as in AddGroupedBlock.
func (e *Engine) AddBlockGroupAfterBlock(spec domain.BlockSpec, afterBlockID domain.BlockID) domain.BlockID {
	if !spec.Type.Valid() {
		return ""
	}
	_, g, _, ok := e.findGroupOfBlock(afterBlockID)
	if !ok {
		return ""
	}
	if len(g.Tabs) > 1 {
		block := newBlock(spec)
		e.transact("add_block_group_after_block", func() {
			e.insertGroupedBlock(g.ID, afterBlockID, block, After)
		})
		return block.ID
	}
	block := newBlock(spec)
	e.transact("add_block_group_after_block", func() {
		gi, _, _, ok := e.findGroupOfBlock(afterBlockID)
		if !ok {
			return
		}
		e.store.Blocks().Set(block.ID, block)
		ng := domain.BlockGroup{
			ID:   domain.NewGroupID(),
			Tabs: []domain.TabRef{{BlockID: block.ID, IsCurrent: true}},
		}
		e.store.Groups().Insert(gi+1, ng)
	})
	return block.ID
}

// ── grouping / ungrouping ──────────────────────────────────

// GroupBlocks moves the tab for sourceBlockID out of its source group into
// targetGroupID as that group's new current tab. An emptied source group is
// removed from the layout in the same transaction.
func (e *Engine) GroupBlocks(sourceGroupID domain.GroupID, sourceBlockID domain.BlockID, targetGroupID domain.GroupID) {
	if sourceGroupID == targetGroupID {
		return
	}
	e.transact("group_blocks", func() {
		si, sg, ok := e.findGroup(sourceGroupID)
		if !ok {
			return
		}
		if _, _, ok := e.findGroup(targetGroupID); !ok {
			return
		}
		sti := sg.TabIndex(sourceBlockID)
		if sti < 0 {
			return
		}
		moved := removeTabAt(&sg, sti)
		if len(sg.Tabs) == 0 {
			e.store.Groups().RemoveAt(si)
		} else {
			e.store.Groups().Set(si, sg)
		}
		ti, tg, ok := e.findGroup(targetGroupID)
		if !ok {
			return
		}
		tg.Tabs = append(tg.Tabs, moved)
		setCurrentTab(&tg, moved.BlockID)
		e.store.Groups().Set(ti, tg)
	})
}

// GroupBlockGroups merges all tabs of the source group into the target
// group, preserving their relative order after the target's existing tabs,
// and removes the emptied source group. The target's current tab stays
// current.
func (e *Engine) GroupBlockGroups(sourceGroupID, targetGroupID domain.GroupID) {
	if sourceGroupID == targetGroupID {
		return
	}
	e.transact("group_block_groups", func() {
		si, sg, ok := e.findGroup(sourceGroupID)
		if !ok {
			return
		}
		if _, _, ok := e.findGroup(targetGroupID); !ok {
			return
		}
		e.store.Groups().RemoveAt(si)
		ti, tg, ok := e.findGroup(targetGroupID)
		if !ok {
			return
		}
		for _, t := range sg.Tabs {
			t.IsCurrent = false
			tg.Tabs = append(tg.Tabs, t)
		}
		ensureOneCurrent(&tg)
		e.store.Groups().Set(ti, tg)
	})
}

// UngroupTab extracts one tab from a multi-tab group and promotes it to a
// standalone group inserted at targetIndex in the layout. When the source
// group holds only this tab the call degenerates to repositioning the
// existing group, keeping its identity.
func (e *Engine) UngroupTab(sourceGroupID domain.GroupID, blockID domain.BlockID, targetIndex int) {
	e.transact("ungroup_tab", func() {
		si, sg, ok := e.findGroup(sourceGroupID)
		if !ok {
			return
		}
		sti := sg.TabIndex(blockID)
		if sti < 0 {
			return
		}
		if len(sg.Tabs) == 1 {
			e.moveGroupTo(si, targetIndex)
			return
		}
		moved := removeTabAt(&sg, sti)
		e.store.Groups().Set(si, sg)
		moved.IsCurrent = true
		ng := domain.BlockGroup{ID: domain.NewGroupID(), Tabs: []domain.TabRef{moved}}
		e.store.Groups().Insert(clamp(targetIndex, e.store.Groups().Len()), ng)
	})
}

// ── reordering ─────────────────────────────────────────────

// UpdateOrder removes the group from its current position and reinserts it
// at targetIndex, interpreted against the sequence after removal (standard
// list-move semantics).
func (e *Engine) UpdateOrder(groupID domain.GroupID, targetIndex int) {
	e.transact("update_order", func() {
		si, _, ok := e.findGroup(groupID)
		if !ok {
			return
		}
		e.moveGroupTo(si, targetIndex)
	})
}

// moveGroupTo repositions the group at sequence index from to targetIndex
// (post-removal coordinates, clamped). Must run inside a transaction.
func (e *Engine) moveGroupTo(from, targetIndex int) {
	groups := e.store.Groups().ToArray()
	if from < 0 || from >= len(groups) {
		return
	}
	g := groups[from]
	e.store.Groups().RemoveAt(from)
	e.store.Groups().Insert(clamp(targetIndex, e.store.Groups().Len()), g)
}

// ReorderTab removes the tab for blockID from its source group and inserts
// it immediately before (Left) or after (Right) the tab for targetBlockID,
// which may live in another group. Within a group the tab's currency is
// untouched; a tab arriving from another group arrives non-current and the
// target keeps its current tab. An emptied source group is removed.
func (e *Engine) ReorderTab(sourceGroupID domain.GroupID, blockID, targetBlockID domain.BlockID, side Placement) {
	if side != Left && side != Right {
		return
	}
	if blockID == targetBlockID {
		return
	}
	e.transact("reorder_tab", func() {
		si, sg, ok := e.findGroup(sourceGroupID)
		if !ok {
			return
		}
		sti := sg.TabIndex(blockID)
		if sti < 0 {
			return
		}
		_, tg, _, ok := e.findGroupOfBlock(targetBlockID)
		if !ok {
			return
		}
		if tg.ID == sg.ID {
			moved := sg.Tabs[sti]
			sg.Tabs = append(sg.Tabs[:sti], sg.Tabs[sti+1:]...)
			at := sg.TabIndex(targetBlockID)
			if side == Right {
				at++
			}
			sg.Tabs = insertTab(sg.Tabs, at, moved)
			e.store.Groups().Set(si, sg)
			return
		}
		moved := removeTabAt(&sg, sti)
		moved.IsCurrent = false
		if len(sg.Tabs) == 0 {
			e.store.Groups().RemoveAt(si)
		} else {
			e.store.Groups().Set(si, sg)
		}
		ti, tg, tti, ok := e.findGroupOfBlock(targetBlockID)
		if !ok {
			return
		}
		at := tti
		if side == Right {
			at = tti + 1
		}
		tg.Tabs = insertTab(tg.Tabs, at, moved)
		e.store.Groups().Set(ti, tg)
	})
}

// CanReorderTab is the pure pre-check mirroring ReorderTab's legality. It
// rejects unknown identifiers, self-targets and no-op reorders where the tab
// already sits on the requested side of the target.
func (e *Engine) CanReorderTab(sourceGroupID domain.GroupID, blockID, targetBlockID domain.BlockID, side Placement) bool {
	if side != Left && side != Right {
		return false
	}
	if blockID == targetBlockID {
		return false
	}
	_, sg, ok := e.findGroup(sourceGroupID)
	if !ok {
		return false
	}
	sti := sg.TabIndex(blockID)
	if sti < 0 {
		return false
	}
	_, tg, tti, ok := e.findGroupOfBlock(targetBlockID)
	if !ok {
		return false
	}
	if tg.ID == sg.ID {
		if side == Left && sti == tti-1 {
			return false
		}
		if side == Right && sti == tti+1 {
			return false
		}
	}
	return true
}

// ── duplication ────────────────────────────────────────────

// DuplicateBlockGroup deep-copies every tab's block under fresh identifiers
// into a new group inserted immediately after the source. Returns the new
// group id, or "" for unknown groups.
func (e *Engine) DuplicateBlockGroup(groupID domain.GroupID) domain.GroupID {
	var newID domain.GroupID
	e.transact("duplicate_block_group", func() {
		si, sg, ok := e.findGroup(groupID)
		if !ok {
			return
		}
		ng := domain.BlockGroup{ID: domain.NewGroupID()}
		for _, t := range sg.Tabs {
			b, ok := e.store.Blocks().Get(t.BlockID)
			if !ok {
				continue
			}
			nb := b.Clone()
			nb.ID = domain.NewBlockID()
			e.store.Blocks().Set(nb.ID, nb)
			ng.Tabs = append(ng.Tabs, domain.TabRef{
				BlockID:             nb.ID,
				IsCurrent:           t.IsCurrent,
				IsHiddenInPublished: t.IsHiddenInPublished,
			})
		}
		if len(ng.Tabs) == 0 {
			return
		}
		ensureOneCurrent(&ng)
		e.store.Groups().Insert(si+1, ng)
		newID = ng.ID
	})
	return newID
}

// DuplicateTab deep-copies a single block into a new tab inserted right
// after the source tab within the same group. The copy becomes the group's
// current tab. Returns the new block id, or "" when nothing was copied.
func (e *Engine) DuplicateTab(groupID domain.GroupID, blockID domain.BlockID) domain.BlockID {
	var newID domain.BlockID
	e.transact("duplicate_tab", func() {
		gi, g, ok := e.findGroup(groupID)
		if !ok {
			return
		}
		ti := g.TabIndex(blockID)
		if ti < 0 {
			return
		}
		b, ok := e.store.Blocks().Get(blockID)
		if !ok {
			return
		}
		nb := b.Clone()
		nb.ID = domain.NewBlockID()
		e.store.Blocks().Set(nb.ID, nb)
		g.Tabs = insertTab(g.Tabs, ti+1, domain.TabRef{
			BlockID:             nb.ID,
			IsHiddenInPublished: g.Tabs[ti].IsHiddenInPublished,
		})
		setCurrentTab(&g, nb.ID)
		e.store.Groups().Set(gi, g)
		newID = nb.ID
	})
	return newID
}

// ── visibility & tab selection ─────────────────────────────

// ToggleIsBlockHiddenInPublished flips the hidden-in-published flag on one
// tab. Currency is unaffected.
func (e *Engine) ToggleIsBlockHiddenInPublished(groupID domain.GroupID, blockID domain.BlockID) {
	e.transact("toggle_hidden_in_published", func() {
		gi, g, ok := e.findGroup(groupID)
		if !ok {
			return
		}
		ti := g.TabIndex(blockID)
		if ti < 0 {
			return
		}
		g.Tabs[ti].IsHiddenInPublished = !g.Tabs[ti].IsHiddenInPublished
		e.store.Groups().Set(gi, g)
	})
}

// SwitchActiveTab moves the current-tab marker to blockID within groupID.
func (e *Engine) SwitchActiveTab(groupID domain.GroupID, blockID domain.BlockID) {
	e.transact("switch_active_tab", func() {
		gi, g, ok := e.findGroup(groupID)
		if !ok {
			return
		}
		if g.TabIndex(blockID) < 0 {
			return
		}
		setCurrentTab(&g, blockID)
		e.store.Groups().Set(gi, g)
	})
}

// ── small helpers ──────────────────────────────────────────

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func insertTab(tabs []domain.TabRef, i int, t domain.TabRef) []domain.TabRef {
	i = clamp(i, len(tabs))
	tabs = append(tabs, domain.TabRef{})
	copy(tabs[i+1:], tabs[i:])
	tabs[i] = t
	return tabs
}

// ensureOneCurrent repairs the current marker so exactly one tab holds it,
// preferring the first already-marked tab.
func ensureOneCurrent(g *domain.BlockGroup) {
	if len(g.Tabs) == 0 {
		return
	}
	cur := g.Tabs[0].BlockID
	for _, t := range g.Tabs {
		if t.IsCurrent {
			cur = t.BlockID
			break
		}
	}
	setCurrentTab(g, cur)
}
