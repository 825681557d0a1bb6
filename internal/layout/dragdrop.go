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

import "github.com/Abbh1/briefer/internal/domain"

// The drag-reorder protocol translates spatial drop intents into the
// structural operation set. The Check functions are pure and side-effect
// free: the UI calls them on every pointer move during a drag, the Drop
// functions only on release.

// BlockDrop is the intent of dragging one tab somewhere. Left/Right target
// a tab (TargetBlockID set) and reorder within the tab strip; Before/After
// target a group and promote the tab to a standalone group at that position.
type BlockDrop struct {
	SourceGroupID domain.GroupID
	BlockID       domain.BlockID
	TargetGroupID domain.GroupID
	TargetBlockID domain.BlockID
	Position      Placement
}

// GroupDrop is the intent of dragging a whole group. Before/After reorder
// the layout; Left/Right merge the dragged group into the target's tab
// strip.
type GroupDrop struct {
	SourceGroupID domain.GroupID
	TargetGroupID domain.GroupID
	Position      Placement
}

// CheckCanDropBlock reports whether performing the drop would produce a
// valid structural change. It never mutates.
func (e *Engine) CheckCanDropBlock(d BlockDrop) bool {
	switch d.Position {
	case Left, Right:
		return e.CanReorderTab(d.SourceGroupID, d.BlockID, d.TargetBlockID, d.Position)
	case Before, After:
		si, sg, ok := e.findGroup(d.SourceGroupID)
		if !ok || sg.TabIndex(d.BlockID) < 0 {
			return false
		}
		ti, _, ok := e.findGroup(d.TargetGroupID)
		if !ok {
			return false
		}
		if len(sg.Tabs) > 1 {
			// extracting a tab from a multi-tab group always changes structure
			return true
		}
		// single-tab group: dropping next to its own position is no net change
		at := ti
		if d.Position == After {
			at = ti + 1
		}
		return at != si && at != si+1
	default:
		return false
	}
}

// DropBlock performs the block drop. Callers should have validated it with
// CheckCanDropBlock; invalid drops are silent no-ops.
func (e *Engine) DropBlock(d BlockDrop) {
	if !e.CheckCanDropBlock(d) {
		return
	}
	switch d.Position {
	case Left, Right:
		e.ReorderTab(d.SourceGroupID, d.BlockID, d.TargetBlockID, d.Position)
	case Before, After:
		si, sg, ok := e.findGroup(d.SourceGroupID)
		if !ok {
			return
		}
		ti, _, ok := e.findGroup(d.TargetGroupID)
		if !ok {
			return
		}
		at := ti
		if d.Position == After {
			at = ti + 1
		}
		if len(sg.Tabs) == 1 {
			// degenerates to a group move; translate to post-removal coordinates
			if si < at {
				at--
			}
		}
		e.UngroupTab(d.SourceGroupID, d.BlockID, at)
	}
}

// CheckCanDropBlockGroup reports whether dropping a whole group at the
// target would change the layout. It never mutates.
func (e *Engine) CheckCanDropBlockGroup(d GroupDrop) bool {
	if d.SourceGroupID == d.TargetGroupID {
		return false
	}
	si, _, ok := e.findGroup(d.SourceGroupID)
	if !ok {
		return false
	}
	ti, _, ok := e.findGroup(d.TargetGroupID)
	if !ok {
		return false
	}
	switch d.Position {
	case Left, Right:
		return true
	case Before, After:
		at := ti
		if d.Position == After {
			at = ti + 1
		}
		// moving right next to the current position is no net change
		return at != si && at != si+1
	default:
		return false
	}
}

// DropBlockGroup performs the group drop: Before/After reorder the layout,
// Left/Right merge the source group's tabs into the target group.
func (e *Engine) DropBlockGroup(d GroupDrop) {
	if !e.CheckCanDropBlockGroup(d) {
		return
	}
	switch d.Position {
	case Left, Right:
		e.GroupBlockGroups(d.SourceGroupID, d.TargetGroupID)
	case Before, After:
		si, _, ok := e.findGroup(d.SourceGroupID)
		if !ok {
			return
		}
		ti, _, ok := e.findGroup(d.TargetGroupID)
		if !ok {
			return
		}
		at := ti
		if d.Position == After {
			at = ti + 1
		}
		if si < at {
			at--
		}
		e.UpdateOrder(d.SourceGroupID, at)
	}
}
