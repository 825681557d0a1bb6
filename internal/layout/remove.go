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

// ConflictRef identifies one dashboard item that depends on a block slated
// for removal.
type ConflictRef struct {
	DashboardID string         `json:"dashboardId"`
	ItemID      string         `json:"itemId"`
	BlockID     domain.BlockID `json:"blockId"`
}

// DashboardRef is the read-only collaborator answering which dashboard items
// depend on the given blocks. The engine never mutates dashboards.
type DashboardRef interface {
	FindConflicts(blockIDs map[domain.BlockID]struct{}) []ConflictRef
}

// RemoveOutcome tags a removal result.
type RemoveOutcome string

const (
	RemoveSuccess           RemoveOutcome = "success"
	RemoveDashboardConflict RemoveOutcome = "dashboard-conflict"
)

// RemoveResult is the outcome of a two-phase removal. On a dashboard
// conflict no mutation has happened; the caller surfaces the conflicts and
// either re-invokes with force=true or abandons the operation. The engine
// never auto-resolves.
type RemoveResult struct {
	Outcome   RemoveOutcome
	Conflicts []ConflictRef
}

func removed() RemoveResult { return RemoveResult{Outcome: RemoveSuccess} }

func blocked(conflicts []ConflictRef) RemoveResult {
	return RemoveResult{Outcome: RemoveDashboardConflict, Conflicts: conflicts}
}

// findDashboardConflicts runs the dry-run scan. Without a DashboardRef the
// engine has nothing to protect and removals always proceed.
func (e *Engine) findDashboardConflicts(ids map[domain.BlockID]struct{}) []ConflictRef {
	if e.dash == nil || len(ids) == 0 {
		return nil
	}
	return e.dash.FindConflicts(ids)
}

// RemoveBlockGroup removes a whole group and every block its tabs reference.
// With force=false the dashboard reference is consulted first and a conflict
// aborts the removal without mutating anything. Unknown groups are a silent
// no-op reported as success.
func (e *Engine) RemoveBlockGroup(groupID domain.GroupID, force bool) RemoveResult {
	_, g, ok := e.findGroup(groupID)
	if !ok {
		return removed()
	}
	if !force {
		ids := make(map[domain.BlockID]struct{}, len(g.Tabs))
		for _, t := range g.Tabs {
			ids[t.BlockID] = struct{}{}
		}
		if conflicts := e.findDashboardConflicts(ids); len(conflicts) > 0 {
			return blocked(conflicts)
		}
	}
	e.transact("remove_block_group", func() {
		si, g, ok := e.findGroup(groupID)
		if !ok {
			return
		}
		for _, t := range g.Tabs {
			e.store.Blocks().Delete(t.BlockID)
		}
		e.store.Groups().RemoveAt(si)
	})
	return removed()
}

// RemoveBlock removes a single tab and its block, with the same two-phase
// contract as RemoveBlockGroup. Removing the last tab removes the group as a
// cascading consequence, inside the same transaction.
func (e *Engine) RemoveBlock(groupID domain.GroupID, blockID domain.BlockID, force bool) RemoveResult {
	_, g, ok := e.findGroup(groupID)
	if !ok || g.TabIndex(blockID) < 0 {
		return removed()
	}
	if !force {
		ids := map[domain.BlockID]struct{}{blockID: {}}
		if conflicts := e.findDashboardConflicts(ids); len(conflicts) > 0 {
			return blocked(conflicts)
		}
	}
	e.transact("remove_block", func() {
		gi, g, ok := e.findGroup(groupID)
		if !ok {
			return
		}
		ti := g.TabIndex(blockID)
		if ti < 0 {
			return
		}
		removeTabAt(&g, ti)
		e.store.Blocks().Delete(blockID)
		if len(g.Tabs) == 0 {
			e.store.Groups().RemoveAt(gi)
		} else {
			e.store.Groups().Set(gi, g)
		}
	})
	return removed()
}

// DocDashboards adapts a document's own dashboards to the DashboardRef
// interface.
type DocDashboards struct {
	doc *domain.Document
}

// NewDocDashboards builds the adapter over doc.
func NewDocDashboards(doc *domain.Document) *DocDashboards {
	return &DocDashboards{doc: doc}
}

// FindConflicts scans every dashboard item for references to the given
// blocks.
func (d *DocDashboards) FindConflicts(blockIDs map[domain.BlockID]struct{}) []ConflictRef {
	var out []ConflictRef
	for _, dash := range d.doc.Dashboards {
		for _, item := range dash.Items {
			if _, hit := blockIDs[item.BlockID]; hit {
				out = append(out, ConflictRef{
					DashboardID: dash.ID,
					ItemID:      item.ID,
					BlockID:     item.BlockID,
				})
			}
		}
	}
	return out
}
