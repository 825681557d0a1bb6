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
	"fmt"
	"log/slog"

	"github.com/Abbh1/briefer/internal/domain"
	applog "github.com/Abbh1/briefer/internal/log"
)

// Placement locates an insertion relative to a drag-and-drop target:
// Before/After are vertical (group level), Left/Right are horizontal
// (tab level).
type Placement string

const (
	Before Placement = "before"
	After  Placement = "after"
	Left   Placement = "left"
	Right  Placement = "right"
)

// Engine exposes the structural operation set over a Store. Referencing an
// unknown group or block identifier is a silent no-op throughout; callers are
// expected to gate operations on the read-side queries.
type Engine struct {
	store   Store
	dash    DashboardRef
	strict  bool
	observe func(op string)
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDashboardRef installs the collaborator consulted before destructive
// operations. Without one, removals never report conflicts.
func WithDashboardRef(d DashboardRef) Option {
	return func(e *Engine) { e.dash = d }
}

// WithObserver installs a callback invoked with the operation name after
// every committed mutation. Callers hook history capture or telemetry
// counters here; the callback runs outside the transaction boundary.
func WithObserver(fn func(op string)) Option {
	return func(e *Engine) { e.observe = fn }
}

// WithStrictInvariants makes post-operation invariant violations panic
// instead of being logged and ignored. For development builds and tests;
// a violation always indicates a caller bypassing the sanctioned mutators.
func WithStrictInvariants() Option {
	return func(e *Engine) { e.strict = true }
}

// New creates an Engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, log: applog.WithComponent("layout")}
	for _, o := range opts {
		o(e)
	}
	return e
}

// transact wraps a mutation in the store's atomic boundary and checks the
// structural invariants afterwards.
func (e *Engine) transact(op string, fn func()) {
	e.store.Transact(fn)
	if err := e.Validate(); err != nil {
		l := applog.WithOperation(e.log, op)
		l.Error("structural invariant violated", slog.Any("err", err))
		if e.strict {
			panic(fmt.Sprintf("layout: %s: %v", op, err))
		}
	}
	if e.observe != nil {
		e.observe(op)
	}
}

// ── read-side queries ──────────────────────────────────────

// Tab is the derived view of one tab reference, resolved against the block
// store for display attributes.
type Tab struct {
	BlockGroupID        domain.GroupID
	BlockID             domain.BlockID
	Type                domain.BlockType
	Title               string
	Status              domain.ExecStatus
	IsCurrent           bool
	IsHiddenInPublished bool
}

// GetBlock returns the block stored under id.
func (e *Engine) GetBlock(id domain.BlockID) (domain.Block, bool) {
	return e.store.Blocks().Get(id)
}

// GetBlockGroup returns a copy of the group record with the given id.
func (e *Engine) GetBlockGroup(id domain.GroupID) (domain.BlockGroup, bool) {
	_, g, ok := e.findGroup(id)
	return g, ok
}

// Layout returns a copy of the top-level group sequence in document order.
func (e *Engine) Layout() []domain.BlockGroup {
	return e.store.Groups().ToArray()
}

// TabsFromGroup resolves the tabs of a group record against the block store.
// Tabs whose block is missing are skipped.
func (e *Engine) TabsFromGroup(g domain.BlockGroup) []Tab {
	tabs := make([]Tab, 0, len(g.Tabs))
	for _, ref := range g.Tabs {
		b, ok := e.store.Blocks().Get(ref.BlockID)
		if !ok {
			continue
		}
		tabs = append(tabs, Tab{
			BlockGroupID:        g.ID,
			BlockID:             ref.BlockID,
			Type:                b.Type,
			Title:               b.DisplayTitle(),
			Status:              b.Status,
			IsCurrent:           ref.IsCurrent,
			IsHiddenInPublished: ref.IsHiddenInPublished,
		})
	}
	return tabs
}

// TabsFromGroupID is TabsFromGroup keyed by group id. Unknown ids yield nil.
func (e *Engine) TabsFromGroupID(id domain.GroupID) []Tab {
	g, ok := e.GetBlockGroup(id)
	if !ok {
		return nil
	}
	return e.TabsFromGroup(g)
}

// GetCurrentTabID returns the block id of the group's current tab. In the
// published view the persisted marker wins while it is visible; when the
// marked tab is hidden, currency falls to the first non-hidden tab, and a
// group with no visible tab has no current tab at all.
func (e *Engine) GetCurrentTabID(id domain.GroupID, publishedView bool) (domain.BlockID, bool) {
	g, ok := e.GetBlockGroup(id)
	if !ok || len(g.Tabs) == 0 {
		return "", false
	}
	cur := g.Tabs[0]
	for _, t := range g.Tabs {
		if t.IsCurrent {
			cur = t
			break
		}
	}
	if !publishedView {
		return cur.BlockID, true
	}
	if !cur.IsHiddenInPublished {
		return cur.BlockID, true
	}
	for _, t := range g.Tabs {
		if !t.IsHiddenInPublished {
			return t.BlockID, true
		}
	}
	return "", false
}

// ── invariants ─────────────────────────────────────────────

// Validate checks the structural invariants of the document:
// every tab resolves to a stored block, a block is a member of at most one
// tab, no group is empty, every non-empty group has exactly one current tab,
// and no stored block is orphaned outside the layout.
func (e *Engine) Validate() error {
	groups := e.store.Groups().ToArray()
	seen := map[domain.BlockID]domain.GroupID{}
	for _, g := range groups {
		if len(g.Tabs) == 0 {
			return fmt.Errorf("group %s has zero tabs", g.ID)
		}
		current := 0
		for _, t := range g.Tabs {
			if owner, dup := seen[t.BlockID]; dup {
				return fmt.Errorf("block %s appears in groups %s and %s", t.BlockID, owner, g.ID)
			}
			seen[t.BlockID] = g.ID
			if _, ok := e.store.Blocks().Get(t.BlockID); !ok {
				return fmt.Errorf("group %s references missing block %s", g.ID, t.BlockID)
			}
			if t.IsCurrent {
				current++
			}
		}
		if current != 1 {
			return fmt.Errorf("group %s has %d current tabs", g.ID, current)
		}
	}
	for _, id := range e.store.Blocks().IDs() {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("block %s is orphaned (stored but not in any tab)", id)
		}
	}
	return nil
}

// ── internal lookups ───────────────────────────────────────

// findGroup returns the sequence index and a copy of the group record.
func (e *Engine) findGroup(id domain.GroupID) (int, domain.BlockGroup, bool) {
	for i, g := range e.store.Groups().ToArray() {
		if g.ID == id {
			return i, g, true
		}
	}
	return -1, domain.BlockGroup{}, false
}

// findGroupOfBlock locates the group holding a tab for blockID, returning
// the sequence index, a copy of the group and the tab index.
func (e *Engine) findGroupOfBlock(blockID domain.BlockID) (int, domain.BlockGroup, int, bool) {
	for i, g := range e.store.Groups().ToArray() {
		if ti := g.TabIndex(blockID); ti >= 0 {
			return i, g, ti, true
		}
	}
	return -1, domain.BlockGroup{}, -1, false
}

// setCurrentTab marks exactly the tab for id as current.
func setCurrentTab(g *domain.BlockGroup, id domain.BlockID) {
	for i := range g.Tabs {
		g.Tabs[i].IsCurrent = g.Tabs[i].BlockID == id
	}
}

// removeTabAt drops the tab at index ti and, if it carried the current
// marker, deterministically moves currency to the tab that was immediately
// before it, else to the new first tab.
func removeTabAt(g *domain.BlockGroup, ti int) domain.TabRef {
	removed := g.Tabs[ti]
	g.Tabs = append(g.Tabs[:ti], g.Tabs[ti+1:]...)
	if removed.IsCurrent && len(g.Tabs) > 0 {
		next := ti - 1
		if next < 0 {
			next = 0
		}
		setCurrentTab(g, g.Tabs[next].BlockID)
	}
	return removed
}
