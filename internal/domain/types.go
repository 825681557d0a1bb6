/*
 * Copyright (c) 2025 Briefer contributors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for the notebook layout engine:
// blocks (the atomic content units), block groups (positional slots holding
// one or more tabs), and the document that ties them together. The layout
// engine in internal/layout is the only sanctioned mutator of these records.

import (
	"encoding/json"

	"github.com/google/uuid"
)

// BlockID identifies a block. It is globally unique and immutable once assigned.
type BlockID string

// GroupID identifies a block group. Group identity is stable across reorders.
type GroupID string

// NewBlockID returns a fresh block identifier.
func NewBlockID() BlockID { return BlockID(uuid.NewString()) }

// NewGroupID returns a fresh block group identifier.
func NewGroupID() GroupID { return GroupID(uuid.NewString()) }

// BlockType is the closed set of block kinds the engine knows about.
type BlockType string

const (
	BlockTypeRichText        BlockType = "richText"
	BlockTypeSQL             BlockType = "sql"
	BlockTypeCode            BlockType = "code"
	BlockTypeVisualization   BlockType = "visualization"
	BlockTypeInput           BlockType = "input"
	BlockTypeDropdownInput   BlockType = "dropdownInput"
	BlockTypeDateInput       BlockType = "dateInput"
	BlockTypeFileUpload      BlockType = "fileUpload"
	BlockTypeDashboardHeader BlockType = "dashboardHeader"
	BlockTypeWriteback       BlockType = "writeback"
	BlockTypePivotTable      BlockType = "pivotTable"
)

// BlockTypes lists all known block types in a stable order.
var BlockTypes = []BlockType{
	BlockTypeRichText,
	BlockTypeSQL,
	BlockTypeCode,
	BlockTypeVisualization,
	BlockTypeInput,
	BlockTypeDropdownInput,
	BlockTypeDateInput,
	BlockTypeFileUpload,
	BlockTypeDashboardHeader,
	BlockTypeWriteback,
	BlockTypePivotTable,
}

// Valid reports whether t is one of the known block types.
func (t BlockType) Valid() bool {
	for _, k := range BlockTypes {
		if k == t {
			return true
		}
	}
	return false
}

// PrettyTitle returns the display name used when a block has no explicit title.
func PrettyTitle(t BlockType) string {
	switch t {
	case BlockTypeRichText:
		return "Text"
	case BlockTypeSQL:
		return "SQL"
	case BlockTypeCode:
		return "Code"
	case BlockTypeVisualization:
		return "Visualization"
	case BlockTypeInput:
		return "Input"
	case BlockTypeDropdownInput:
		return "Dropdown"
	case BlockTypeDateInput:
		return "Date"
	case BlockTypeFileUpload:
		return "Files"
	case BlockTypeDashboardHeader:
		return "Dashboard Header"
	case BlockTypeWriteback:
		return "Writeback"
	case BlockTypePivotTable:
		return "Pivot Table"
	default:
		return "Block"
	}
}

// ExecStatus is the coarse execution state observed on a tab. Run semantics
// live outside the layout engine; the status is carried for display only.
type ExecStatus string

const (
	StatusIdle     ExecStatus = "idle"
	StatusEnqueued ExecStatus = "enqueued"
	StatusRunning  ExecStatus = "running"
	StatusError    ExecStatus = "error"
)

// Block is the atomic content unit. The payload is type-specific and opaque
// to the layout engine; per-block-type editing semantics are an external
// collaborator's concern.
type Block struct {
	ID      BlockID         `json:"id"`
	Type    BlockType       `json:"type"`
	Title   string          `json:"title,omitempty"`
	Status  ExecStatus      `json:"status,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Clone returns a deep copy of the block keeping the same identifier.
func (b Block) Clone() Block {
	cp := b
	if b.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), b.Payload...)
	}
	return cp
}

// DisplayTitle returns the explicit title or the type-derived pretty name.
func (b Block) DisplayTitle() string {
	if b.Title != "" {
		return b.Title
	}
	return PrettyTitle(b.Type)
}

// BlockSpec describes a block to create: its type plus type-specific
// construction parameters. The engine assigns the identifier.
type BlockSpec struct {
	Type    BlockType       `json:"type"`
	Title   string          `json:"title,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TabRef is one tab slot of a block group: a block reference plus the
// persisted per-tab flags.
type TabRef struct {
	BlockID             BlockID `json:"blockId"`
	IsCurrent           bool    `json:"isCurrent"`
	IsHiddenInPublished bool    `json:"isHiddenInPublished,omitempty"`
}

// BlockGroup is a positional slot in document order owning an ordered,
// non-empty (while live) sequence of tab references.
type BlockGroup struct {
	ID   GroupID  `json:"id"`
	Tabs []TabRef `json:"tabs"`
}

// Clone returns a deep copy of the group record.
func (g BlockGroup) Clone() BlockGroup {
	cp := g
	cp.Tabs = append([]TabRef(nil), g.Tabs...)
	return cp
}

// TabIndex returns the index of the tab referencing id, or -1.
func (g BlockGroup) TabIndex(id BlockID) int {
	for i, t := range g.Tabs {
		if t.BlockID == id {
			return i
		}
	}
	return -1
}

// DashboardItem places one block on a dashboard.
type DashboardItem struct {
	ID      string  `json:"id"`
	BlockID BlockID `json:"blockId"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	W       int     `json:"w"`
	H       int     `json:"h"`
}

// Dashboard is a published arrangement of blocks. The layout engine never
// mutates dashboards; it only consults them for removal conflicts.
type Dashboard struct {
	ID    string          `json:"id"`
	Title string          `json:"title,omitempty"`
	Items []DashboardItem `json:"items"`
}

// Document is the durable representation: the block mapping, the layout
// sequence and any dashboards built on top of the blocks.
type Document struct {
	ID         string            `json:"id"`
	Title      string            `json:"title,omitempty"`
	Version    int               `json:"version"`
	Blocks     map[BlockID]Block `json:"blocks"`
	Layout     []BlockGroup      `json:"layout"`
	Dashboards []Dashboard       `json:"dashboards,omitempty"`
}

// NewDocument returns an empty document with a fresh identifier.
func NewDocument(title string) *Document {
	return &Document{
		ID:      uuid.NewString(),
		Title:   title,
		Version: 1,
		Blocks:  map[BlockID]Block{},
		Layout:  []BlockGroup{},
	}
}
