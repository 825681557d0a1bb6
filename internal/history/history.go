/*
 * Copyright (c) 2025 Briefer contributors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps an in-memory undo/redo stack of structural snapshots
// per document, with memory and depth safeguards so long editing sessions do
// not grow without bound.
package history

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Abbh1/briefer/internal/domain"
)

// Snapshot is a reversible structural state blob for one document. Blob
// content is opaque to the manager; size is estimated as len(Blob). TS is
// when the snapshot was captured.
type Snapshot struct {
	DocID string
	Blob  []byte
	TS    time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerDoc limits snapshots per document kept in memory (0 means unlimited).
	MaxPerDoc int
	// MinInterval coalesces snapshots captured within the interval for the
	// same document, replacing the previous one instead of pushing a new entry.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per document.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-document stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// structuralState is the serialized form of what a snapshot restores: the
// block contents and the grouping, but not the dashboards.
type structuralState struct {
	Blocks map[domain.BlockID]domain.Block `json:"blocks"`
	Layout []domain.BlockGroup             `json:"layout"`
}

// Capture serializes the document's blocks and layout and pushes the result
// as a snapshot.
func (m *Manager) Capture(doc *domain.Document) error {
	blob, err := json.Marshal(structuralState{Blocks: doc.Blocks, Layout: doc.Layout})
	if err != nil {
		return err
	}
	m.Push(Snapshot{DocID: doc.ID, Blob: blob, TS: time.Now()})
	return nil
}

// UndoInto applies the latest snapshot to the document. The document's
// pre-undo state is pushed onto the redo stack so RedoInto can reverse the
// operation. Returns false when there is nothing to undo.
func (m *Manager) UndoInto(doc *domain.Document) (bool, error) {
	cur, err := json.Marshal(structuralState{Blocks: doc.Blocks, Layout: doc.Layout})
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	stack := m.undo[doc.ID]
	if len(stack) == 0 {
		m.mu.Unlock()
		return false, nil
	}
	s := stack[len(stack)-1]
	m.undo[doc.ID] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[doc.ID] = append(m.redo[doc.ID], Snapshot{DocID: doc.ID, Blob: cur, TS: time.Now()})
	m.mu.Unlock()
	return true, applySnapshot(doc, s)
}

// RedoInto reverses the last UndoInto, pushing the pre-redo state back onto
// the undo stack.
func (m *Manager) RedoInto(doc *domain.Document) (bool, error) {
	cur, err := json.Marshal(structuralState{Blocks: doc.Blocks, Layout: doc.Layout})
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	r := m.redo[doc.ID]
	if len(r) == 0 {
		m.mu.Unlock()
		return false, nil
	}
	s := r[len(r)-1]
	m.redo[doc.ID] = r[:len(r)-1]
	m.undo[doc.ID] = append(m.undo[doc.ID], Snapshot{DocID: doc.ID, Blob: cur, TS: time.Now()})
	m.totalBytes += len(cur)
	m.enforceCapsLocked(doc.ID)
	m.mu.Unlock()
	return true, applySnapshot(doc, s)
}

func applySnapshot(doc *domain.Document, s Snapshot) error {
	var st structuralState
	if err := json.Unmarshal(s.Blob, &st); err != nil {
		return err
	}
	if st.Blocks == nil {
		st.Blocks = make(map[domain.BlockID]domain.Block)
	}
	doc.Blocks = st.Blocks
	doc.Layout = st.Layout
	doc.Version++
	return nil
}

// Push records a snapshot. If within MinInterval of the last snapshot for
// the same document it replaces that one. Any push clears the document's
// redo stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[s.DocID]
	if n := len(stack); n > 0 {
		last := stack[n-1]
		if s.TS.Sub(last.TS) < m.cfg.MinInterval {
			m.totalBytes -= len(last.Blob)
			m.totalBytes += len(s.Blob)
			stack[n-1] = s
			m.undo[s.DocID] = stack
			m.redo[s.DocID] = nil
			m.enforceCapsLocked(s.DocID)
			return
		}
	}
	stack = append(stack, s)
	m.undo[s.DocID] = stack
	m.totalBytes += len(s.Blob)
	m.redo[s.DocID] = nil
	m.enforceCapsLocked(s.DocID)
}

// Undo pops from the document's undo stack and pushes onto its redo stack.
func (m *Manager) Undo(docID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[docID]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[docID] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[docID] = append(m.redo[docID], s)
	return s, true
}

// Redo pops from redo and pushes back to undo.
func (m *Manager) Redo(docID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[docID]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[docID] = r[:len(r)-1]
	m.undo[docID] = append(m.undo[docID], s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(docID)
	return s, true
}

// Clear drops the undo/redo stacks for a document to free memory.
func (m *Manager) Clear(docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[docID] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.undo, docID)
	delete(m.redo, docID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, docs int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, docs, totalSnapshots
}

func (m *Manager) enforceCapsLocked(docID string) {
	// Per-document depth cap
	if m.cfg.MaxPerDoc > 0 {
		stack := m.undo[docID]
		if len(stack) > m.cfg.MaxPerDoc {
			toDrop := len(stack) - m.cfg.MaxPerDoc
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[docID] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all documents
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestDoc := ""
		oldestIdx := -1
		var oldestTS time.Time
		for id, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if oldestIdx == -1 || stack[0].TS.Before(oldestTS) {
				oldestDoc = id
				oldestIdx = 0
				oldestTS = stack[0].TS
			}
		}
		if oldestIdx == -1 {
			break
		}
		stack := m.undo[oldestDoc]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestDoc] = stack[1:]
		if len(m.undo[oldestDoc]) == 0 {
			delete(m.undo, oldestDoc)
		}
	}
}
