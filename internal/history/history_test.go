/*
 * Copyright (c) 2025 Briefer contributors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import (
	"testing"
	"time"

	"github.com/Abbh1/briefer/internal/domain"
	"github.com/Abbh1/briefer/internal/layout"
)

func TestPushUndoRedoRoundTrip(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MaxPerDoc: 10, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{DocID: "d1", Blob: []byte("one"), TS: t0})
	m.Push(Snapshot{DocID: "d1", Blob: []byte("two"), TS: t0.Add(time.Second)})

	s, ok := m.Undo("d1")
	if !ok || string(s.Blob) != "two" {
		t.Fatalf("undo = %q ok=%v", s.Blob, ok)
	}
	s, ok = m.Redo("d1")
	if !ok || string(s.Blob) != "two" {
		t.Fatalf("redo = %q ok=%v", s.Blob, ok)
	}
	if _, ok := m.Redo("d1"); ok {
		t.Fatalf("redo stack should be empty after redo")
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{DocID: "d1", Blob: []byte("one"), TS: t0})
	m.Push(Snapshot{DocID: "d1", Blob: []byte("two"), TS: t0.Add(time.Second)})
	if _, ok := m.Undo("d1"); !ok {
		t.Fatalf("undo failed")
	}
	m.Push(Snapshot{DocID: "d1", Blob: []byte("three"), TS: t0.Add(2 * time.Second)})
	if _, ok := m.Redo("d1"); ok {
		t.Fatalf("push must invalidate redo")
	}
}

func TestCoalescingWithinInterval(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Second})
	t0 := time.Now()
	m.Push(Snapshot{DocID: "d1", Blob: []byte("aaaa"), TS: t0})
	m.Push(Snapshot{DocID: "d1", Blob: []byte("bbbbbb"), TS: t0.Add(100 * time.Millisecond)})

	tb, _, total := m.Stats()
	if total != 1 {
		t.Fatalf("expected coalesced single snapshot, got %d", total)
	}
	if tb != 6 {
		t.Fatalf("accounting after coalesce = %d, want 6", tb)
	}
	s, ok := m.Undo("d1")
	if !ok || string(s.Blob) != "bbbbbb" {
		t.Fatalf("coalesced snapshot = %q", s.Blob)
	}
}

func TestPerDocDepthCap(t *testing.T) {
	m := NewManager(Config{MaxPerDoc: 2, MinInterval: time.Millisecond})
	t0 := time.Now()
	for i := 0; i < 5; i++ {
		m.Push(Snapshot{DocID: "d1", Blob: []byte{byte('a' + i)}, TS: t0.Add(time.Duration(i) * time.Second)})
	}
	_, _, total := m.Stats()
	if total != 2 {
		t.Fatalf("depth cap not enforced: %d snapshots", total)
	}
	s, _ := m.Undo("d1")
	if string(s.Blob) != "e" {
		t.Fatalf("newest snapshot lost: %q", s.Blob)
	}
}

func TestGlobalPruneAcrossDocuments(t *testing.T) {
	m := NewManager(Config{MaxBytes: 8, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{DocID: "old", Blob: []byte("xxxx"), TS: t0})
	m.Push(Snapshot{DocID: "new", Blob: []byte("yyyy"), TS: t0.Add(time.Second)})
	m.Push(Snapshot{DocID: "new", Blob: []byte("zzzz"), TS: t0.Add(2 * time.Second)})

	if _, ok := m.Undo("old"); ok {
		t.Fatalf("oldest document should have been pruned")
	}
	if _, ok := m.Undo("new"); !ok {
		t.Fatalf("newest document lost its snapshots")
	}
}

func TestClearResetsAccounting(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	m.Push(Snapshot{DocID: "d1", Blob: []byte("abcdef"), TS: time.Now()})
	tb, docs, total := m.Stats()
	if tb == 0 || docs != 1 || total != 1 {
		t.Fatalf("unexpected stats before clear: tb=%d docs=%d total=%d", tb, docs, total)
	}
	m.Clear("d1")
	tb, docs, total = m.Stats()
	if tb != 0 || docs != 0 || total != 0 {
		t.Fatalf("expected zeroed stats, got tb=%d docs=%d total=%d", tb, docs, total)
	}
}

func TestCaptureAndUndoIntoRestoreStructure(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Nanosecond})
	doc := domain.NewDocument("doc")
	e := layout.New(layout.NewDocStore(doc), layout.WithStrictInvariants())

	a := e.AddBlockGroup(0, domain.BlockSpec{Type: domain.BlockTypeRichText, Title: "a"})
	if err := m.Capture(doc); err != nil {
		t.Fatalf("capture: %v", err)
	}
	time.Sleep(time.Millisecond)

	e.AddBlockGroup(1, domain.BlockSpec{Type: domain.BlockTypeSQL, Title: "b"})
	if len(doc.Layout) != 2 {
		t.Fatalf("setup failed: %d groups", len(doc.Layout))
	}

	ok, err := m.UndoInto(doc)
	if err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	if len(doc.Layout) != 1 || doc.Layout[0].Tabs[0].BlockID != a {
		t.Fatalf("layout not restored: %+v", doc.Layout)
	}
	if len(doc.Blocks) != 1 {
		t.Fatalf("blocks not restored: %d", len(doc.Blocks))
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("restored document invalid: %v", err)
	}

	ok, err = m.RedoInto(doc)
	if err != nil || !ok {
		t.Fatalf("redo: ok=%v err=%v", ok, err)
	}
	if len(doc.Layout) != 2 {
		t.Fatalf("redo did not reapply: %d groups", len(doc.Layout))
	}
}

func TestEngineObserverDrivesCapture(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Nanosecond})
	doc := domain.NewDocument("doc")
	e := layout.New(layout.NewDocStore(doc), layout.WithStrictInvariants(),
		layout.WithObserver(func(op string) {
			if err := m.Capture(doc); err != nil {
				t.Errorf("capture after %s: %v", op, err)
			}
		}))

	e.AddBlockGroup(0, domain.BlockSpec{Type: domain.BlockTypeRichText, Title: "a"})
	time.Sleep(time.Millisecond)
	e.AddBlockGroup(1, domain.BlockSpec{Type: domain.BlockTypeSQL, Title: "b"})

	_, docs, snaps := m.Stats()
	if docs != 1 || snaps != 2 {
		t.Fatalf("expected 2 snapshots for one document, got docs=%d snaps=%d", docs, snaps)
	}

	// The top snapshot equals the live state (captured post-commit); the one
	// beneath it restores the single-group document.
	for i := 0; i < 2; i++ {
		ok, err := m.UndoInto(doc)
		if err != nil || !ok {
			t.Fatalf("undo %d: ok=%v err=%v", i, ok, err)
		}
	}
	if len(doc.Layout) != 1 {
		t.Fatalf("expected single-group state after unwinding, got %d groups", len(doc.Layout))
	}
}
