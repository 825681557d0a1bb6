/*
 * Copyright (c) 2025 Briefer contributors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Abbh1/briefer/internal/domain"
	"github.com/Abbh1/briefer/internal/layout"
)

// testDocument builds a small document with two groups, one of them
// multi-tab, using the engine so the structure is valid by construction.
func testDocument(t *testing.T, title string) domain.Document {
	t.Helper()
	doc := domain.NewDocument(title)
	e := layout.New(layout.NewDocStore(doc), layout.WithStrictInvariants())
	b1 := e.AddBlockGroup(0, domain.BlockSpec{
		Type:    domain.BlockTypeSQL,
		Title:   "revenue",
		Payload: json.RawMessage(`{"query":"select sum(amount) from orders"}`),
	})
	g := doc.Layout[0]
	e.AddGroupedBlock(g.ID, b1, domain.BlockSpec{
		Type:    domain.BlockTypeVisualization,
		Title:   "revenue chart",
		Payload: json.RawMessage(`{"chartType":"line"}`),
	}, layout.After)
	e.AddBlockGroup(1, domain.BlockSpec{
		Type:    domain.BlockTypeRichText,
		Payload: json.RawMessage(`{"content":"quarterly numbers look healthy"}`),
	})
	return *doc
}

func TestInitDocumentScaffoldsAndSaves(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "Init Test"))
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}
	for _, d := range standardSubDirs {
		if st, err := os.Stat(filepath.Join(root, d)); err != nil || !st.IsDir() {
			t.Fatalf("expected subdir %s: %v", d, err)
		}
	}
	if _, err := os.Stat(dh.ManifestPath); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	doc := testDocument(t, "Round Trip")
	if _, err := InitDocument(root, doc); err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if opened.Document.Title != doc.Title {
		t.Fatalf("opened title mismatch: got %q want %q", opened.Document.Title, doc.Title)
	}
	if len(opened.Document.Layout) != len(doc.Layout) {
		t.Fatalf("layout length mismatch: got %d want %d", len(opened.Document.Layout), len(doc.Layout))
	}
	if len(opened.Document.Blocks) != len(doc.Blocks) {
		t.Fatalf("blocks mismatch: got %d want %d", len(opened.Document.Blocks), len(doc.Blocks))
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "Backup Test"))
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}
	dh.Document.Title = "Backup Test v2"
	if err := Save(dh); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	found := false
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), ManifestFileName+".") && strings.HasSuffix(e.Name(), ".bak") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a timestamped backup in %s", BackupsDirName)
	}
}

func TestOpenFallsBackToBackupOnCorruptManifest(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "Corrupt Manifest"))
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}
	// Save twice so a backup of the good manifest exists
	if err := Save(dh); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(dh.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open should fall back to backup: %v", err)
	}
	if opened.Document.Title != "Corrupt Manifest" {
		t.Fatalf("recovered title = %q", opened.Document.Title)
	}
}

func TestOpenMissingManifestNoBackupFails(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected error opening empty directory")
	}
}

func TestSaveAsMovesHandle(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "SaveAs"))
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}
	newRoot := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(dh, newRoot); err != nil {
		t.Fatalf("SaveAs error: %v", err)
	}
	if dh.Root != newRoot {
		t.Fatalf("handle root not updated: %s", dh.Root)
	}
	if _, err := os.Stat(filepath.Join(newRoot, ManifestFileName)); err != nil {
		t.Fatalf("manifest missing at new root: %v", err)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "Crash Snapshot"))
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}
	path, err := AutosaveCrashSnapshot(dh)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot file does not exist: %v", err)
	}
	// canonical manifest stays untouched by the autosave path
	b, err := os.ReadFile(dh.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got domain.Document
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("manifest no longer parses: %v", err)
	}
}
