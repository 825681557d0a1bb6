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
	"context"
	"fmt"
	"testing"
	"time"
)

func TestSnapshotSaveAndGetLatest(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "Snapshots"))
	if err != nil {
		t.Fatalf("InitDocument: %v", err)
	}
	ctx := context.Background()
	t0 := time.Now()
	if err := SaveSnapshot(ctx, dh, []byte("state-1"), t0); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := SaveSnapshot(ctx, dh, []byte("state-2"), t0.Add(time.Second)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	blob, ts, err := GetLatestSnapshot(ctx, dh)
	if err != nil {
		t.Fatalf("GetLatestSnapshot: %v", err)
	}
	if string(blob) != "state-2" {
		t.Fatalf("latest blob = %q", blob)
	}
	if ts.IsZero() {
		t.Fatalf("expected parsed timestamp")
	}
}

func TestGetLatestSnapshotEmpty(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "Empty Snapshots"))
	if err != nil {
		t.Fatalf("InitDocument: %v", err)
	}
	blob, _, err := GetLatestSnapshot(context.Background(), dh)
	if err != nil {
		t.Fatalf("GetLatestSnapshot: %v", err)
	}
	if blob != nil {
		t.Fatalf("expected nil blob, got %q", blob)
	}
}

func TestListAndPruneSnapshots(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "Prune"))
	if err != nil {
		t.Fatalf("InitDocument: %v", err)
	}
	ctx := context.Background()
	t0 := time.Now()
	for i := 0; i < 5; i++ {
		blob := []byte(fmt.Sprintf("state-%d", i))
		if err := SaveSnapshot(ctx, dh, blob, t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	list, err := ListSnapshots(ctx, dh, 3)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("listed %d, want 3", len(list))
	}
	if string(list[0].Blob) != "state-4" {
		t.Fatalf("newest first expected, got %q", list[0].Blob)
	}

	n, err := PruneOldSnapshots(ctx, dh, 2)
	if err != nil {
		t.Fatalf("PruneOldSnapshots: %v", err)
	}
	if n != 3 {
		t.Fatalf("pruned %d, want 3", n)
	}
	list, err = ListSnapshots(ctx, dh, 10)
	if err != nil {
		t.Fatalf("ListSnapshots after prune: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("remaining %d, want 2", len(list))
	}
}

func TestSnapshotsAreScopedPerDocument(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, testDocument(t, "Doc A"))
	if err != nil {
		t.Fatalf("InitDocument: %v", err)
	}
	ctx := context.Background()
	if err := SaveSnapshot(ctx, dh, []byte("a-state"), time.Now()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	other := *dh
	other.Document.ID = "other-doc"
	blob, _, err := GetLatestSnapshot(ctx, &other)
	if err != nil {
		t.Fatalf("GetLatestSnapshot: %v", err)
	}
	if blob != nil {
		t.Fatalf("snapshots leaked across documents: %q", blob)
	}
}
