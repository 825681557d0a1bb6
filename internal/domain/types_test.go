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

import (
	"encoding/json"
	"testing"
)

func TestPrettyTitleCoversAllTypes(t *testing.T) {
	for _, bt := range BlockTypes {
		if PrettyTitle(bt) == "" || PrettyTitle(bt) == "Block" {
			t.Fatalf("no pretty title for %q", bt)
		}
	}
	if PrettyTitle(BlockType("nope")) != "Block" {
		t.Fatalf("unknown type should fall back to generic title")
	}
}

func TestBlockDisplayTitleFallback(t *testing.T) {
	b := Block{ID: NewBlockID(), Type: BlockTypeSQL}
	if b.DisplayTitle() != "SQL" {
		t.Fatalf("expected type-derived title, got %q", b.DisplayTitle())
	}
	b.Title = "Revenue query"
	if b.DisplayTitle() != "Revenue query" {
		t.Fatalf("explicit title must win, got %q", b.DisplayTitle())
	}
}

func TestBlockCloneIsDeep(t *testing.T) {
	b := Block{ID: NewBlockID(), Type: BlockTypeCode, Payload: json.RawMessage(`{"source":"print(1)"}`)}
	cp := b.Clone()
	cp.Payload[2] = 'X'
	if string(b.Payload) != `{"source":"print(1)"}` {
		t.Fatalf("clone shares payload storage with original")
	}
}

func TestGroupCloneAndTabIndex(t *testing.T) {
	g := BlockGroup{ID: NewGroupID(), Tabs: []TabRef{
		{BlockID: "b1", IsCurrent: true},
		{BlockID: "b2"},
	}}
	if g.TabIndex("b2") != 1 {
		t.Fatalf("TabIndex(b2) = %d", g.TabIndex("b2"))
	}
	if g.TabIndex("missing") != -1 {
		t.Fatalf("TabIndex(missing) should be -1")
	}
	cp := g.Clone()
	cp.Tabs[0].IsCurrent = false
	if !g.Tabs[0].IsCurrent {
		t.Fatalf("clone shares tab storage with original")
	}
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	doc := NewDocument("Q3 report")
	b := Block{ID: NewBlockID(), Type: BlockTypeRichText, Payload: json.RawMessage(`{"markdown":"# hi"}`)}
	doc.Blocks[b.ID] = b
	doc.Layout = append(doc.Layout, BlockGroup{ID: NewGroupID(), Tabs: []TabRef{{BlockID: b.ID, IsCurrent: true}}})
	doc.Dashboards = []Dashboard{{ID: "d1", Items: []DashboardItem{{ID: "w1", BlockID: b.ID, W: 4, H: 2}}}}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Layout) != 1 || got.Layout[0].Tabs[0].BlockID != b.ID {
		t.Fatalf("layout lost in round trip: %+v", got.Layout)
	}
	if got.Dashboards[0].Items[0].BlockID != b.ID {
		t.Fatalf("dashboard lost in round trip")
	}
	if _, ok := got.Blocks[b.ID]; !ok {
		t.Fatalf("blocks lost in round trip")
	}
}
