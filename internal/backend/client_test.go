/*
 * Copyright (c) 2025 Briefer contributors.
 * Licensed under the Apache License, Version 2.0.
 */

package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientListDocuments(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/documents" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, []DocumentSummary{
			{ID: 1, StableID: "doc-a", Name: "Q3 report", Version: 7, UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok123")
	list, err := c.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].StableID != "doc-a" || list[0].Version != 7 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestClientGetSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents/42/snapshot" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"document_id": 42,
			"version":     3,
			"created_at":  "2025-06-01T12:00:00Z",
			"snapshot":    map[string]any{"blocks": map[string]any{}, "layout": []any{}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	env, err := c.GetSnapshot(context.Background(), 42)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if env.DocumentID != 42 || env.Version != 3 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var snap map[string]json.RawMessage
	if err := json.Unmarshal(env.Snapshot, &snap); err != nil {
		t.Fatalf("snapshot not JSON: %v", err)
	}
	if _, ok := snap["layout"]; !ok {
		t.Fatalf("expected layout key in snapshot, got %s", env.Snapshot)
	}
}

func TestClientPushSnapshot(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/documents/7/snapshot" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotBody, _ = io.ReadAll(r.Body)
		writeJSON(w, http.StatusCreated, map[string]any{"document_id": 7, "version": 9})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	err := c.PushSnapshot(context.Background(), 7, 9, json.RawMessage(`{"layout":[]}`))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	var req struct {
		Version  int64           `json:"version"`
		Snapshot json.RawMessage `json:"snapshot"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("request body not JSON: %v", err)
	}
	if req.Version != 9 || string(req.Snapshot) != `{"layout":[]}` {
		t.Fatalf("unexpected request body: %s", gotBody)
	}
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, context.DeadlineExceeded)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.ListDocuments(context.Background()); err == nil {
		t.Fatalf("expected error on 401 response")
	}
}
