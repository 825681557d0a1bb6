/*
 * Copyright (c) 2025 Briefer contributors.
 * Licensed under the Apache License, Version 2.0.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the sync backend API.
// It supports the operations used by the desktop app under a feature flag.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// DocumentSummary is a minimal projection for listing.
type DocumentSummary struct {
	ID        int64     `json:"id"`
	StableID  string    `json:"stable_id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// ListDocuments returns the documents known to the server.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	var list []DocumentSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SnapshotEnvelope matches the server response for the latest snapshot of a document.
type SnapshotEnvelope struct {
	DocumentID int64           `json:"document_id"`
	Version    int64           `json:"version"`
	CreatedAt  string          `json:"created_at"`
	Snapshot   json.RawMessage `json:"snapshot"`
}

// GetSnapshot fetches the latest structural snapshot for a document.
func (c *Client) GetSnapshot(ctx context.Context, documentID int64) (*SnapshotEnvelope, error) {
	var env SnapshotEnvelope
	path := fmt.Sprintf("/api/documents/%d/snapshot", documentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// PushSnapshot uploads a structural snapshot for a document.
func (c *Client) PushSnapshot(ctx context.Context, documentID int64, version int64, snapshot json.RawMessage) error {
	body, err := json.Marshal(map[string]any{
		"version":  version,
		"snapshot": snapshot,
	})
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/documents/%d/snapshot", documentID)
	return c.doJSON(ctx, http.MethodPost, path, bytes.NewReader(body), nil)
}
