/*
 * Copyright (c) 2025 Briefer contributors.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Abbh1/briefer/internal/domain"
	"github.com/Abbh1/briefer/internal/layout"
)

// SearchQuery describes the in-document search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Filters are optional. Types can restrict matches to block kinds like sql,
// richText or visualization. GroupID restricts matches to one block group.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text    string
	Types   []domain.BlockType
	GroupID domain.GroupID
	Limit   int
	Offset  int
}

// SearchResult represents a single match row.
// Snippet is an optional highlighted excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	BlockID  domain.BlockID
	GroupID  domain.GroupID
	TabIndex int
	Type     domain.BlockType
	Title    string
	Snippet  string
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a non-FTS scan over blocks with filters applied.
func Search(ctx context.Context, docRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(docRoot) == "" {
		return nil, errors.New("document root is required")
	}
	db, err := InitOrOpenIndex(docRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT b.block_id, b.group_id, b.tab_index, b.type, COALESCE(b.title,''), snippet(fts_blocks, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_blocks JOIN blocks b ON fts_blocks.rowid = b.id\n")
		sb.WriteString("WHERE fts_blocks MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT b.block_id, b.group_id, b.tab_index, b.type, COALESCE(b.title,''), ''\n")
		sb.WriteString("FROM blocks b\nWHERE 1=1\n")
	}
	if len(q.Types) > 0 {
		sb.WriteString(" AND b.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, string(t))
		}
	}
	if g := strings.TrimSpace(string(q.GroupID)); g != "" {
		sb.WriteString(" AND b.group_id = ?\n")
		args = append(args, g)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY b.group_id, b.tab_index, b.id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var blockID, groupID, typ string
		var sn sql.NullString
		if err := rows.Scan(&blockID, &groupID, &r.TabIndex, &typ, &r.Title, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.BlockID = domain.BlockID(blockID)
		r.GroupID = domain.GroupID(groupID)
		r.Type = domain.BlockType(typ)
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// IndexDashboards answers dashboard conflict lookups from the embedded
// index instead of the in-memory manifest. It satisfies the layout engine's
// dashboard reference interface, so removals can run against a document
// whose dashboards were indexed earlier.
type IndexDashboards struct {
	Root string
}

// FindConflicts returns every indexed dashboard item referencing one of the
// given blocks. Lookup failures degrade to no conflicts; the index is a
// cache, not the source of truth.
func (d *IndexDashboards) FindConflicts(blockIDs map[domain.BlockID]struct{}) []layout.ConflictRef {
	if len(blockIDs) == 0 {
		return nil
	}
	db, err := InitOrOpenIndex(d.Root)
	if err != nil {
		return nil
	}
	defer db.Close()
	ids := make([]any, 0, len(blockIDs))
	for id := range blockIDs {
		ids = append(ids, string(id))
	}
	q := `SELECT dashboard_id, item_id, block_id FROM dashboard_refs WHERE block_id IN (` + placeholders(len(ids)) + `) ORDER BY dashboard_id, item_id`
	rows, err := db.QueryContext(context.Background(), q, ids...)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []layout.ConflictRef
	for rows.Next() {
		var c layout.ConflictRef
		var blockID string
		if err := rows.Scan(&c.DashboardID, &c.ItemID, &blockID); err != nil {
			return out
		}
		c.BlockID = domain.BlockID(blockID)
		out = append(out, c)
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
