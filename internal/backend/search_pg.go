/*
 * Copyright (c) 2025 Briefer contributors.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Abbh1/briefer/internal/domain"
	"github.com/Abbh1/briefer/internal/storage"
)

// SearchPG executes a search over the Postgres blocks table using tsvector and filters
// and returns results mapped to storage.SearchResult to ease parity checks with the
// embedded SQLite index.
func SearchPG(ctx context.Context, db *sql.DB, documentID int64, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		b.WriteString("SELECT b.block_id, b.group_id, b.tab_index, b.block_type, b.title, ")
		b.WriteString("COALESCE(ts_headline('simple', COALESCE(b.raw_text,''), plainto_tsquery('simple', $1), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') AS snippet ")
		b.WriteString("FROM blocks b WHERE b.document_id = $2 AND b.search_vector @@ plainto_tsquery('simple', $1) ")
		args = append(args, q.Text, documentID)
	} else {
		b.WriteString("SELECT b.block_id, b.group_id, b.tab_index, b.block_type, b.title, '' AS snippet ")
		b.WriteString("FROM blocks b WHERE b.document_id = $1 ")
		args = append(args, documentID)
	}

	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		b.WriteString(" AND b.block_type = ANY (" + place(types) + ") ")
	}
	if g := strings.TrimSpace(string(q.GroupID)); g != "" {
		b.WriteString(" AND b.group_id = " + place(g) + " ")
	}

	// Order matches the embedded index so both sides paginate identically.
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY b.group_id, b.tab_index, b.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var (
			r   storage.SearchResult
			bid string
			gid string
			typ string
		)
		if err := rows.Scan(&bid, &gid, &r.TabIndex, &typ, &r.Title, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.BlockID = domain.BlockID(bid)
		r.GroupID = domain.GroupID(gid)
		r.Type = domain.BlockType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SyncBlocks replaces the server-side block rows for a document with the flattened
// layout of the given document, in layout order. It is the Postgres counterpart of
// the embedded index rebuild.
func SyncBlocks(ctx context.Context, db *sql.DB, documentID int64, doc domain.Document) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clear blocks: %w", err)
	}
	for _, g := range doc.Layout {
		for ti, tab := range g.Tabs {
			blk, ok := doc.Blocks[tab.BlockID]
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO blocks(document_id, block_id, group_id, tab_index, block_type, title, raw_text) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				documentID, string(blk.ID), string(g.ID), ti, string(blk.Type), blk.Title, storage.BlockText(blk)); err != nil {
				return fmt.Errorf("insert block %s: %w", blk.ID, err)
			}
		}
	}
	return tx.Commit()
}
