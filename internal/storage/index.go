/*
 * Copyright (c) 2025 Briefer contributors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Abbh1/briefer/internal/domain"
	applog "github.com/Abbh1/briefer/internal/log"
	"github.com/Abbh1/briefer/internal/version"
	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-document ephemeral/index data under the document root.
	IndexDirName  = ".briefer"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the document's embedded index database file.
func IndexPath(docRoot string) string {
	return filepath.Join(docRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-document SQLite index exists at
// .briefer/index.sqlite, opens the database, enables WAL mode, and ensures
// the meta/version tables exist. The returned *sql.DB is ready for use.
// Callers may close it when no longer needed.
func InitOrOpenIndex(docRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", docRoot),
	)
	if strings.TrimSpace(docRoot) == "" {
		return nil, errors.New("document root is required")
	}
	if err := os.MkdirAll(filepath.Join(docRoot, IndexDirName), 0o755); err != nil {
		l.Error("create .briefer dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .briefer dir: %w", err)
	}

	path := IndexPath(docRoot)
	// Use a URI with shared cache and a busy timeout. Convert to forward slashes for SQLite URI.
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Conservative pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Speed up the dashboard conflict lookup and snapshot pruning
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_dashboard_refs_block ON dashboard_refs(block_id);`,
				`CREATE INDEX IF NOT EXISTS idx_blocks_group ON blocks(group_id);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort FTS optimize (outside the tx)
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_blocks(fts_blocks) VALUES('optimize')`); err != nil {
				// ignore; optimize is advisory
			}
		default:
			// Unknown future step; break
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// Core blocks table: one row per tab, in layout order.
		`CREATE TABLE IF NOT EXISTS blocks (
			id        INTEGER PRIMARY KEY,
			block_id  TEXT    NOT NULL UNIQUE,
			group_id  TEXT    NOT NULL,
			tab_index INTEGER NOT NULL,
			type      TEXT    NOT NULL,
			title     TEXT,
			text      TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_group ON blocks(group_id);`,

		// Contentless FTS5 index fed from blocks via triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_blocks USING fts5(
			text,
			content='',
			tokenize = 'unicode61'
		);`,

		// Dashboard item references, for conflict lookups without loading the manifest.
		`CREATE TABLE IF NOT EXISTS dashboard_refs (
			dashboard_id TEXT NOT NULL,
			item_id      TEXT NOT NULL,
			block_id     TEXT NOT NULL,
			PRIMARY KEY(dashboard_id, item_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dashboard_refs_block ON dashboard_refs(block_id);`,

		// Snapshots (history of structural changes per document)
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY,
			doc_id     TEXT    NOT NULL,
			ts         TEXT    NOT NULL,
			state_blob BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_doc_ts ON snapshots(doc_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	// Triggers for contentless FTS synchronization with blocks.text
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS blocks_ai AFTER INSERT ON blocks BEGIN
			INSERT INTO fts_blocks(rowid, text) VALUES (new.id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS blocks_ad AFTER DELETE ON blocks BEGIN
			INSERT INTO fts_blocks(fts_blocks, rowid, text) VALUES ('delete', old.id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS blocks_au AFTER UPDATE OF text ON blocks BEGIN
			INSERT INTO fts_blocks(fts_blocks, rowid, text) VALUES ('delete', old.id, old.text);
			INSERT INTO fts_blocks(rowid, text) VALUES (new.id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds
// the index if needed. It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, docRoot string, doc domain.Document) (bool, error) {
	path := IndexPath(docRoot)
	db, err := InitOrOpenIndex(docRoot)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, docRoot, doc); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM blocks LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	_ = os.Remove(path)
	if err := RebuildIndex(ctx, docRoot, doc); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .briefer/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// BuildIndexIfEmpty ensures the DB exists and, if the blocks table is empty,
// populates it from the given document.
func BuildIndexIfEmpty(ctx context.Context, docRoot string, doc domain.Document) error {
	db, err := InitOrOpenIndex(docRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocks;").Scan(&cnt); err != nil {
		return fmt.Errorf("check blocks count: %w", err)
	}
	if cnt > 0 {
		return nil // already built
	}
	return rebuildBlocksFromDocument(ctx, db, doc)
}

// UpdateIndex updates the embedded index with changes from the document.
// Minimal safe implementation: replace the indexed content wholesale.
func UpdateIndex(ctx context.Context, docRoot string, doc domain.Document) error {
	db, err := InitOrOpenIndex(docRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildBlocksFromDocument(ctx, db, doc)
}

// RebuildIndex drops and recreates core index tables and rebuilds content
// from the document. It preserves meta/version and snapshots; the rest of
// the index is derived from document.json and safe to discard.
func RebuildIndex(ctx context.Context, docRoot string, doc domain.Document) error {
	db, err := InitOrOpenIndex(docRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS dashboard_refs;",
		"DROP TRIGGER IF EXISTS blocks_ai;",
		"DROP TRIGGER IF EXISTS blocks_ad;",
		"DROP TRIGGER IF EXISTS blocks_au;",
		"DROP TABLE IF EXISTS blocks;",
		"DROP TABLE IF EXISTS fts_blocks;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildBlocksFromDocument(ctx, db, doc)
}

// BlockText flattens the searchable text of a block: its title plus every
// string value found at the top level of the payload (query text, markdown
// content, labels). Payload schemas differ per block type and stay opaque
// beyond that.
func BlockText(b domain.Block) string {
	parts := make([]string, 0, 4)
	if s := strings.TrimSpace(b.Title); s != "" {
		parts = append(parts, s)
	}
	if len(b.Payload) > 0 {
		var m map[string]any
		if err := json.Unmarshal(b.Payload, &m); err == nil {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if s, ok := m[k].(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						parts = append(parts, s)
					}
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

// rebuildBlocksFromDocument replaces the blocks and dashboard_refs content
// from the given document, walking groups in layout order.
func rebuildBlocksFromDocument(ctx context.Context, db *sql.DB, doc domain.Document) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM blocks;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear blocks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dashboard_refs;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear dashboard_refs: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO blocks(block_id, group_id, tab_index, type, title, text) VALUES(?,?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, g := range doc.Layout {
		for ti, tab := range g.Tabs {
			b, ok := doc.Blocks[tab.BlockID]
			if !ok {
				continue
			}
			if _, err := ins.ExecContext(ctx, string(b.ID), string(g.ID), ti, string(b.Type), b.Title, BlockText(b)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert block: %w", err)
			}
		}
	}
	insRef, err := tx.PrepareContext(ctx, "INSERT INTO dashboard_refs(dashboard_id, item_id, block_id) VALUES(?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare ref insert: %w", err)
	}
	defer insRef.Close()
	for _, dash := range doc.Dashboards {
		for _, item := range dash.Items {
			if _, err := insRef.ExecContext(ctx, dash.ID, item.ID, string(item.BlockID)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert dashboard ref: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
