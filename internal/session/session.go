/*
 * Copyright (c) 2025 Briefer contributors.
 * Licensed under the Apache License, Version 2.0.
 */

// Package session ties one open document to the pieces that operate on it:
// the layout engine, the in-memory history trail and the embedded index.
// Every committed structural operation is captured into history and emitted
// as an opt-in telemetry event through the engine's observer hook.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Abbh1/briefer/internal/config"
	"github.com/Abbh1/briefer/internal/domain"
	"github.com/Abbh1/briefer/internal/history"
	"github.com/Abbh1/briefer/internal/layout"
	applog "github.com/Abbh1/briefer/internal/log"
	"github.com/Abbh1/briefer/internal/storage"
	"github.com/Abbh1/briefer/internal/telemetry"
)

// Session is one open document plus its engine and history trail.
type Session struct {
	cfg    config.AppConfig
	dh     *storage.DocumentHandle
	engine *layout.Engine
	hist   *history.Manager
	log    *slog.Logger
}

// Open loads the document at root and wires a session around it.
func Open(root string, cfg config.AppConfig) (*Session, error) {
	dh, err := storage.Open(root)
	if err != nil {
		return nil, err
	}
	return New(dh, cfg), nil
}

// New wires a session around an already-open document handle. History caps
// come from the Document config section; dashboard conflict lookups go
// through the document's embedded index.
func New(dh *storage.DocumentHandle, cfg config.AppConfig) *Session {
	s := &Session{cfg: cfg, dh: dh, log: applog.WithComponent("session")}
	s.hist = history.NewManager(history.Config{
		MaxBytes:    cfg.Document.HistoryMaxBytes,
		MaxPerDoc:   cfg.Document.SnapshotKeep,
		MinInterval: time.Duration(cfg.Document.HistoryMinIntervalMs) * time.Millisecond,
	})
	opts := []layout.Option{
		layout.WithDashboardRef(&storage.IndexDashboards{Root: dh.Root}),
		layout.WithObserver(s.afterOp),
	}
	if cfg.General.StrictInvariants {
		opts = append(opts, layout.WithStrictInvariants())
	}
	s.engine = layout.New(layout.NewDocStore(&dh.Document), opts...)
	return s
}

func (s *Session) afterOp(op string) {
	if err := s.hist.Capture(&s.dh.Document); err != nil {
		s.log.Warn("history capture", slog.String("op", op), slog.Any("err", err))
	}
	telemetry.Event("layout_changed", map[string]any{"op": op})
}

// Engine returns the layout engine bound to this session's document.
func (s *Session) Engine() *layout.Engine { return s.engine }

// Document returns the live document.
func (s *Session) Document() *domain.Document { return &s.dh.Document }

// Handle returns the underlying storage handle.
func (s *Session) Handle() *storage.DocumentHandle { return s.dh }

// Undo restores the document to the previous captured snapshot.
func (s *Session) Undo() (bool, error) { return s.hist.UndoInto(&s.dh.Document) }

// Redo re-applies a snapshot undone by Undo.
func (s *Session) Redo() (bool, error) { return s.hist.RedoInto(&s.dh.Document) }

// StructuralState serializes the blocks+layout pair, the unit that history
// snapshots, index snapshot rows and backend sync all exchange.
func (s *Session) StructuralState() ([]byte, error) {
	return json.Marshal(struct {
		Blocks map[domain.BlockID]domain.Block `json:"blocks"`
		Layout []domain.BlockGroup             `json:"layout"`
	}{Blocks: s.dh.Document.Blocks, Layout: s.dh.Document.Layout})
}

// Save persists the manifest, records a layout snapshot row in the embedded
// index (pruned to the configured retention) and refreshes the block index.
func (s *Session) Save(ctx context.Context) error {
	if err := storage.Save(s.dh); err != nil {
		return err
	}
	state, err := s.StructuralState()
	if err != nil {
		return err
	}
	if err := storage.SaveSnapshot(ctx, s.dh, state, time.Now()); err != nil {
		return err
	}
	if keep := s.cfg.Document.SnapshotKeep; keep > 0 {
		if _, err := storage.PruneOldSnapshots(ctx, s.dh, keep); err != nil {
			s.log.Warn("snapshot prune", slog.Any("err", err))
		}
	}
	return storage.UpdateIndex(ctx, s.dh.Root, s.dh.Document)
}
