/*
 * Copyright (c) 2025 Briefer contributors.
 * Licensed under the Apache License, Version 2.0.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Abbh1/briefer/internal/backend"
	"github.com/Abbh1/briefer/internal/config"
	"github.com/Abbh1/briefer/internal/crash"
	"github.com/Abbh1/briefer/internal/domain"
	applog "github.com/Abbh1/briefer/internal/log"
	"github.com/Abbh1/briefer/internal/session"
	"github.com/Abbh1/briefer/internal/storage"
	"github.com/Abbh1/briefer/internal/telemetry"
	"github.com/Abbh1/briefer/internal/version"
)

func usage() {
	fmt.Println("Briefer layout engine")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  briefer version|-v|--version               Show version")
	fmt.Println("  briefer init <dir> <title>                 Create a new document workspace at <dir>")
	fmt.Println("  briefer open <dir>                         Open document at <dir> and print a summary")
	fmt.Println("  briefer save <dir>                         Save document at <dir> (creates backup)")
	fmt.Println("  briefer search <dir> <query>               Full-text search over the document's blocks")
	fmt.Println("  briefer list                               List documents on the sync backend")
	fmt.Println("  briefer push <dir> <server-id>             Upload the document's structural snapshot")
	fmt.Println("  briefer pull <dir> <server-id>             Apply the latest server snapshot to the document")
	fmt.Println("  briefer serve                              Run the sync backend server")
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var dh *storage.DocumentHandle
	defer func() { crash.Recover(dh) }()

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load", slog.Any("err", err))
	}
	if cfg.General.TelemetryOptIn {
		telemetry.InitDefault()
	}

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("Briefer layout engine")
			fmt.Println(version.String())
			return
		case "init":
			if len(args) < 4 {
				fmt.Println("init requires <dir> and <title>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			title := args[3]
			abs, _ := filepath.Abs(dir)
			l.Info("init document", slog.String("root", abs), slog.String("title", title))
			doc := domain.NewDocument(title)
			h, err := storage.InitDocument(abs, *doc)
			if err != nil {
				l.Error("init failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = h
			telemetry.Event("document_created", nil)
			fmt.Println("Created document at", abs)
			return
		case "open":
			if len(args) < 3 {
				fmt.Println("open requires <dir>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			abs, _ := filepath.Abs(dir)
			l.Info("open document", slog.String("root", abs))
			s, err := session.Open(abs, cfg)
			if err != nil {
				l.Error("open failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = s.Handle()
			doc := s.Document()
			fmt.Printf("Opened document: %s\n", doc.Title)
			fmt.Printf("Blocks: %d  Groups: %d  Version: %d\n", len(doc.Blocks), len(doc.Layout), doc.Version)
			fmt.Println("Root:", dh.Root)
			return
		case "save":
			if len(args) < 3 {
				fmt.Println("save requires <dir>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			abs, _ := filepath.Abs(dir)
			l.Info("save document", slog.String("root", abs))
			s, err := session.Open(abs, cfg)
			if err != nil {
				l.Error("open before save failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = s.Handle()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Save(ctx); err != nil {
				l.Error("save failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Saved document, recorded a layout snapshot and refreshed the index.")
			return
		case "search":
			if len(args) < 4 {
				fmt.Println("search requires <dir> and <query>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			query := strings.Join(args[3:], " ")
			abs, _ := filepath.Abs(dir)
			h, err := storage.Open(abs)
			if err != nil {
				l.Error("open before search failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = h
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := storage.BuildIndexIfEmpty(ctx, abs, h.Document); err != nil {
				l.Warn("index build", slog.Any("err", err))
			}
			results, err := storage.Search(ctx, abs, storage.SearchQuery{Text: query})
			if err != nil {
				l.Error("search failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			for _, r := range results {
				line, _ := json.Marshal(r)
				fmt.Println(string(line))
			}
			fmt.Printf("%d result(s)\n", len(results))
			return
		case "list":
			c := backend.NewClient(cfg.Backend.BaseURL, token)
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Backend.TimeoutMs)*time.Millisecond)
			defer cancel()
			docs, err := c.ListDocuments(ctx)
			if err != nil {
				l.Error("list failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			for _, d := range docs {
				fmt.Printf("%d\t%s\tv%d\t%s\n", d.ID, d.Name, d.Version, d.StableID)
			}
			fmt.Printf("%d document(s)\n", len(docs))
			return
		case "push":
			if len(args) < 4 {
				fmt.Println("push requires <dir> and <server-id>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			id, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				fmt.Println("invalid server id:", args[3])
				os.Exit(2)
			}
			s, err := session.Open(abs, cfg)
			if err != nil {
				l.Error("open before push failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = s.Handle()
			state, err := s.StructuralState()
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			c := backend.NewClient(cfg.Backend.BaseURL, token)
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Backend.TimeoutMs)*time.Millisecond)
			defer cancel()
			if err := c.PushSnapshot(ctx, id, int64(s.Document().Version), state); err != nil {
				l.Error("push failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Printf("Pushed snapshot v%d to document %d\n", s.Document().Version, id)
			return
		case "pull":
			if len(args) < 4 {
				fmt.Println("pull requires <dir> and <server-id>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			id, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				fmt.Println("invalid server id:", args[3])
				os.Exit(2)
			}
			s, err := session.Open(abs, cfg)
			if err != nil {
				l.Error("open before pull failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = s.Handle()
			c := backend.NewClient(cfg.Backend.BaseURL, token)
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Backend.TimeoutMs)*time.Millisecond)
			defer cancel()
			env, err := c.GetSnapshot(ctx, id)
			if err != nil {
				l.Error("pull failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			var state struct {
				Blocks map[domain.BlockID]domain.Block `json:"blocks"`
				Layout []domain.BlockGroup             `json:"layout"`
			}
			if err := json.Unmarshal(env.Snapshot, &state); err != nil {
				l.Error("snapshot decode failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			doc := s.Document()
			doc.Blocks = state.Blocks
			doc.Layout = state.Layout
			if env.Version > 0 {
				doc.Version = int(env.Version)
			}
			if err := s.Engine().Validate(); err != nil {
				l.Error("pulled snapshot invalid", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			if err := s.Save(ctx); err != nil {
				l.Error("save after pull failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Printf("Applied server snapshot v%d to %s\n", env.Version, abs)
			return
		case "serve":
			l.Info("starting sync backend server")
			if err := backend.Start(); err != nil {
				l.Error("server exited", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}
