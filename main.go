// stir-tui - A terminal chat client for the GPTStir backend.
//
// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gptstir/stir-tui/internal/api"
	"github.com/gptstir/stir-tui/internal/auth"
	"github.com/gptstir/stir-tui/internal/chat"
	"github.com/gptstir/stir-tui/internal/config"
	"github.com/gptstir/stir-tui/internal/store"
	"github.com/gptstir/stir-tui/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default ~/.stir/config.toml)")
		serverURL  = flag.String("server", "", "backend server URL (overrides config)")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("stir-tui %s (%s)\n", Version, GitCommit)
		return
	}

	cfg, err := loadConfig(*configPath, *serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stir: %v\n", err)
		os.Exit(1)
	}
	config.SetGlobal(cfg)

	closeLog, err := setupLogging()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stir: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	log.Printf("stir-tui %s starting, server %s", Version, cfg.ServerURL)

	storagePath, err := cfg.StoragePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stir: %v\n", err)
		os.Exit(1)
	}
	creds, err := store.Open(storagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stir: failed to open credential store: %v\n", err)
		os.Exit(1)
	}
	defer creds.Close()

	// The client reads the token from the session, the session owns the
	// client: bind the token source late.
	var session *auth.Session
	client := api.NewClient(cfg.ServerURL, func() string {
		if session == nil {
			return ""
		}
		return session.Token()
	}).
		WithTimeout(cfg.RequestTimeout()).
		WithSendTimeout(cfg.SendTimeout())

	session = auth.New(client, creds).
		WithVerifyTimeout(cfg.VerifyTimeout()).
		WithLoginTimeout(cfg.LoginTimeout())
	client.OnAuthFailure(session.Invalidate)

	sync := chat.NewSync(client)
	flow := chat.NewFlow(client, sync)

	// Live-reload config edits. Only the global snapshot updates at
	// runtime; connection settings apply on next start.
	if path, err := config.ConfigPath(); err == nil {
		if watcher, err := config.NewWatcher(path, config.SetGlobal); err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	program := tea.NewProgram(ui.New(cfg, session, sync, flow), opts...)
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "stir: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path, serverURL string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupLogging sends the standard logger to ~/.stir/stir.log; stdout
// belongs to the TUI.
func setupLogging() (func(), error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "stir.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	return func() {
		log.SetOutput(io.Discard)
		f.Close()
	}, nil
}
