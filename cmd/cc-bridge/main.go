// Command cc-bridge is the bridge process entrypoint: it wires
// configuration, the metadata store, the Docker manager, the Claude
// executor, the message router, and frontend(s) together, then runs
// the supervisor until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cc-bridge/internal/bot"
	"cc-bridge/internal/bot/stdinfrontend"
	"cc-bridge/internal/bot/telegramfrontend"
	"cc-bridge/internal/config"
	"cc-bridge/internal/dockerengine"
	"cc-bridge/internal/executor"
	"cc-bridge/internal/router"
	"cc-bridge/internal/sandbox"
	"cc-bridge/internal/store"
	"cc-bridge/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (missing file or empty path uses documented defaults)")
	dbPath := flag.String("db", "", "path to the metadata store database file (default: <data_dir>/cc-bridge.db)")
	buildContext := flag.String("build-context", "docker/sandbox", "build context directory used if the sandbox image is missing")
	dockerfile := flag.String("dockerfile", "Dockerfile", "dockerfile name (relative to build-context) used if the sandbox image is missing")
	stdin := flag.Bool("stdin", false, "enable the line-oriented stdin frontend")
	flag.Parse()

	if err := run(*configPath, *dbPath, *buildContext, *dockerfile, *stdin); err != nil {
		fmt.Fprintf(os.Stderr, "cc-bridge: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath, buildContext, dockerfile string, enableStdin bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	dataDir, err := config.ResolveDataDir(cfg.Docker.DataDir)
	if err != nil {
		return fmt.Errorf("resolving data_dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data_dir %s: %w", dataDir, err)
	}

	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "cc-bridge.db")
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	defer st.Close()

	engine, err := dockerengine.NewClient()
	if err != nil {
		return fmt.Errorf("connecting to the Docker engine: %w", err)
	}
	defer engine.Close()

	sb := sandbox.New(engine, cfg)
	ex := executor.New(st, sb, cfg)
	rt := router.New(st, ex, sb, cfg)

	frontends, err := buildFrontends(cfg, enableStdin)
	if err != nil {
		return fmt.Errorf("configuring frontends: %w", err)
	}
	if len(frontends) == 0 {
		return fmt.Errorf("no frontend configured: pass -stdin or set telegram.token")
	}

	sup := supervisor.New(supervisor.Config{
		Cfg:             cfg,
		Store:           st,
		Sandbox:         sb,
		Router:          rt,
		Frontends:       frontends,
		BuildContextDir: buildContext,
		Dockerfile:      dockerfile,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[main] shutdown signal received")
		cancel()
	}()

	return sup.Run(ctx)
}

func buildFrontends(cfg *config.Config, enableStdin bool) ([]bot.Frontend, error) {
	var frontends []bot.Frontend

	if cfg.Telegram.Token != "" {
		tf, err := telegramfrontend.New(cfg.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("telegram frontend: %w", err)
		}
		frontends = append(frontends, tf)
	}

	if enableStdin || len(frontends) == 0 {
		frontends = append(frontends, stdinfrontend.New())
	}

	return frontends, nil
}
