package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/manwarsd/dreamboard/internal/api"
	"github.com/manwarsd/dreamboard/internal/config"
	"github.com/manwarsd/dreamboard/internal/logging"
	"github.com/manwarsd/dreamboard/internal/orchestrator"
	"github.com/manwarsd/dreamboard/internal/playback"
	"github.com/manwarsd/dreamboard/internal/ui"
)

var serveHeadless bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API, the batch runner and the tray icon",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "Run without the system tray")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	logger.Info("starting dreamboard", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	agentID, err := ensureAgentID(ctx, a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure agent ID: %w", err)
	}
	authToken, err := ensureAuthToken(ctx, a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	apiURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Port())
	printBanner(apiURL, authToken, agentID, cfg.UseStubBackend())

	probeCtx, probeCancel := context.WithTimeout(ctx, 15*time.Second)
	if h, err := a.health.Refresh(probeCtx); err != nil {
		logger.Warn("initial backend probe failed", "error", err)
	} else {
		logger.Info("backend health", "video_ok", h.Video.OK, "image_ok", h.Image.OK)
	}
	probeCancel()

	runner := orchestrator.NewRunner(a.orch, a.repo, logging.WithComponent(logger, "runner"))

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Stories:        a.stories,
		Repository:     a.repo,
		Orchestrator:   a.orch,
		Runner:         runner,
		Backend:        a.client,
		Health:         a.health,
		Hub:            a.hub,
		Playback:       playback.NewServer(cfg.MediaRoot(), logger),
		AllowedOrigins: cfg.AllowedOrigins(),
		StubBackend:    cfg.UseStubBackend(),
		Logger:         logger,
		StartTime:      startTime,
		AgentID:        agentID,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runner.Start(gctx)
		return nil
	})
	g.Go(apiServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return apiServer.Shutdown(shutdownCtx)
	})

	if serveHeadless || cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Stories: a.stories,
			Runner:  runner,
			Logger:  logger,
			APIURL:  apiURL,
			OnShowURL: func(url string) error {
				_, err := fmt.Fprintln(os.Stdout, url)
				return err
			},
			OnQuit: cancel,
		})
		go tray.Run(gctx)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func printBanner(apiURL, authToken, agentID string, stub bool) {
	backendMode := "configured"
	if stub {
		backendMode = "stub (no backend URL set)"
	}
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  DREAMBOARD v%-29s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    %-45s ║\n", apiURL)
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Agent ID:   %-45s ║\n", agentID[:16]+"...")
	fmt.Printf("║  Backend:    %-45s ║\n", backendMode)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
}
