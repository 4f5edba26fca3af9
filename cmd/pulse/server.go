package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/pulse/internal/api"
	"github.com/kalambet/pulse/internal/config"
	"github.com/kalambet/pulse/internal/outbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pulse trigger and tenant API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pulse system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func (a *app) deps() api.Deps {
	return api.Deps{
		Store:     a.store,
		Tenants:   a.tenants,
		Dashboard: a.dashboard,
		Runner:    a.scheduler,
		Secret:    a.cfg.Server.PulseSecret,
		Token:     a.cfg.Server.APIToken,
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "pulse version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if cfg.Server.PulseSecret == "" {
		printWarning("PULSE_SECRET is not set; /api/pulse will reject every request")
	}
	if cfg.Server.APIToken == "" {
		slog.Info("PULSE_API_TOKEN not set, tenant routes disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	worker := outbox.NewWorker(a.store, a.transport, cfg.Outbox.Poll)
	go worker.Run(ctx)

	if cfg.Schedule.Interval > 0 {
		go a.scheduler.Loop(ctx, cfg.Schedule.Interval)
		slog.Info("in-process schedule enabled", "interval", cfg.Schedule.Interval)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(a.deps()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "pulse listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// A trigger in flight keeps running on its own context; give it the
	// configured run budget to finish before the store closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Schedule.RunTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries the MCP protocol, so readiness output is suppressed.
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	worker := outbox.NewWorker(a.store, a.transport, cfg.Outbox.Poll)
	go worker.Run(ctx)

	stdioSrv := server.NewStdioServer(api.NewMCPServer(a.deps()))
	slog.Info("MCP server started (stdio transport)")
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on %s", serverURL)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Engine", "%s", engineLabel(cfg))
	printStatus("Storage", "%s", storageLabel(cfg))
	printStatus("Telegram", "%s", configuredLabel(cfg.Telegram.BotToken != ""))
	printStatus("Admin chat", "%s", configuredLabel(cfg.Admin.ChatID != ""))
	printStatus("Events", "%s", eventsLabel(cfg.Events.NATSURL))
	printStatus("Batches", "%d tenants, %s pause, %s budget", cfg.Schedule.BatchSize, cfg.Schedule.BatchPause, cfg.Schedule.RunTimeout)
	if cfg.Schedule.Interval > 0 {
		printStatus("Schedule", "every %s", cfg.Schedule.Interval)
	} else {
		printStatus("Schedule", "external trigger only")
	}
	return nil
}

func engineLabel(cfg config.Config) string {
	if cfg.Engine.Backend == "openrouter" {
		return "openrouter/" + cfg.Proxy.Model
	}
	return fmt.Sprintf("ollama/%s at %s", cfg.Ollama.Model, cfg.Ollama.BaseURL)
}

func storageLabel(cfg config.Config) string {
	if cfg.Storage.Driver == "postgres" {
		return "postgres"
	}
	return "sqlite in " + cfg.Storage.DataDir
}

func eventsLabel(url string) string {
	if url == "" {
		return "disabled"
	}
	return url
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
