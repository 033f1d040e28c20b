// Workflow orchestrator server — provides the HTTP API, runs per-project
// reconciliation pollers, and drives agent pipelines on GitHub issues.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Boykai/github-workflows/pkg/api"
	"github.com/Boykai/github-workflows/pkg/config"
	"github.com/Boykai/github-workflows/pkg/database"
	"github.com/Boykai/github-workflows/pkg/github"
	"github.com/Boykai/github-workflows/pkg/orchestrator"
	"github.com/Boykai/github-workflows/pkg/poller"
	"github.com/Boykai/github-workflows/pkg/services"
	"github.com/Boykai/github-workflows/pkg/slack"
	"github.com/Boykai/github-workflows/pkg/state"
	"github.com/Boykai/github-workflows/pkg/version"
)

// slackNotifier adapts the Slack service to the orchestrator's notifier
// hook. A nil service makes every call a no-op.
type slackNotifier struct {
	svc *slack.Service
}

func (n *slackNotifier) Notify(ctx context.Context, event orchestrator.WorkflowNotification) {
	switch event.Status {
	case orchestrator.NotifyStarted:
		n.svc.NotifyWorkflowStarted(ctx, slack.WorkflowStartedInput{
			IssueNumber: event.IssueNumber,
			IssueTitle:  event.IssueTitle,
			IssueURL:    event.IssueURL,
			Fingerprint: event.IssueTitle,
		})
	default:
		n.svc.NotifyWorkflowCompleted(ctx, slack.WorkflowCompletedInput{
			IssueNumber: event.IssueNumber,
			IssueTitle:  event.IssueTitle,
			IssueURL:    event.IssueURL,
			Status:      event.Status,
			Error:       event.Error,
			Fingerprint: event.IssueTitle,
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("CONFIG_PATH", "./deploy/config/workflows.yaml"),
		"Path to configuration file")
	flag.Parse()

	// Load .env next to the binary; missing files are fine.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	httpPort := cfg.System.HTTPPort
	if raw := os.Getenv("HTTP_PORT"); raw != "" {
		port, convErr := strconv.Atoi(raw)
		if convErr != nil {
			slog.Error("Invalid HTTP_PORT", "value", raw, "error", convErr)
			os.Exit(1)
		}
		httpPort = port
	}

	slog.Info("Starting workflow orchestrator",
		"version", version.Full(),
		"http_port", httpPort,
		"config_path", *configPath)

	// 2. Initialize database
	dbClient, err := database.NewClient(ctx, cfg.System.DatabasePath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database", "error", err)
		}
	}()
	slog.Info("Database ready", "path", dbClient.Path())

	// 3. Token resolution. The token is read per call, never cached, so a
	// rotated environment value takes effect immediately.
	tokenEnv := cfg.System.GitHubTokenEnv
	token := orchestrator.TokenFunc(func(ctx context.Context) (string, error) {
		v := os.Getenv(tokenEnv)
		if v == "" {
			return "", fmt.Errorf("environment variable %s is not set", tokenEnv)
		}
		return v, nil
	})

	// 4. Domain services
	settings := services.NewSettingsService(dbClient)
	transitions := services.NewTransitionLog()
	stores := state.NewStores()
	guards := orchestrator.NewGuards()

	platform := github.NewClient()
	orch := orchestrator.New(platform, stores, transitions, guards, cfg.Poller, token)

	if slackSvc := slack.NewService(slack.ServiceConfig{
		Token:   os.Getenv("SLACK_BOT_TOKEN"),
		Channel: os.Getenv("SLACK_CHANNEL_ID"),
	}); slackSvc != nil {
		orch.SetNotifier(&slackNotifier{svc: slackSvc})
		slog.Info("Slack notifications enabled")
	}

	p, err := poller.New(orch, platform, cfg.Poller, token)
	if err != nil {
		slog.Error("Failed to create poller", "error", err)
		os.Exit(1)
	}
	slog.Info("Services initialized")

	// 5. Bootstrap workflow configuration from file, stored under the
	// canonical user so every caller can fall back to it.
	if cfg.Workflow != nil {
		if err := settings.SaveWorkflowConfig(ctx, services.CanonicalUser, cfg.Workflow); err != nil {
			slog.Error("Failed to store bootstrap workflow configuration", "error", err)
			os.Exit(1)
		}
	}

	// 5a. Resume polling for every project with stored settings, the file
	// bootstrap included.
	projectIDs, err := settings.ListProjectIDs(ctx, services.CanonicalUser)
	if err != nil {
		slog.Error("Failed to list configured projects", "error", err)
		os.Exit(1)
	}
	for _, id := range projectIDs {
		projCfg, cfgErr := settings.GetWorkflowConfig(ctx, services.CanonicalUser, id)
		if cfgErr != nil {
			slog.Warn("Skipping project with unreadable settings",
				"project_id", id, "error", cfgErr)
			continue
		}
		if err := p.StartPolling(projCfg, cfg.Poller.Interval); err != nil {
			slog.Error("Failed to start polling", "project_id", id, "error", err)
			os.Exit(1)
		}
	}
	if len(projectIDs) > 0 {
		slog.Info("Polling resumed", "projects", len(projectIDs))
	}

	// 6. HTTP server
	server := api.NewServer(orch, p, settings, dbClient)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", httpPort),
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Workflow orchestrator started")

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: pollers first so no reconciliation tick races
	// the closing HTTP surface, then the server, then the database.
	p.StopAll()
	slog.Info("Pollers stopped")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
