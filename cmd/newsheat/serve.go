package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/doctadg/perpstrader-sub004/internal/api"
	"github.com/doctadg/perpstrader-sub004/internal/articles"
	"github.com/doctadg/perpstrader-sub004/internal/config"
	"github.com/doctadg/perpstrader-sub004/internal/heatmap"
	"github.com/doctadg/perpstrader-sub004/internal/labeling"
	"github.com/doctadg/perpstrader-sub004/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the heatmap HTTP service (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the heatmap tools to agents over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running newsheat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show newsheat system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(cfg config.Config) string {
	dir := filepath.Dir(cfg.DBPath)
	if cfg.DBPath == ":memory:" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "newsheat.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// buildService wires storage, the article source, the labeling adapter and
// the heatmap service from one loaded config. The caller owns the store.
func buildService(cfg config.Config) (*heatmap.Service, *articles.Source, *storage.Store, error) {
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	provider, err := labeling.NewProvider(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("configuring llm provider: %w", err)
	}
	labeler := labeling.New(provider, cfg.LLMTimeout(), cfg.LLM.MaxArticles)

	source := articles.NewSource(store.DB())
	svc := heatmap.NewService(store, source, labeler, heatmap.Config{
		CacheTTL:         cfg.CacheTTL(),
		ScanCap:          cfg.MaxArticles,
		StateLookback:    cfg.StateLookback(),
		StateRetention:   cfg.StateRetention(),
		HistoryRetention: cfg.HistoryRetention(),
	})
	return svc, source, store, nil
}

func runServe() error {
	fmt.Fprintf(os.Stderr, "newsheat version %s\n", version)

	cfg := config.Load()
	initLogging(cfg)

	// Refuse to double-start: probe the port first, then claim the PID file.
	pidPath := pidFilePath(cfg)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.HTTPPort)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("newsheat is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("newsheat is already running on port %d", cfg.HTTPPort)
		return fmt.Errorf("server already running on port %d", cfg.HTTPPort)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, source, store, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	handler := api.NewHandler(api.Deps{
		Heatmap:  svc,
		Articles: source,
		Token:    cfg.APIToken,
		Version:  version,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.HTTPPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	refreshEvery, err := cfg.RefreshEvery()
	if err != nil {
		slog.Warn("invalid refresh interval, refresher disabled", "value", cfg.RefreshInterval, "error", err)
		refreshEvery = 0
	}
	if refreshEvery > 0 {
		go heatmap.NewRefresher(svc, refreshEvery).Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "newsheat listening on %s\n", addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg := config.Load()
	initLogging(cfg)

	svc, source, store, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcpSrv := api.NewMCPServer(api.Deps{
		Heatmap:  svc,
		Articles: source,
		Version:  version,
	})

	// Stdout belongs to the protocol here; all logging goes to stderr.
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg := config.Load()

	pidPath := pidFilePath(cfg)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("newsheat is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop newsheat (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to newsheat (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg := config.Load()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTPPort)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.HTTPPort)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.LLM.Provider == "" || cfg.LLM.Provider == "disabled" {
		printStatus("LLM labeling", "disabled")
	} else {
		printStatus("LLM labeling", "%s (%s)", cfg.LLM.Provider, cfg.LLM.Model)
	}
	printStatus("Cache TTL", "%s", cfg.CacheTTL())
	if every, err := cfg.RefreshEvery(); err == nil && every > 0 {
		printStatus("Refresh", "every %s", every)
	} else {
		printStatus("Refresh", "on demand")
	}

	// Show cluster counts if the server is up. limit=1 keeps the payload
	// small; totals cover the whole build either way.
	if running {
		if hm, err := fetchHeatmapSummary(client, serverURL, cfg.APIToken); err == nil {
			printStatus("Clusters", "%d from %d articles", hm.TotalClusters, hm.TotalArticles)
			printStatus("Generated", "%s", hm.GeneratedAt.Format(time.RFC3339))
		}
	}

	printStatus("Database", "%s", cfg.DBPath)
	return nil
}

func fetchHeatmapSummary(client *http.Client, serverURL, token string) (*heatmap.Result, error) {
	req, err := http.NewRequest("GET", serverURL+"/v1/news/heatmap?limit=1", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	var res heatmap.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
