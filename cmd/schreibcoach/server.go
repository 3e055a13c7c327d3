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

	"github.com/mkrenz/schreibcoach/internal/analysis"
	"github.com/mkrenz/schreibcoach/internal/api"
	"github.com/mkrenz/schreibcoach/internal/backend"
	"github.com/mkrenz/schreibcoach/internal/config"
	"github.com/mkrenz/schreibcoach/internal/ocr"
	"github.com/mkrenz/schreibcoach/internal/ollama"
	"github.com/mkrenz/schreibcoach/internal/pipeline"
	"github.com/mkrenz/schreibcoach/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the schreibcoach server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running schreibcoach server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schreibcoach system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "schreibcoach.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "schreibcoach version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Ensure the API token exists in the platform secret store.
	apiToken, err := config.GetAPIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("schreibcoach is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("schreibcoach is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the language backend and the text extractor.
	b, err := buildBackend(ctx, cfg)
	if err != nil {
		return err
	}
	extractor := buildExtractor(cfg)

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	coach := pipeline.New(b, extractor, pipeline.WithFallbackScores(analysis.FallbackScores{
		Vocabulary: cfg.Analysis.FallbackVocabulary,
		Structure:  cfg.Analysis.FallbackStructure,
		Overall:    cfg.Analysis.FallbackOverall,
	}))

	// Start the history pruner.
	retention := time.Duration(cfg.Storage.RetentionDays) * 24 * time.Hour
	pruner := storage.NewPruner(store, retention, 0)
	go pruner.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Coach: coach,
		Store: store,
		Token: apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Coach: coach, Store: store})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "schreibcoach listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildBackend constructs the analysis backend the configuration selects.
// With kind "auto" the choice depends only on configured credentials.
func buildBackend(ctx context.Context, cfg config.Config) (backend.Backend, error) {
	switch kind := cfg.Provider.ResolveProvider(); kind {
	case "openai":
		if cfg.Provider.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("provider.kind is openai but no API key is configured; set SCHREIB_OPENAI_API_KEY%s", config.APIKeyHint())
		}
		slog.Info("using OpenAI backend", "model", cfg.Provider.ChatModel)
		if cfg.Provider.OpenAIBaseURL != "" {
			return backend.NewOpenAIWithBaseURL(cfg.Provider.OpenAIAPIKey, cfg.Provider.ChatModel, cfg.Provider.OpenAIBaseURL), nil
		}
		return backend.NewOpenAI(cfg.Provider.OpenAIAPIKey, cfg.Provider.ChatModel), nil

	case "ollama":
		client := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(ctx, client, cfg.Ollama.Model, os.Stderr); err != nil {
			return nil, err
		}
		slog.Info("using Ollama backend", "model", cfg.Ollama.Model)
		return backend.NewOllama(client, cfg.Ollama.Model), nil

	default:
		printWarning("no provider credentials configured, using offline stand-in responses")
		slog.Info("using stand-in backend")
		return backend.NewStandIn(), nil
	}
}

// buildExtractor returns the OCR extractor: Google Vision when a key is
// configured, otherwise the offline stand-in transcript.
func buildExtractor(cfg config.Config) ocr.Extractor {
	if cfg.Vision.APIKey != "" {
		slog.Info("using Google Vision OCR")
		return ocr.NewVisionClient(cfg.Vision.APIKey)
	}
	slog.Info("using stand-in OCR transcript")
	return ocr.NewStandIn()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("schreibcoach is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop schreibcoach (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to schreibcoach (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	kind := cfg.Provider.ResolveProvider()
	printStatus("Provider", "%s", kind)
	switch kind {
	case "openai":
		printStatus("Chat model", "%s", cfg.Provider.ChatModel)
	case "ollama":
		printStatus("Chat model", "%s", cfg.Ollama.Model)
		if ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version"); err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		}
	}

	if cfg.Vision.APIKey != "" {
		printStatus("OCR", "Google Vision")
	} else {
		printStatus("OCR", "stand-in transcript")
	}

	// Show conversation count if the server is running.
	apiToken, tokenErr := config.GetAPIToken()
	if tokenErr == nil && resp != nil && resp.StatusCode == 200 {
		convResp, err := apiGet(client, serverURL+"/v1/conversations?limit=100", apiToken)
		if err == nil {
			var conversations []json.RawMessage
			if json.NewDecoder(convResp.Body).Decode(&conversations) == nil {
				printStatus("Conversations", "%s", countLabel(len(conversations), 100))
			}
			convResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
