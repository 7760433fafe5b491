package main

import (
	"context"
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

	"github.com/spf13/cobra"

	"github.com/kalambet/juskvi/internal/api"
	"github.com/kalambet/juskvi/internal/composer"
	"github.com/kalambet/juskvi/internal/config"
	"github.com/kalambet/juskvi/internal/groq"
	"github.com/kalambet/juskvi/internal/memory"
	"github.com/kalambet/juskvi/internal/storage"
)

const httpShutdownTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the juskvi server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running juskvi server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show juskvi status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "juskvi.pid")
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

// localURL is where CLI commands reach the server. A wildcard bind address
// is reached through loopback.
func localURL(cfg config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)
	slog.Info("starting juskvi", "version", version)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(localURL(cfg) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("juskvi is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("juskvi is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewHandler(a.orchestrator, cfg.Server.TemplateDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("juskvi listening", "addr", cfg.Addr(), "workers", a.pool.Size())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	// Stop taking requests first, then give in-flight memory saves the grace
	// period before abandoning them.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("http shutdown: %w", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Synthesis.ShutdownGrace)
	defer cancelDrain()
	a.close(drainCtx)

	return serveErr
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
		printError("juskvi is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop juskvi (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to juskvi (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(localURL(cfg) + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on %s", cfg.Addr())
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	runner, embedEngine := providers(ctx, cfg)
	personas := composer.NewPersonas(cfg.Models.Visionary, cfg.Models.Skeptic, cfg.Models.Judge)
	for _, p := range personas.All() {
		printStatus(roleLabel(p.Role), "%s (%s)", p.Model, availability(runner.Configured(p.Model)))
	}
	printStatus("Embeddings", "%s (%s)", cfg.Models.Embed, availability(embedEngine != nil))

	for _, c := range config.Credentials(cfg) {
		printStatus(c.EnvVar, "%s", c.Value)
	}

	if cfg.Groq.APIKey != "" {
		printStatus("Groq", "%s", groqStatus(ctx, cfg))
	}

	printStatus("Memory", "%s", memoryStatus(ctx, cfg))
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func roleLabel(r composer.Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func availability(ok bool) string {
	if ok {
		return "ready"
	}
	return "offline"
}

func groqStatus(ctx context.Context, cfg config.Config) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	models, err := groq.NewClientWithBaseURL(cfg.Groq.APIKey, cfg.Groq.BaseURL).ListModels(ctx)
	if err != nil {
		return fmt.Sprintf("unreachable (%v)", err)
	}
	for _, m := range models {
		if m.ID == cfg.Models.Skeptic {
			return fmt.Sprintf("reachable, %s available", m.ID)
		}
	}
	return fmt.Sprintf("reachable, %s not listed", cfg.Models.Skeptic)
}

func memoryStatus(ctx context.Context, cfg config.Config) string {
	switch cfg.Memory.Backend {
	case config.MemorySQLite:
		db, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Sprintf("sqlite (error: %v)", err)
		}
		defer db.Close()
		n, err := memory.NewSQLiteIndex(db.SQL()).Count(ctx)
		if err != nil {
			return fmt.Sprintf("sqlite (error: %v)", err)
		}
		return fmt.Sprintf("sqlite, %d verdicts", n)
	case config.MemoryPinecone:
		if cfg.Memory.PineconeAPIKey == "" {
			return "pinecone (disabled, no API key)"
		}
		return fmt.Sprintf("pinecone index %s", cfg.Memory.PineconeIndex)
	default:
		return "disabled"
	}
}
