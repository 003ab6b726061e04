// ABOUTME: Entry point for the formgate lead-capture server
// ABOUTME: Serves the public form, the gated admin view, and the spool worker

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/formgate/formgate/internal/bucket"
	"github.com/formgate/formgate/internal/config"
	"github.com/formgate/formgate/internal/gate"
	"github.com/formgate/formgate/internal/lead"
	"github.com/formgate/formgate/internal/spool"
	"github.com/formgate/formgate/internal/web"
	"github.com/formgate/formgate/internal/webhook"
)

// version is overridden at build time via -ldflags.
var version = "dev"

const banner = `
  __                                 _
 / _| ___  _ __ _ __ ___   __ _ __ _| |_ ___
| |_ / _ \| '__| '_ ' _ \ / _' / _' | __/ _ \
|  _| (_) | |  | | | | | | (_| | (_| | ||  __/
|_|  \___/|_|  |_| |_| |_|\__, |\__,_|\__\___|
                          |___/
`

// getConfigPath returns the path to the formgate config file.
// Priority: FORMGATE_CONFIG env var > XDG_CONFIG_HOME/formgate/formgate.yaml > ~/.config/formgate/formgate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("FORMGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "formgate.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "formgate", "formgate.yaml")
}

// getDataPath returns the path to the formgate data directory.
// Priority: XDG_DATA_HOME/formgate > ~/.local/share/formgate
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "formgate")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: formgate <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the formgate server")
		fmt.Println("  init     Create a starter config file")
		fmt.Println("  health   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Spool:   %s\n", cfg.Spool.Path)
	fmt.Println()

	logger.Info("starting formgate",
		"config", configPath,
		"addr", cfg.Server.Addr,
	)

	settings, err := config.OpenSettings(cfg.Settings.Path, cfg.Settings.KeyFile)
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}

	spoolStore, err := spool.NewStore(cfg.Spool.Path)
	if err != nil {
		return fmt.Errorf("opening spool: %w", err)
	}
	defer func() { _ = spoolStore.Close() }()

	g := gate.New(bucket.NewMemory())

	var metrics *web.Metrics
	if cfg.Metrics.Enabled {
		metrics = web.NewMetrics()
	}

	server, err := web.New(web.Config{
		Settings: settings,
		Gate:     g,
		Spool:    spoolStore,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	// Retry worker re-submits spooled leads using the current settings
	worker := spool.NewWorker(spoolStore, &settingsSubmitter{settings: settings},
		cfg.Spool.RetryInterval, cfg.Spool.MaxAttempts)
	worker.OnRetry = metrics.CountSpoolRetry
	go worker.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// settingsSubmitter builds a webhook client from the live settings for each
// retry, so URL changes apply without a restart.
type settingsSubmitter struct {
	settings *config.SettingsStore
}

func (s *settingsSubmitter) Submit(ctx context.Context, l lead.Lead) error {
	current, err := s.settings.Read()
	if err != nil {
		return err
	}
	client := webhook.New(webhook.Config{SubmitURL: current.SubmitWebhookURL})
	return client.Submit(ctx, l)
}

func runInit() error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	dataPath := getDataPath()
	content := fmt.Sprintf(`server:
  addr: ":8400"

settings:
  path: %s
  key_file: %s

spool:
  path: %s
  retry_interval: 30s
  max_attempts: 20

logging:
  level: info
  format: text

metrics:
  enabled: false
`,
		filepath.Join(dataPath, "settings.bin"),
		filepath.Join(dataPath, "settings.key"),
		filepath.Join(dataPath, "spool.db"),
	)

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.Green("Created %s", configPath)
	fmt.Println("Next: formgate-admin set-password, then formgate serve")
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}

	color.Green("OK")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	fmt.Println(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{
		level:  h.level,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}
