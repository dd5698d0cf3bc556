package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhelwig/seneschal-program-sub001/internal/autoimport"
	"github.com/jhelwig/seneschal-program-sub001/internal/config"
	"github.com/jhelwig/seneschal-program-sub001/internal/daemon"
	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/duplex"
	"github.com/jhelwig/seneschal-program-sub001/internal/embed"
	"github.com/jhelwig/seneschal-program-sub001/internal/logging"
	mcpserver "github.com/jhelwig/seneschal-program-sub001/internal/mcp"
	"github.com/jhelwig/seneschal-program-sub001/internal/output"
	"github.com/jhelwig/seneschal-program-sub001/internal/search"
	"github.com/jhelwig/seneschal-program-sub001/internal/tool"
	"github.com/jhelwig/seneschal-program-sub001/internal/worker"
)

func pidFilePath() string {
	return filepath.Join(filepath.Dir(logging.DefaultLogDir()), "seneschald.pid")
}

func newServeCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the seneschald backend",
		Long: `Starts the document store, search engine, background workers, the
duplex session manager (for a connected game-master UI), and the MCP
tool surface (for an LLM client).

By default seneschald re-execs itself detached and returns immediately.
Use --foreground to run attached, which is how an MCP host should
launch it (the MCP tool surface reads/writes this process's own
stdin/stdout).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground {
				return runForeground(cmd.Context())
			}
			return runBackground(cmd)
		},
	}
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run attached instead of daemonizing")

	cmd.AddCommand(newServeStopCmd())
	cmd.AddCommand(newServeStatusCmd())
	return cmd
}

func newServeStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background seneschald daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeStop(cmd)
		},
	}
}

func newServeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether seneschald is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeStatus(cmd)
		},
	}
}

// healthURL returns where the daemon's liveness endpoint would be if
// it's running with the given config.
func healthURL(cfg *config.Config) string {
	return fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Server.Port)
}

func isHealthy(url string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func runBackground(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if isHealthy(healthURL(cfg)) {
		out.Status("", "seneschald is already running")
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bgArgs := []string{"serve", "--foreground"}
	if configDir != "" {
		bgArgs = append(bgArgs, "--config-dir", configDir)
	}
	bgCmd := exec.Command(execPath, bgArgs...)
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start seneschald: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	url := healthURL(cfg)
	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("seneschald exited unexpectedly: %w", err)
			}
			return fmt.Errorf("seneschald exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if isHealthy(url) {
			out.Success(fmt.Sprintf("seneschald started (pid: %d)", bgCmd.Process.Pid))
			return nil
		}
	}

	return fmt.Errorf("seneschald failed to become healthy within timeout")
}

func runServeStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	pidFile := daemon.NewPIDFile(pidFilePath())

	if !pidFile.IsRunning() {
		out.Status("", "seneschald is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read pid file: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop seneschald: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Success(fmt.Sprintf("seneschald stopped (was pid: %d)", pid))
			return nil
		}
	}

	out.Status("", "seneschald not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill seneschald: %w", err)
	}
	out.Success("seneschald killed")
	return nil
}

func runServeStatus(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if !isHealthy(healthURL(cfg)) {
		out.Status("", "seneschald is not running")
		out.Status("", "Run 'seneschald serve' to start it")
		return nil
	}

	pidFile := daemon.NewPIDFile(pidFilePath())
	if pid, err := pidFile.Read(); err == nil {
		out.Status("", fmt.Sprintf("seneschald is running (pid: %d)", pid))
	} else {
		out.Status("", "seneschald is running")
	}
	out.Status("", fmt.Sprintf("  Port: %d", cfg.Server.Port))
	return nil
}

// runForeground builds the full stack and blocks until ctx is
// canceled: the document/caption workers, the duplex session manager
// for a connected game-master UI (either HTTP+websocket or stdio,
// per ServerConfig.Transport), and the MCP tool surface for an LLM
// client on this process's own stdin/stdout.
func runForeground(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = true
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	pidFile := daemon.NewPIDFile(pidFilePath())
	if err := pidFile.Write(); err != nil {
		logger.Warn("failed to write pid file", "error", err)
	}
	defer pidFile.Remove()

	store, err := dbstore.Open(cfg.DBPath(), cfg.Storage.SQLiteCacheMB)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	embedder, err := embed.NewFromConfig(ctx, cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("failed to build embedder: %w", err)
	}
	visionClient := embed.NewVisionFromConfig(cfg.Vision)

	engine, err := search.NewEngine(store, embedder, search.NewConfig(cfg.Search), logger)
	if err != nil {
		return fmt.Errorf("failed to build search engine: %w", err)
	}

	cancelRegistry := worker.NewCancelRegistry()
	documentWorker := worker.NewDocumentWorker(store, embedder, cancelRegistry, cfg.Ingestion, cfg.PDFImages, cfg.ImageDir(), cfg.Vision.Model, logger)
	captionWorker := worker.NewCaptionWorker(store, visionClient, embedder, cancelRegistry, logger)
	importWatcher := autoimport.NewWatcher(cfg.AutoImport, cfg.Ingestion.MaxFileSizeBytes, store, cfg.DocumentsDir(), logger)

	manager := duplex.NewManager(logger)
	correlation := duplex.NewCorrelationMap()
	router := duplex.NewRouter(manager, correlation, cfg.Duplex.ToolCallTimeout)

	dispatcher := tool.NewDispatcher(engine, store, router, visionClient, logger)
	mcp := mcpserver.NewServer(dispatcher, logger)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); documentWorker.Run(ctx) }()
	go func() { defer wg.Done(); captionWorker.Run(ctx) }()
	go func() { defer wg.Done(); importWatcher.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// "stdio" duplex transport and the MCP tool surface both want this
	// process's own stdin/stdout, so they're mutually exclusive within
	// one invocation: stdio transport is for exercising the duplex
	// session manager from a terminal without a game-master UI, and
	// isn't meant to run with an LLM host attached at the same time.
	mcpDone := make(chan error, 1)
	var httpServer *http.Server
	if cfg.Server.Transport == "stdio" {
		logger.Warn("duplex transport is stdio: MCP tool surface will not be started, since both would contend for this process's stdin/stdout")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := duplex.ServeStdio(ctx, manager, correlation, cfg.Duplex.OutboundMailboxSize, os.Stdin, os.Stdout, logger); err != nil {
				logger.Error("stdio duplex session ended with error", "error", err)
			}
		}()
		close(mcpDone)
	} else {
		mux.Handle("/ws", duplex.NewHandler(manager, correlation, cfg.Duplex.OutboundMailboxSize, logger))
		httpServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: mux}

		listener, err := net.Listen("tcp", httpServer.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				logger.Error("duplex HTTP server stopped with error", "error", err)
			}
		}()
		logger.Info("duplex HTTP server listening", "addr", httpServer.Addr)

		wg.Add(1)
		go func() {
			defer wg.Done()
			mcpDone <- mcp.Serve(ctx)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}

	wg.Wait()
	return <-mcpDone
}
