package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/internal/config"
	grpcapi "github.com/aescanero/assetforge/pkg/api/grpc"
	httpapi "github.com/aescanero/assetforge/pkg/api/http"
	"github.com/aescanero/assetforge/pkg/api/websocket"
	"github.com/aescanero/assetforge/pkg/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the asset pipeline",
	Long: `Run every asset step in dependency order and print a summary.

The command exits non-zero when any step fails, is skipped or is cancelled.
SIGINT or SIGTERM cancels the run: steps already running finish, the rest
are marked cancelled. With --serve the APIs stay up after the run until the
first signal, which also ends a run still in progress.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var (
	runServe   bool
	runWorkers int
	runPolicy  string
)

func init() {
	runCmd.Flags().BoolVar(&runServe, "serve", false, "serve the HTTP and gRPC APIs during and after the run, until a signal arrives")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "number of steps that may run at once (overrides PIPELINE_WORKERS)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "step policy file (overrides PIPELINE_POLICY_FILE)")
	rootCmd.AddCommand(runCmd)
}

// loadConfig reads the environment and applies command line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("serve") {
		cfg.Serve = runServe
	}
	if cmd.Flags().Changed("workers") {
		cfg.Pipeline.Workers = runWorkers
	}
	if cmd.Flags().Changed("policy") {
		cfg.Pipeline.PolicyFile = runPolicy
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return executeRun(ctx, cmd.OutOrStdout(), cfg, logger, sigCh)
}

// executeRun runs the pipeline once, prints the summary to out and returns
// errRunFailed when any step did not complete. The first signal received
// cancels the run and, with --serve, also ends serving.
func executeRun(ctx context.Context, out io.Writer, cfg *config.Config, logger *zap.Logger, signals <-chan os.Signal) error {
	logger.Info("starting assetforge",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return err
	}
	defer a.close()

	var servers *apiServers
	if cfg.Serve {
		servers, err = startServers(cfg, a, logger)
		if err != nil {
			return err
		}
	}

	interrupted := make(chan struct{})
	exiting := make(chan struct{})
	defer close(exiting)
	go func() {
		select {
		case sig := <-signals:
			logger.Info("received signal, stopping", zap.String("signal", sig.String()))
			a.pipeline.Cancel()
			close(interrupted)
		case <-exiting:
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
	ok, runErr := a.pipeline.ExecuteAll(runCtx)
	cancel()

	snap := a.pipeline.Snapshot()
	fmt.Fprint(out, renderSummary(snap))
	logFailures(logger, snap)

	if servers != nil {
		select {
		case <-interrupted:
		default:
			logger.Info("run finished, serving until signal",
				zap.Int("http_port", cfg.HTTPPort),
				zap.Int("grpc_port", cfg.GRPCPort))
			<-interrupted
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := a.pipeline.Shutdown(shutdownCtx); err != nil {
		logger.Error("pipeline shutdown error", zap.Error(err))
	}
	if servers != nil {
		servers.shutdown(shutdownCtx, logger)
	}

	switch {
	case runErr != nil:
		return runErr
	case !ok:
		return errRunFailed
	}
	logger.Info("assetforge finished")
	return nil
}

// logFailures logs the reason of every step that did not complete
func logFailures(logger *zap.Logger, snap *domain.RunSnapshot) {
	for _, st := range snap.Steps {
		switch st.Status {
		case domain.StepStatusFailed, domain.StepStatusSkipped, domain.StepStatusCancelled:
			logger.Error("step did not complete",
				zap.String("step", st.Name.String()),
				zap.String("status", string(st.Status)),
				zap.Int("retry_count", st.RetryCount),
				zap.String("error", st.ErrorMessage))
		}
	}
}

type apiServers struct {
	http *httpapi.Server
	grpc *grpcapi.Server
}

func startServers(cfg *config.Config, a *app, logger *zap.Logger) (*apiServers, error) {
	httpServer := httpapi.NewServer(&httpapi.Config{
		Port:     cfg.HTTPPort,
		Pipeline: a.pipeline,
		Storage:  a.storage,
		Gatherer: a.registry,
		Logger:   logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(a.bus, a.pipeline.RunID, logger))

	grpcServer, err := grpcapi.NewServer(&grpcapi.Config{
		Port:     cfg.GRPCPort,
		Pipeline: a.pipeline,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Error("gRPC server failed", zap.Error(err))
		}
	}()

	return &apiServers{http: httpServer, grpc: grpcServer}, nil
}

func (s *apiServers) shutdown(ctx context.Context, logger *zap.Logger) {
	if err := s.http.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := s.grpc.Shutdown(ctx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}
}
