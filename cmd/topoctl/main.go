package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/topoctl/internal/api"
	"github.com/seantiz/topoctl/internal/config"
	"github.com/seantiz/topoctl/internal/logic"
	"github.com/seantiz/topoctl/internal/orchestrator"
	"github.com/seantiz/topoctl/internal/rpc"
	"github.com/seantiz/topoctl/internal/store"
	"github.com/seantiz/topoctl/internal/telemetry"
)

const drainTimeout = 30 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("topoctl: %v", err)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("topoctl", pflag.ContinueOnError)
	flags.StringVar(&cfg.EngineConfig, "config", cfg.EngineConfig, "engine defaults YAML file")
	flags.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "HTTP listen address")
	flags.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC listen address")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flags.StringVar(&cfg.ProceduresDir, "procedures", cfg.ProceduresDir, "directory of Lua procedures")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger := config.NewLogger(os.Stdout, cfg.Level())
	logger.Info("topoctl: starting",
		"listen_addr", cfg.ListenAddr,
		"grpc_addr", cfg.GRPCAddr,
		"db_path", cfg.DBPath,
		"procedures_dir", cfg.ProceduresDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	reg := logic.NewRegistry()
	n, err := logic.LoadDir(os.DirFS(cfg.ProceduresDir), reg, logger)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("procedures directory not found", "dir", cfg.ProceduresDir)
	case err != nil:
		db.Close()
		return fmt.Errorf("load procedures: %w", err)
	default:
		logger.Info("procedures loaded", "count", n)
	}

	engine := config.LoadEngineDefaults(cfg.EngineConfig, logger)
	lc := logic.NewClient(reg, engine.Options(), logger)
	defer lc.Close()

	runner := orchestrator.NewRunner(cfg.ContinuationWorkers, cfg.ContinuationQueue, cfg.ContinuationTimeout, logger)
	orch := orchestrator.New(orchestrator.DefaultCatalog(), store.NewClient(db, logger), lc, runner, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		db.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}
	httpSrv := api.NewServer(cfg.ListenAddr, orch, reg, logger)
	grpcSrv := rpc.NewServer(lis, rpc.NewService(orch, logger), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Run(gctx) })
	g.Go(func() error { return grpcSrv.Serve(gctx) })
	serveErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	err = multierr.Combine(
		serveErr,
		runner.Close(drainCtx),
		shutdownTracing(drainCtx),
		db.Close(),
	)
	logger.Info("topoctl: stopped")
	return err
}
