package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/moby/moby/client"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/interchainlabs/hypermcp/internal/agent"
	"github.com/interchainlabs/hypermcp/internal/chain"
	"github.com/interchainlabs/hypermcp/internal/config"
	"github.com/interchainlabs/hypermcp/internal/registry"
	"github.com/interchainlabs/hypermcp/internal/server"
	"github.com/interchainlabs/hypermcp/internal/transfer"
)

const shutdownGrace = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("hypermcpd: %v", err)
	}
}

func run(ctx context.Context) error {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("HYPERMCP_CONFIG"), "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Registry.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create storage path: %w", err)
	}

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(cfg.Registry.StoragePath, "run.log")
	}
	logger, closeLogger, err := buildLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLogger()

	store, err := registry.NewStore(cfg.Registry.StoragePath, logger)
	if err != nil {
		return err
	}
	var source registry.Source = registry.NullSource{}
	if cfg.Registry.RemoteURL != "" {
		source = registry.NewHTTPSource(cfg.Registry.RemoteURL, logger)
	}
	reg := registry.New(store, source, logger)

	signerKey := cfg.SignerKey()
	if signerKey == "" {
		logger.Warn("signer key not set, transactional tools will fail",
			zap.String("env", cfg.Signer.KeyEnv))
	}

	factory := chain.NewRegistryFactory(reg, signerKey, logger)
	defer factory.Close()

	engine := transfer.NewEngine(reg, factory, logger,
		transfer.WithHopTimeout(cfg.Transfer.HopTimeout.Std()),
		transfer.WithDeliveryPolling(cfg.Transfer.PollInterval.Std(), cfg.Transfer.MaxPolls),
	)

	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer cli.Close()

	runner := agent.NewRunner(cli, cfg.Agents.DockerNetworkID, logger)
	builder := agent.NewBuilder(reg, signerKey)
	manager := agent.NewManager(runner, builder,
		filepath.Join(cfg.Registry.StoragePath, "agents"), cfg.Agents.Image, logger)
	deployer := agent.NewCLIDeployer(runner, reg, cfg.Agents.CLIImage,
		filepath.Join(cfg.Registry.StoragePath, "deploy"), signerKey, logger)

	handler := server.NewHandler(reg, engine, manager, deployer, logger)
	httpSrv, err := server.NewHTTPServer(ctx, handler, cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("build mcp server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("mcp server listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := manager.StopAll(shutdownCtx); err != nil {
		logger.Warn("stop agents", zap.Error(err))
	}
	if err := deployer.Close(shutdownCtx); err != nil {
		logger.Warn("stop deployer", zap.Error(err))
	}
	return nil
}

// buildLogger tees structured logs to stderr and to the given file. The
// returned closer flushes both sinks.
func buildLogger(path string) (*zap.Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel),
	)
	logger := zap.New(core)
	return logger, func() {
		_ = logger.Sync()
		_ = f.Close()
	}, nil
}
