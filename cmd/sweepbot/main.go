// cmd/sweepbot/main.go
package main

import (
	"context"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roninsweep/sweepbot/internal/chain"
	"github.com/roninsweep/sweepbot/internal/config"
	"github.com/roninsweep/sweepbot/internal/exchange"
	"github.com/roninsweep/sweepbot/internal/logger"
	"github.com/roninsweep/sweepbot/internal/marketplace"
	"github.com/roninsweep/sweepbot/internal/storage"
	"github.com/roninsweep/sweepbot/internal/storage/memory"
	"github.com/roninsweep/sweepbot/internal/storage/postgres"
	"github.com/roninsweep/sweepbot/internal/sweep"
	"github.com/roninsweep/sweepbot/internal/task"
	"github.com/roninsweep/sweepbot/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	tasksPath := flag.String("tasks", "configs/tasks.csv", "path to tasks CSV")
	flag.Parse()

	// Secrets (private key, postgres DSN) come from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		LogFile:     "sweepbot.log",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      7,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		zap.NewExample().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer log.Sync()
	log.Info("Starting sweep bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *tasksPath, log); err != nil {
		log.Fatal("Sweep bot execution error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, tasksPath string, log *logger.Logger) error {
	var store storage.Storage
	if cfg.PostgresURL != "" {
		var err error
		store, err = postgres.NewStorage(cfg.PostgresURL, log.Logger)
		if err != nil {
			return err
		}
	} else {
		log.Warn("No postgres_url configured, using in-memory storage")
		store = memory.NewStorage()
	}
	if err := store.RunMigrations(); err != nil {
		return err
	}

	signer, err := wallet.FromHex(os.Getenv("SWEEPBOT_PRIVATE_KEY"))
	if err != nil {
		return err
	}
	log.Info("Wallet loaded", zap.String("address", signer.Address().Hex()))

	chainClient, err := chain.Dial(ctx, cfg.RPCURL, cfg.RequestTimeout(), log.Logger)
	if err != nil {
		return err
	}

	gateway, err := exchange.NewGateway(common.HexToAddress(cfg.GatewayAddress))
	if err != nil {
		return err
	}

	market := marketplace.NewClient(marketplace.Config{
		PrimaryURL:        cfg.PrimaryAPIURL,
		SecondaryURL:      cfg.SecondaryAPIURL,
		RequestsPerMinute: cfg.RequestsPerMinute,
		CacheTTL:          cfg.CacheTTL(),
		RequestTimeout:    cfg.RequestTimeout(),
	}, log.Logger)

	defaultLimit, err := marketplace.ParseRON(cfg.DefaultDailyLimit)
	if err != nil {
		return err
	}

	service := sweep.NewService(sweep.Config{
		MaxQuantity:        cfg.MaxQuantity,
		MaxBatchSize:       cfg.MaxBatchSize,
		OverfetchCeiling:   cfg.OverfetchCeiling,
		GasBase:            cfg.GasBase,
		GasPerItem:         cfg.GasPerItem,
		GasBufferPercent:   cfg.GasBufferPercent,
		FallbackGasPerItem: cfg.FallbackGasPerItem,
		FallbackGasPrice:   gweiToWei(cfg.FallbackGasGwei),
		DefaultDailyLimit:  defaultLimit,
		PollInterval:       cfg.PollInterval(),
		MaxPollAttempts:    cfg.MaxPollAttempts,
		VerifyBeforeSubmit: cfg.VerifyBeforeSubmit,
	}, market, chainClient, signer, gateway, store, log.Logger)

	tasks, err := task.NewManager(log.Logger).LoadTasks(tasksPath)
	if err != nil {
		return err
	}

	runLog := log.WithOperation("sweep-run")
	runLog.Info("Dispatching tasks", zap.Int("tasks", len(tasks)), zap.Int("workers", cfg.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, t := range tasks {
		g.Go(func() error {
			runTask(gctx, service, market, signer, t, log)
			// Task failures are logged, not fatal to the run.
			return nil
		})
	}
	err = g.Wait()
	runLog.Info("All tasks finished", zap.Int("cached_queries", market.CacheSize()))
	return err
}

func runTask(ctx context.Context, service *sweep.Service, market *marketplace.Client, signer *wallet.Wallet, t task.Task, log *logger.Logger) {
	taskLog := log.WithUser(t.UserID).With(
		zap.String("task", t.TaskName),
		zap.String("collection", t.Collection))

	if stats, err := market.FetchStats(ctx, t.Collection); err == nil {
		taskLog.Info("Collection stats",
			zap.String("floor_ron", marketplace.FormatRON(stats.Floor)),
			zap.String("avg10_ron", marketplace.FormatRON(stats.Avg10)),
			zap.Int("total_listed", stats.TotalListed))
	} else {
		taskLog.Warn("Stats unavailable", zap.Error(err))
	}

	req, err := t.ToRequest(signer.Address())
	if err != nil {
		taskLog.Error("Invalid task", zap.Error(err))
		return
	}

	exec, err := service.Execute(ctx, req)
	if err != nil {
		taskLog.Error("Sweep failed", zap.Error(err))
		if exec == nil {
			return
		}
	}

	preview := exec.Preview
	switch {
	case preview.Declined != nil:
		taskLog.Warn("Sweep declined", zap.String("reason", preview.Declined.String()))
		return
	case preview.Empty():
		taskLog.Info("No eligible listings found")
		return
	}

	taskLog.Info("Sweep submitted",
		zap.Int("candidates", len(preview.Candidates)),
		zap.Int("batches", len(exec.Submitted)),
		zap.String("total_ron", marketplace.FormatRON(preview.TotalCost)),
		zap.String("gas_estimate_ron", marketplace.FormatRON(preview.GasEstimate)))

	for _, outcome := range exec.Wait() {
		txLog := log.WithTransaction(outcome.Hash.Hex())
		if outcome.Err != nil {
			txLog.Error("Batch failed",
				zap.String("task", t.TaskName),
				zap.Error(outcome.Err))
			continue
		}
		txLog.Info("Batch confirmed",
			zap.String("task", t.TaskName),
			zap.Uint64("gas_used", outcome.GasUsed))
	}
}

func gweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(1_000_000_000))
}
