package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solrun-hq/solrunner/pkg/birdeye"
	"github.com/solrun-hq/solrunner/pkg/chainclient"
	"github.com/solrun-hq/solrunner/pkg/circuitbreaker"
	"github.com/solrun-hq/solrunner/pkg/config"
	"github.com/solrun-hq/solrunner/pkg/confirm"
	"github.com/solrun-hq/solrunner/pkg/executor"
	"github.com/solrun-hq/solrunner/pkg/health"
	"github.com/solrun-hq/solrunner/pkg/jupiter"
	"github.com/solrun-hq/solrunner/pkg/keys"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/models"
	"github.com/solrun-hq/solrunner/pkg/resolver"
	"github.com/solrun-hq/solrunner/pkg/safety"
	"github.com/solrun-hq/solrunner/pkg/taskstore"
)

const (
	// jobBuffer bounds how many claimed tasks can wait for a worker.
	jobBuffer = 100

	// priceCacheTTL keeps one price lookup per mint per scheduler tick.
	priceCacheTTL = 5 * time.Second

	// purgeRetention is how long finished task rows are kept for inspection.
	purgeRetention = 7 * 24 * time.Hour
)

// TaskExecutor executes a claimed swap task. Satisfied by *executor.Executor.
type TaskExecutor interface {
	ExecuteSwap(ctx context.Context, ownerID, taskID string, swap models.ResolvedSwap) (models.ExecutionResult, error)
	ExecuteTransfer(ctx context.Context, ownerID string, transfer models.ResolvedTransfer) (models.ExecutionResult, error)
}

// Service drives the deferred swap engine: it persists confirmed tasks,
// evaluates their triggers on a fixed tick, and hands due tasks to the
// worker pool.
type Service struct {
	config      *config.Config
	chain       *chainclient.Client
	store       *taskstore.Store
	executor    TaskExecutor
	resolver    *resolver.Resolver
	gate        *confirm.Gate
	feed        birdeye.PriceFeed
	wallet      solana.PublicKey
	breaker     *circuitbreaker.CircuitBreaker
	monitor     *chainclient.InflightMonitor
	logger      logger.Logger
	workers     int
	pendingJobs chan models.AutoSwapTask
	wg          sync.WaitGroup
}

// NewService wires the full pipeline from configuration.
func NewService(cfg *config.Config) (*Service, error) {
	log := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	chain := chainclient.New(cfg.RPCURL, log)

	var keyProvider keys.Provider
	var wallet solana.PublicKey
	if cfg.WalletService.Endpoint != "" {
		keyProvider = keys.NewRemoteProvider(cfg.WalletService)
	} else {
		envProvider, err := keys.NewEnvProvider(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		keyProvider = envProvider
		wallet = envProvider.PublicKey()
	}

	store, err := taskstore.Open(cfg.TaskDBPath, log)
	if err != nil {
		return nil, err
	}

	market := birdeye.NewClient(cfg.BirdeyeAPIKey, log)
	feed := birdeye.NewCachedFeed(market, priceCacheTTL)
	checker := safety.NewChecker(chain, log)
	quoter := jupiter.NewClient(cfg.Jupiter, log)
	monitor := chainclient.NewInflightMonitor(chain, 30*time.Second, log)

	var feeWallet solana.PublicKey
	if cfg.Jupiter.PlatformFeeBps > 0 {
		feeWallet, err = solana.PublicKeyFromBase58(cfg.Jupiter.FeeWallet)
		if err != nil {
			return nil, fmt.Errorf("invalid JUP_FEE_WALLET: %w", err)
		}
	}

	exec := executor.New(chain, quoter, checker, keyProvider, monitor, feeWallet, cfg.ConfirmPollAttempts, log)

	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
	)

	return &Service{
		config:      cfg,
		chain:       chain,
		store:       store,
		executor:    exec,
		resolver:    resolver.New(market, market, log),
		gate:        confirm.NewGate(confirm.NewOpenAIClassifier(cfg.LLM)),
		feed:        feed,
		wallet:      wallet,
		breaker:     breaker,
		monitor:     monitor,
		logger:      log,
		workers:     cfg.WorkerCount,
		pendingJobs: make(chan models.AutoSwapTask, jobBuffer),
	}, nil
}

// Start begins the scheduler loop and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	// Start health monitoring server
	healthServer := health.NewServer(s.config.MetricsPort, s.breaker, s)
	go healthServer.Start()

	// Settle transactions left unconfirmed by earlier executions
	s.monitor.Start(ctx)

	// Tasks stranded in executing by a crash go back to pending
	if _, err := s.store.RecoverOrphans(ctx); err != nil {
		s.logger.Error("orphan recovery failed: %v", err)
	}
	if purged, err := s.store.PurgeFinished(ctx, time.Now().Add(-purgeRetention)); err == nil && purged > 0 {
		s.logger.InfoWith(logger.Store, "purged %d finished tasks", purged)
	}

	// Start worker pool
	s.logger.Info("starting %d worker goroutines", s.workers)
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx, i)
	}

	s.logger.Info("starting scheduler with tick interval %v", s.config.PollingInterval)
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("context cancelled, shutting down service")
			close(s.pendingJobs)
			s.drainPending()
			s.wg.Wait() // Wait for all workers to finish
			s.monitor.Stop()
			return
		case <-ticker.C:
			s.scheduleTick(ctx)
		}
	}
}

// drainPending releases tasks still queued at shutdown. Workers exit on
// cancellation without emptying the channel, so each leftover task goes back
// to pending for the next run and its wait-group slot is freed.
func (s *Service) drainPending() {
	for task := range s.pendingJobs {
		if err := s.store.Release(context.Background(), task.TaskID); err != nil {
			s.logger.ErrorWith(logger.Store, "releasing task %s failed: %v", task.TaskID, err)
		}
		s.wg.Done()
	}
}

// PendingTaskCount implements health.StatusSource.
func (s *Service) PendingTaskCount() (int, error) {
	tasks, err := s.store.ListPending(context.Background())
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// InflightCount implements health.StatusSource.
func (s *Service) InflightCount() int {
	return s.monitor.Pending()
}

// WalletAddress implements health.StatusSource.
func (s *Service) WalletAddress() string {
	if s.wallet.IsZero() {
		return ""
	}
	return s.wallet.String()
}
