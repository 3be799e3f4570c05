// Command indexerd is the indexer process entrypoint: serve runs the full
// indexing pipeline plus the external API, reindex replays a height range
// into a fresh storage state, and rollback forces a manual rewind.
//
// Grounded on cmd/synnergy/main.go's cobra root-command-plus-subcommands
// shape and cmd/config/config.go's load-and-fail-fast convention at
// startup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"net/http"

	"github.com/opnet-core/indexer/internal/api"
	"github.com/opnet-core/indexer/internal/blockproc"
	"github.com/opnet-core/indexer/internal/chainwatch"
	"github.com/opnet-core/indexer/internal/evaluator"
	"github.com/opnet-core/indexer/internal/hooks"
	"github.com/opnet-core/indexer/internal/indexing"
	"github.com/opnet-core/indexer/internal/metrics"
	"github.com/opnet-core/indexer/internal/rpcclient"
	"github.com/opnet-core/indexer/internal/storage"
	"github.com/opnet-core/indexer/internal/utxo"
	"github.com/opnet-core/indexer/pkg/config"
)

func main() {
	root := &cobra.Command{Use: "indexerd"}
	root.PersistentFlags().String("env", "", "configuration environment overlay (e.g. production, staging)")
	root.AddCommand(serveCmd())
	root.AddCommand(reindexCmd())
	root.AddCommand(rollbackCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type wiring struct {
	log       *logrus.Logger
	cfg       *config.Config
	store     *storage.StorageEngine
	eval      *evaluator.ContractEvaluator
	processor *blockproc.Processor
	ledger    *utxo.Ledger
	rpc       *rpcclient.Client
	registry  *indexing.Registry
	dispatch  *hooks.Dispatcher
	metrics   *metrics.Registry
}

func newWiring(env string) (*wiring, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logrus.StandardLogger()
	if cfg.Logging.Level != "" {
		if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
			log.SetLevel(lvl)
		}
	}
	log.SetFormatter(&logrus.JSONFormatter{})

	store, err := storage.NewStorageEngine(storage.Config{
		DataDir:       cfg.Storage.DataDir,
		SnapshotEvery: cfg.Storage.SnapshotEvery,
		CompressCode:  cfg.Storage.CompressCode,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	eval, err := evaluator.NewContractEvaluator(evaluator.Config{
		MaxCallDepth:        cfg.Evaluator.MaxCallDepth,
		MaxDeployDepth:      cfg.Evaluator.MaxDeployDepth,
		ReentrancyGuard:     cfg.Evaluator.ReentrancyGuard,
		ModuleCacheSize:     cfg.Evaluator.ModuleCacheSize,
		MaxReexecIterations: 8,
	})
	if err != nil {
		return nil, fmt.Errorf("construct evaluator: %w", err)
	}

	processor := blockproc.NewProcessor(blockproc.Config{}, eval, store)
	ledger := utxo.NewLedger(store, cfg.Indexing.PurgeWindow)

	rpc, err := rpcclient.New(rpcclient.Config{
		Host:     cfg.Network.Host,
		Port:     cfg.Network.Port,
		Username: cfg.Network.Username,
		Password: cfg.Network.Password,
		Network:  rpcclient.Network(cfg.Network.Chain),
		Magic:    cfg.Network.Magic,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("construct rpc client: %w", err)
	}

	metricsRegistry := metrics.New(prometheus.DefaultRegisterer)
	dispatcher := hooks.New(hooks.Config{HighWaterMark: cfg.Hooks.HighWaterMark}, nil, map[hooks.Event]hooks.EventPolicy{
		hooks.EventBlockPreProcess:  {Mode: hooks.ModeParallel, Timeout: time.Duration(cfg.Hooks.BlockTimeoutMS) * time.Millisecond, ContinueOnError: true},
		hooks.EventBlockPostProcess: {Mode: hooks.ModeParallel, Timeout: time.Duration(cfg.Hooks.BlockTimeoutMS) * time.Millisecond, ContinueOnError: true},
		hooks.EventReorg:            {Mode: hooks.ModeSequential, Timeout: time.Duration(cfg.Hooks.ReorgTimeoutMS) * time.Millisecond, ContinueOnError: false},
	}, log)

	return &wiring{
		log:       log,
		cfg:       cfg,
		store:     store,
		eval:      eval,
		processor: processor,
		ledger:    ledger,
		rpc:       rpc,
		registry:  indexing.NewRegistry(),
		dispatch:  dispatcher,
		metrics:   metricsRegistry,
	}, nil
}

func (w *wiring) close() {
	w.rpc.Close()
	_ = w.store.Close()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the indexing pipeline and external API",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			w, err := newWiring(env)
			if err != nil {
				return err
			}
			defer w.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			apiServer := api.New(api.Config{}, w.store, w.log)
			w.dispatch.Register(hooks.Plugin{
				Name: "websocket-broadcaster",
				Handler: func(ctx context.Context, event hooks.Event, payload interface{}) (interface{}, bool, error) {
					apiServer.Broadcaster().Publish(string(event), payload)
					return nil, false, nil
				},
			})

			observer := chainwatch.New(chainwatch.Config{ReorgDepth: w.cfg.Indexing.ReorgDepth}, w.rpc, w.store, w.registry,
				func(ctx context.Context, fromBlock, toBlock uint64, reason string) error {
					_, err := w.dispatch.Dispatch(ctx, hooks.EventReorg, map[string]interface{}{
						"from_block": fromBlock, "to_block": toBlock, "reason": reason,
					})
					return err
				}, w.log)

			runner := indexing.NewRunner(w.processor, func(ctx context.Context, data *blockproc.BlockProcessedData) error {
				w.metrics.BlocksIndexed.Inc()
				_, err := w.dispatch.Dispatch(ctx, hooks.EventBlockPostProcess, data)
				return err
			})

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsSrv := &http.Server{Addr: ":9091", Handler: mux}
			go func() {
				if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					w.log.WithError(err).Error("indexerd: metrics server failed")
				}
			}()

			go func() {
				if err := observer.Run(ctx); err != nil && ctx.Err() == nil {
					w.log.WithError(err).Error("indexerd: chain observer stopped")
				}
			}()

			go func() {
				if err := apiServer.Run(ctx); err != nil && ctx.Err() == nil {
					w.log.WithError(err).Error("indexerd: api server stopped")
				}
			}()

			w.log.Info("indexerd: serving")
			runServeLoop(ctx, w, runner)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
			return nil
		},
	}
}

// runServeLoop drives the indexing pipeline one height at a time, prefetching
// from the RPC collaborator and running each block to completion until ctx
// is cancelled. Up to PendingBlockThreshold prefetches may overlap with
// execution of the previous block (§5); this reference loop runs strictly
// serially, which is always a valid (if non-overlapping) schedule.
func runServeLoop(ctx context.Context, w *wiring, runner *indexing.Runner) {
	height, ok := w.store.Blocks().MaxBlockHeight()
	if ok {
		height++
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task := indexing.NewTask(height)
		w.registry.Track(task)

		if err := task.Prefetch(ctx, fetchBlock(w.rpc)); err != nil {
			w.registry.Untrack(task)
			if ctx.Err() != nil {
				return
			}
			w.log.WithError(err).WithField("height", height).Debug("indexerd: prefetch not yet available")
			time.Sleep(time.Second)
			continue
		}

		if err := runner.Run(ctx, task, time.Now().UnixMilli(), nil, 0); err != nil {
			w.registry.Untrack(task)
			if task.State() == indexing.StateFinalizing {
				// Finalize committed the block; only the hook notification failed.
				w.log.WithError(err).WithField("height", height).Warn("indexerd: hook notification failed")
				height++
				continue
			}
			w.metrics.BlocksReverted.Inc()
			w.log.WithError(err).WithField("height", height).Warn("indexerd: block processing failed")
			continue
		}
		w.registry.Untrack(task)
		height++
	}
}

func reindexCmd() *cobra.Command {
	var fromHeight, toHeight uint64
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "replay a height range through the indexing pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			w, err := newWiring(env)
			if err != nil {
				return err
			}
			defer w.close()

			ctx := context.Background()
			runner := indexing.NewRunner(w.processor, nil)
			for h := fromHeight; h <= toHeight; h++ {
				task := indexing.NewTask(h)
				if err := task.Prefetch(ctx, fetchBlock(w.rpc)); err != nil {
					return fmt.Errorf("prefetch height %d: %w", h, err)
				}
				if err := runner.Run(ctx, task, time.Now().UnixMilli(), nil, 0); err != nil {
					return fmt.Errorf("process height %d: %w", h, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&fromHeight, "from", 0, "first height to reindex")
	cmd.Flags().Uint64Var(&toHeight, "to", 0, "last height to reindex (inclusive)")
	return cmd
}

func rollbackCmd() *cobra.Command {
	var toHeight uint64
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "force a manual rewind of persisted state to the given height",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			w, err := newWiring(env)
			if err != nil {
				return err
			}
			defer w.close()

			b := w.store.NewBatch()
			b.DeleteFrom(toHeight + 1)
			if err := w.store.Commit(b); err != nil {
				return fmt.Errorf("rollback to height %d: %w", toHeight, err)
			}
			w.log.WithField("height", toHeight).Info("indexerd: manual rollback complete")
			return nil
		},
	}
	cmd.Flags().Uint64Var(&toHeight, "to", 0, "height to roll back to (inclusive)")
	return cmd
}
