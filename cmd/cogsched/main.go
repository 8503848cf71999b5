package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"cogsched/internal/attention"
	"cogsched/internal/config"
	"cogsched/internal/logging"
	"cogsched/internal/sim"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cogsched",
	Short: "cogsched - attention-weighted scheduler diagnostics",
	Long: `cogsched is the diagnostics and simulation front end for the
attention allocator: an admission/selection layer that augments a host
priority scheduler with feature-vector scoring and bucketed FIFO queues.

The allocator itself is a library; this CLI exists to tune, score and
stress it without a host kernel attached.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return logging.Initialize(workspace, cfg.Logging.DebugMode || verbose,
			cfg.Logging.Level, cfg.Logging.Categories)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// simulateCmd drives a synthetic workload through the allocator
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic workload and print the selection trace",
	Long: `Registers N synthetic processes, drives concurrent admit/refresh/select
workers over a fixed tick range with seeded random runtime stats, and
prints the selection trace, aggregate counters and the final state dump.

With --watch, the config file is watched while the run executes and
weight changes are applied to the live allocator.`,
	RunE: runSimulate,
}

var (
	simProcs   int
	simTicks   int
	simWorkers int
	simSeed    int64
	simWatch   bool
)

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	s, err := sim.New(cfg.Scheduler.Params(), sim.Options{
		NumProcs: simProcs,
		Ticks:    simTicks,
		Workers:  simWorkers,
		Seed:     simSeed,
	})
	if err != nil {
		return err
	}
	logger.Info("simulation starting",
		zap.String("run_id", s.RunID()),
		zap.Int("procs", simProcs),
		zap.Int("ticks", simTicks))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if simWatch {
		watcher, err := config.NewWatcher(configPath, func(next config.Config) {
			s.Allocator().SetWeights(next.Scheduler.Params().Weights)
			logger.Info("weights retuned from config file")
		})
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	res, err := s.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Print(res.String())
	fmt.Print(res.FinalDump)
	return nil
}

// scoreCmd scores one feature vector against the configured weights
var scoreCmd = &cobra.Command{
	Use:   "score [load memory io interactive realtime network priority emergent]",
	Short: "Compute the attention score for an 8-value feature vector",
	Args:  cobra.ExactArgs(attention.NumFeatures),
	RunE:  runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	params := cfg.Scheduler.Params()

	var v attention.Vector
	for i, arg := range args {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("feature %s: %w", attention.FeatureKind(i), err)
		}
		v[i] = f
	}
	v = v.Clamped()

	scorer := attention.Scorer{
		Weights:           params.Weights,
		EmergentThreshold: params.EmergentThreshold,
		EmergentBoost:     params.EmergentBoost,
	}
	score := scorer.Score(v)

	for i := 0; i < attention.NumFeatures; i++ {
		fmt.Printf("  %-12s %.3f x %.2f\n", attention.FeatureKind(i), v[i], params.Weights[i])
	}
	if v[attention.FeatureEmergent] > params.EmergentThreshold {
		fmt.Printf("  emergent boost x%.2f applied\n", params.EmergentBoost)
	}
	fmt.Printf("score: %.4f\n", score)
	return nil
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration after defaults, file and env merge",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cogsched.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory for debug logs")

	simulateCmd.Flags().IntVar(&simProcs, "procs", 8, "Synthetic processes to register")
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 100, "Host ticks to simulate")
	simulateCmd.Flags().IntVar(&simWorkers, "workers", 4, "Concurrent driver goroutines")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "Deterministic stat seed")
	simulateCmd.Flags().BoolVar(&simWatch, "watch", false, "Apply config weight changes to the live run")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
