package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tugmath"
	"tugmath/internal/config"
	"tugmath/internal/game"
	"tugmath/internal/game/tugofwar"
	"tugmath/internal/match"
	"tugmath/internal/question"
	"tugmath/internal/server"
	"tugmath/internal/session"
	"tugmath/internal/simulate"
	"tugmath/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tugmath",
		Short:        "Two-player arithmetic tug of war",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newSimulateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	v := config.New()
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	f.String("addr", ":8080", "listen address")
	f.String("db", ":memory:", "SQLite database path")
	f.Duration("tick", time.Second, "length of one match second")
	f.Duration("feedback", time.Second, "how long answer feedback stays visible")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.Bool("log-dev", false, "human-readable development logging")
	f.String("web-dir", "", "serve static files from this directory instead of the embedded assets")
	bindFlags(v, cmd, map[string]string{
		"addr":            "addr",
		"db_path":         "db",
		"tick_interval":   "tick",
		"feedback_window": "feedback",
		"log_level":       "log-level",
		"log_dev":         "log-dev",
		"web_dir":         "web-dir",
	})
	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	registry := game.NewRegistry()
	registry.Register(tugofwar.TugOfWar{FeedbackWindow: cfg.FeedbackWindow})

	mgr := session.NewManager(registry, store,
		session.WithTickInterval(cfg.TickInterval),
		session.WithLogger(logger),
	)
	defer mgr.Close()

	go mgr.CleanupLoop(ctx, cfg.CleanupInterval, cfg.SessionMaxAge)

	webFS, err := staticFiles(cfg.WebDir)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(registry, mgr, webFS, logger),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBPath))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func staticFiles(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(tugmath.WebFS, "web")
	if err != nil {
		return nil, fmt.Errorf("embedded web assets: %w", err)
	}
	return sub, nil
}

func newSimulateCmd() *cobra.Command {
	var (
		seed       uint64
		accuracy   [2]float64
		names      [2]string
		ops        []string
		maxResult  int
		timeLimit  int
		visualMode string
		maxSeconds int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a headless match between two scripted players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := match.Config{
				Player1Name:      names[0],
				Player2Name:      names[1],
				MaxResult:        maxResult,
				TimeLimitSeconds: timeLimit,
			}
			for _, s := range ops {
				op, err := question.ParseOperator(s)
				if err != nil {
					return err
				}
				cfg.Operations = append(cfg.Operations, op)
			}
			mode, err := question.ParseVisualMode(visualMode)
			if err != nil {
				return err
			}
			cfg.VisualMode = mode
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.MaxResult > match.MaxTypedAnswer {
				return fmt.Errorf("max-result %d: answers above %d cannot be typed", cfg.MaxResult, match.MaxTypedAnswer)
			}
			for i, a := range accuracy {
				if a < 0 || a > 1 {
					return fmt.Errorf("player %d accuracy must be between 0 and 1, got %v", i+1, a)
				}
			}

			res := simulate.Run(simulate.Options{
				Seed:       seed,
				Config:     cfg,
				Bots:       [2]simulate.Bot{{Accuracy: accuracy[0]}, {Accuracy: accuracy[1]}},
				MaxSeconds: maxSeconds,
			})
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			headline := res.Headline
			if headline == "" {
				headline = "No winner"
			}
			fmt.Fprintf(out, "%s rope=%d after %ds\n", headline, res.Rope, res.Seconds)
			for i, t := range res.Tallies {
				fmt.Fprintf(out, "  %s: %d correct, %d incorrect\n", names[i], t.Correct, t.Incorrect)
			}
			return nil
		},
	}

	defaults := match.DefaultConfig()
	f := cmd.Flags()
	f.Uint64Var(&seed, "seed", uint64(time.Now().UnixNano()), "question and bot seed")
	f.Float64Var(&accuracy[0], "p1-accuracy", 0.8, "player 1 answer accuracy (0-1)")
	f.Float64Var(&accuracy[1], "p2-accuracy", 0.8, "player 2 answer accuracy (0-1)")
	f.StringVar(&names[0], "p1-name", defaults.Player1Name, "player 1 name")
	f.StringVar(&names[1], "p2-name", defaults.Player2Name, "player 2 name")
	f.StringSliceVar(&ops, "ops", []string{"+"}, "operators to draw from (+, -, x, /)")
	f.IntVar(&maxResult, "max-result", defaults.MaxResult, "largest answer")
	f.IntVar(&timeLimit, "time-limit", defaults.TimeLimitSeconds, "match length in seconds, 0 for none")
	f.StringVar(&visualMode, "visual-mode", string(defaults.VisualMode), "numbers, mixed or objects")
	f.IntVar(&maxSeconds, "max-seconds", simulate.DefaultMaxSeconds, "cap for matches without a time limit")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
