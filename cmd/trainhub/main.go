package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	trainhub "github.com/hyqf98/trainhub"
	"github.com/hyqf98/trainhub/cli"
	"github.com/hyqf98/trainhub/manager"
	"github.com/hyqf98/trainhub/manager/api"
	"github.com/hyqf98/trainhub/manager/metrics"
	"github.com/hyqf98/trainhub/pkg/envs"
	"github.com/hyqf98/trainhub/pkg/remote"
	"github.com/hyqf98/trainhub/pkg/template"
	"github.com/hyqf98/trainhub/task"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	httpAddr   string
	logLevel   slog.Level
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trainhub",
		Short: "Training task manager for ML datasets",
		Long:  `trainhub runs model training tasks locally or on remote servers over SSH.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			addr := httpAddr
			if addr == "" {
				cfg, err := trainhub.LoadConfig(configPath)
				if err == nil {
					addr = cfg.Server.HTTPAddr
				} else {
					addr = trainhub.DefaultConfig().Server.HTTPAddr
				}
			}
			cli.SetClient(cli.NewClient("http://" + addr))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "addr", "a", "", "Manager HTTP address (overrides config)")

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the manager daemon",
		Long:  ``,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run()
		},
	}

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(cli.NewTasksCmd())
	rootCmd.AddCommand(cli.NewServersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := trainhub.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}

	logger := configureLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	logger.Info("Starting trainhub manager",
		slog.String("addr", cfg.Server.HTTPAddr),
		slog.String("tasks_file", cfg.Store.TasksFile))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	tasks := task.NewStore(cfg.Store.TasksFile, logger)
	servers := remote.NewStore(cfg.Store.ServersFile, logger)
	metrics.RegisterTaskStatuses(tasks)

	svc := manager.NewService(
		tasks,
		servers,
		remote.NewDialer(logger),
		envs.NewCondaProber(logger),
		template.NewProvider(),
		manager.NewExecLauncher(logger),
		manager.NewCommandBuilder(),
		logger,
	)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: api.MakeHandler(svc, servers),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP API listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func configureLogger(level string) *slog.Logger {
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("Invalid log level: %s. Defaulting to info.\n", level)
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(logHandler)
}
