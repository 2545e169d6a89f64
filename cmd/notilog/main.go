// Command notilog runs the durable record store service.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"notilog/internal/config"
	"notilog/internal/logging"
	"notilog/internal/server"
	"notilog/internal/service"
	"notilog/internal/store"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // allow all levels; filtering done by ComponentFilterHandler
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "notilog",
		Short: "Durable record store service",
	}

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the notilog service",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data")
			addr, _ := cmd.Flags().GetString("addr")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, logger, configPath, dataDir, addr)
		},
	}
	serverCmd.Flags().String("config", "", "config file path (optional)")
	serverCmd.Flags().String("data", "", "store directory (overrides config)")
	serverCmd.Flags().String("addr", "", "listen address (overrides config)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(serverCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dataDir, addr string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if addr != "" {
		cfg.Addr = addr
	}

	st, err := store.Open(store.Config{
		Dir:             cfg.DataDir,
		SegmentMaxBytes: cfg.SegmentMaxBytes,
		Compression:     cfg.Compression,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close failed", "error", err)
		}
	}()

	svc := service.New(service.Config{
		Store:        st,
		MaxDataBytes: cfg.MaxDataBytes,
		Logger:       logger,
	})

	srv := server.New(svc, server.Config{
		Addr:       cfg.Addr,
		WriteRPS:   cfg.WriteRPS,
		WriteBurst: cfg.WriteBurst,
		Logger:     logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	logger.Info("notilog started", "version", version, "data", cfg.DataDir, "addr", cfg.Addr)
	return g.Wait()
}
