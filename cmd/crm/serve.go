package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/acksell/crm/customers"
	"github.com/acksell/crm/httpapi"
	"github.com/acksell/crm/metrics"
	"github.com/acksell/crm/notes"
)

var (
	serveAddr   string
	serveDriver string
	serveDBPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. By default the table lives in memory; use
--store badger --db ./data to keep data on disk, or --store dynamodb to run
against the real table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("store") {
			cfg.Store.Driver = serveDriver
		}
		if cmd.Flags().Changed("db") {
			cfg.Store.Path = serveDBPath
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return err
	}
	table, closer, err := openTable(cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	objects, err := newObjectStore(cfg, awsCfg)
	if err != nil {
		return err
	}
	publisher := newPublisher(cfg, awsCfg, logger)
	rec := metrics.New()

	cs := customers.New(table,
		customers.WithLogger(logger),
		customers.WithPublisher(publisher),
		customers.WithMetrics(rec),
		customers.WithCascadeConcurrency(cfg.Store.CascadeConcurrency),
	)
	ns := notes.New(table, objects,
		notes.WithLogger(logger),
		notes.WithPublisher(publisher),
		notes.WithMetrics(rec),
		notes.WithVerifyObjects(cfg.Storage.VerifyObjects),
	)

	gin.SetMode(gin.ReleaseMode)
	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            cfg.Server.Addr,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, cs, ns, rec, logger)

	logger.Info("starting crm",
		slog.String("store", cfg.Store.Driver),
		slog.String("table", cfg.Store.Table),
		slog.String("bucket", cfg.Storage.Bucket))
	return srv.Run(ctx)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveDriver, "store", "memory", "store driver: memory, badger or dynamodb")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "badger data directory")
	rootCmd.AddCommand(serveCmd)
}
