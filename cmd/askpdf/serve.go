package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/askpdf/internal/api"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Address()
			}

			logger, err := newLogger(cfg.Log.Development)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync()

			if err := cfg.Validate(); err != nil {
				logger.Error("Invalid configuration", zap.Error(err))
				return err
			}

			if !cfg.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			router := api.SetupRouter(a.ingest, a.orchestrator, api.RouterConfig{
				APIKey:          cfg.Server.APIKey,
				AllowOrigins:    cfg.Server.AllowOrigins,
				MaxUploadBytes:  cfg.Upload.MaxFileBytes,
				MaxRequestBytes: cfg.Upload.MaxRequestBytes,
				Logger:          logger.Named("http"),
				Metrics:         a.metrics.Handler(),
			})

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       cfg.Server.ReadTimeout,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting askpdf server",
					zap.String("address", addr),
					zap.String("llm_model", cfg.LLM.Model),
					zap.String("embedding_model", cfg.Embedding.Model),
					zap.String("history_backend", cfg.History.Backend),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("Server failed", zap.Error(err))
					return err
				}
			case <-quit:
			}

			logger.Info("Shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}
			logger.Info("Server exited")
			return nil
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.host and server.port)")
	return serve
}
