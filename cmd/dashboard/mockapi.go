package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"helpdesk-dashboard/internal/app"
	"helpdesk-dashboard/internal/config"
	"helpdesk-dashboard/internal/mockapi"
	"helpdesk-dashboard/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func mockAPICmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Run an in-memory ticketing API for local development",
		Long: `mock-api serves the auth and resource endpoints the dashboard calls,
with seeded acme/admin, acme/agent and acme/viewer logins (password "password").`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.Mock.Addr = addr
			}

			logger, err := app.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			key, err := jwt.LoadOrGenerateKey(cfg.Mock.KeyPath)
			if err != nil {
				return err
			}
			if cfg.Mock.KeyPath == "" {
				logger.Warn("JWT_PRIVATE_KEY_PATH not set, signing with an ephemeral key")
			}

			gin.SetMode(gin.ReleaseMode)
			api, err := mockapi.New(mockapi.Config{
				Key:        key,
				Issuer:     cfg.Mock.Issuer,
				AccessTTL:  cfg.Mock.AccessTTL,
				RefreshTTL: cfg.Mock.RefreshTTL,
			}, logger)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.Mock.Addr,
				Handler:           api.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()

			logger.Info("mock api listening", zap.String("addr", cfg.Mock.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides MOCK_API_ADDR)")
	return cmd
}
