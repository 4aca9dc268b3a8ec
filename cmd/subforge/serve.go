package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/John-Robertt/subforge/internal/auth"
	"github.com/John-Robertt/subforge/internal/fetch"
	"github.com/John-Robertt/subforge/internal/httpapi"
	"github.com/John-Robertt/subforge/internal/store"
	"github.com/John-Robertt/subforge/internal/synth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) fetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:      a.cfg.Fetch.Timeout,
		MaxBytes:     a.cfg.Fetch.MaxBytes,
		MaxRedirects: a.cfg.Fetch.MaxRedirects,
	}
}

func (a *app) handler() http.Handler {
	cfg := a.cfg
	metrics := httpapi.NewMetrics()
	engine := &synth.Engine{
		Fetcher: &fetch.SoftFetcher{
			Options: a.fetchOptions(),
			Logger:  a.log,
			OnError: metrics.ObserveFetchError,
		},
		Logger:              a.log,
		RewriteGroupMembers: cfg.Synthesis.RewriteGroups(),
	}

	admin := httpapi.AdminOptions{Username: cfg.Admin.Username}
	if cfg.Admin.Enabled() {
		admin.Password = cfg.Admin.Password
		admin.Signer = &auth.Signer{Secret: []byte(cfg.Admin.SessionSecret), TTL: cfg.Admin.SessionTTL}
	}

	return httpapi.NewHandler(httpapi.Options{
		Store:              store.NewFileStore(cfg.Storage.Dir),
		Engine:             engine,
		Logger:             a.log,
		Metrics:            metrics,
		SynthesisTimeout:   cfg.Synthesis.Timeout,
		DefaultUserAgent:   cfg.Fetch.UserAgent,
		NamingTemplate:     cfg.Synthesis.NamingTemplate,
		LegacyServerSuffix: cfg.Synthesis.LegacyServerSuffix,
		CustomProperties:   cfg.Synthesis.CustomProperties,
		Admin:              admin,
	})
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg := a.cfg
	log := a.log

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           a.handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	log.Info("listening",
		zap.String("addr", "http://"+cfg.Server.Listen),
		zap.String("storage", cfg.Storage.Dir),
		zap.Bool("admin", cfg.Admin.Enabled()))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Warn("graceful shutdown failed", zap.Error(err))
			_ = srv.Close()
		}

		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
