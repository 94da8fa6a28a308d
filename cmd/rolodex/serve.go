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

	"github.com/markusylisiurunen/rolodex/internal/config"
	"github.com/markusylisiurunen/rolodex/internal/telegram"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (c *cli) pollCommand() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run the Telegram bot with long polling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := c.cfg.Require(config.PartTelegram, config.PartLLM, config.PartSheet); err != nil {
				return err
			}
			client, err := c.app.Telegram()
			if err != nil {
				return err
			}
			bot, err := c.app.Bot(ctx)
			if err != nil {
				return err
			}
			// getUpdates is refused while a webhook is registered
			if err := client.DeleteWebhook(ctx, false); err != nil {
				return fmt.Errorf("error removing webhook: %w", err)
			}
			poller := telegram.NewPoller(client, bot, telegram.WithPollerLogger(c.log))
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return poller.Run(gctx) })
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", c.app.Metrics.Handler())
				c.serveHTTP(gctx, g, metricsAddr, mux)
			}
			err = g.Wait()
			c.log.Info("waiting for in-flight messages")
			bot.Wait()
			return err
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "also expose /metrics on this address")
	return cmd
}

func (c *cli) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot behind a webhook endpoint",
		Long: `serve receives updates on POST /webhook and also exposes GET /healthz and GET /metrics.
Register the public URL with "rolodex webhook set <url>/webhook".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := c.cfg.Require(config.PartTelegram, config.PartLLM, config.PartSheet); err != nil {
				return err
			}
			bot, err := c.app.Bot(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = c.cfg.ListenAddr
			}
			if c.cfg.WebhookSecret == "" {
				c.log.Warn("WEBHOOK_SECRET is not set, webhook deliveries are not authenticated")
			}
			webhook := telegram.NewWebhook(context.WithoutCancel(ctx), bot,
				telegram.WithSecret(c.cfg.WebhookSecret),
				telegram.WithWebhookMetrics(c.app.Metrics),
				telegram.WithWebhookLogger(c.log),
			)
			g, gctx := errgroup.WithContext(ctx)
			c.serveHTTP(gctx, g, addr, webhook.Routes())
			err = g.Wait()
			c.log.Info("waiting for in-flight messages")
			bot.Wait()
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default LISTEN_ADDR)")
	return cmd
}

// serveHTTP runs handler on addr inside g and shuts it down once ctx is done.
func (c *cli) serveHTTP(ctx context.Context, g *errgroup.Group, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		c.log.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error serving on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
