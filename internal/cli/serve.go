package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/scibot/internal/ai"
	"github.com/example/scibot/internal/bot"
	"github.com/example/scibot/internal/scheduler"
	"github.com/example/scibot/internal/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, svc, err := a.openService()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []server.Option{server.WithLogger(a.logger), server.WithVersion(Version)}
	if a.cfg.OpenAI.APIKey != "" {
		evaluator, err := ai.NewEvaluator(a.cfg.OpenAI, ai.WithLogger(a.logger))
		if err != nil {
			return err
		}
		opts = append(opts, server.WithGrader(evaluator))
	} else {
		a.logger.Info("OPENAI_API_KEY not set, answer grading disabled")
	}

	var notifier *bot.Notifier
	if a.cfg.Telegram.Token != "" {
		if notifier, err = bot.New(a.cfg.Telegram.Token, bot.WithLogger(a.logger)); err != nil {
			return err
		}
	}

	if a.cfg.Scheduler.Enabled {
		if notifier == nil {
			a.logger.Warn("TELEGRAM_BOT_TOKEN not set, reminders disabled")
		} else {
			sched := scheduler.New(svc, notifier, a.cfg.Scheduler, scheduler.WithLogger(a.logger))
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()
		}
	}

	if notifier != nil && len(a.cfg.AdminIDs) > 0 {
		if err := notifier.Broadcast(ctx, a.cfg.AdminIDs, "scibot "+Version+" started"); err != nil {
			a.logger.Warn("failed to notify admins", "err", err)
		}
	}

	httpSrv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server.New(db, svc, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.Server.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
