package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/everstory-ai/everstory/pkg/cli/config"
	httpctrl "github.com/everstory-ai/everstory/pkg/controller/http"
	"github.com/everstory-ai/everstory/pkg/repository/firestore"
	"github.com/everstory-ai/everstory/pkg/service/queue"
	"github.com/everstory-ai/everstory/pkg/service/session"
	"github.com/everstory-ai/everstory/pkg/usecase"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var sentryDSN string
	var costPerMinuteCents int
	var queueWorkers int
	var repoCfg config.Repository
	var sessionCfg config.Session
	var geminiCfg config.Gemini
	var voiceCfg config.Voice
	var webhookCfg config.Webhook

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("EVERSTORY_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for error reporting (empty disables it)",
			Sources:     cli.EnvVars("EVERSTORY_SENTRY_DSN"),
			Destination: &sentryDSN,
		},
		&cli.IntFlag{
			Name:        "cost-per-minute-cents",
			Usage:       "Billing rate per started call minute",
			Value:       usecase.DefaultCostPerMinuteCents,
			Sources:     cli.EnvVars("EVERSTORY_COST_PER_MINUTE_CENTS"),
			Destination: &costPerMinuteCents,
		},
		&cli.IntFlag{
			Name:        "queue-workers",
			Usage:       "Number of background job workers",
			Value:       4,
			Sources:     cli.EnvVars("EVERSTORY_QUEUE_WORKERS"),
			Destination: &queueWorkers,
		},
	}

	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, sessionCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, voiceCfg.Flags()...)
	flags = append(flags, webhookCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the webhook server and job workers",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if sentryDSN != "" {
				if err := sentry.Init(sentry.ClientOptions{Dsn: sentryDSN}); err != nil {
					return goerr.Wrap(err, "failed to initialize sentry")
				}
				defer sentry.Flush(2 * time.Second)
				logging.Default().Info("Sentry error reporting enabled")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			// The firestore session backend shares the repository's client
			var fsRepo *firestore.Firestore
			if r, ok := repo.(*firestore.Firestore); ok {
				fsRepo = r
			}
			var sessions *session.Store
			if fsRepo != nil {
				sessions, err = sessionCfg.Configure(fsRepo.Client())
			} else {
				sessions, err = sessionCfg.Configure(nil)
			}
			if err != nil {
				return goerr.Wrap(err, "failed to initialize session store")
			}

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize LLM client")
			}

			q := queue.New(queue.WithWorkers(queueWorkers))

			ucOpts := []usecase.Option{
				usecase.WithCostPerMinuteCents(costPerMinuteCents),
			}

			speechClient, err := voiceCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize voice client")
			}
			if speechClient != nil {
				ucOpts = append(ucOpts, usecase.WithSpeechSynthesizer(speechClient))
			}

			uc := usecase.New(repo, sessions, q, llmClient, ucOpts...)
			uc.RegisterJobHandlers(q)

			if err := q.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start job queue")
			}
			defer q.Stop()

			httpOpts := []httpctrl.Options{}
			if secret := webhookCfg.VoiceAISecret(); secret != "" {
				httpOpts = append(httpOpts, httpctrl.WithVoiceAISecret(secret))
				logging.Default().Info("Voice-AI webhook signature verification enabled")
			} else {
				logging.Default().Warn("Voice-AI webhook signature verification disabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("HTTP server starting", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "HTTP server failed")
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Shutting down", "signal", sig.String())
			case <-ctx.Done():
				logging.Default().Info("Shutting down", "reason", "context canceled")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shut down HTTP server")
			}

			return nil
		},
	}
}
