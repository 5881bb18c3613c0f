package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/univoxai/univox/internal/config"
	"github.com/univoxai/univox/internal/deploy"
	"github.com/univoxai/univox/internal/dispatch"
	"github.com/univoxai/univox/internal/genai"
	"github.com/univoxai/univox/internal/logger"
	"github.com/univoxai/univox/internal/server"
	"github.com/univoxai/univox/internal/session"
	"github.com/univoxai/univox/internal/telegram"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideGenAIClient,
			provideModelChain,
			provideSessionStore,
			provideBot,
			provideRedeployer,
			provideDispatcher,
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startServer,
			startBot,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideGenAIClient(log *slog.Logger, cfg config.Config) *genai.Client {
	timeout := time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second
	return genai.NewClient(log, cfg.Gemini.APIKey, timeout)
}

func provideModelChain(log *slog.Logger, client *genai.Client, cfg config.Config) (*dispatch.ModelChain, error) {
	return dispatch.NewModelChain(log, client, cfg.Gemini.Models)
}

func provideSessionStore(log *slog.Logger, chain *dispatch.ModelChain, cfg config.Config) *session.Store {
	ttl := time.Duration(cfg.Session.IdleTTLMinutes) * time.Minute
	openConv := func() session.Conversation {
		return dispatch.NewConversation(chain, genai.GoogleSearch)
	}
	return session.NewStore(log, openConv, ttl)
}

func provideBot(log *slog.Logger, cfg config.Config) (*telegram.Bot, error) {
	timeout := time.Duration(cfg.Telegram.DownloadSecs) * time.Second
	bot, err := telegram.New(log, cfg.Telegram.BotToken, timeout)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return bot, nil
}

func provideRedeployer(log *slog.Logger, cfg config.Config) dispatch.Redeployer {
	hook := deploy.New(log, cfg.Operator.RedeployURL, 30*time.Second)
	if hook == nil {
		return nil
	}
	return hook
}

func provideDispatcher(log *slog.Logger, store *session.Store, chain *dispatch.ModelChain, bot *telegram.Bot, redeployer dispatch.Redeployer, cfg config.Config) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(log, store, chain, bot, redeployer, cfg.Operator.AdminID)
}

func provideServer(log *slog.Logger, cfg config.Config) *server.Server {
	return server.New(log, cfg.Server.Addr)
}

func startSweeper(lc fx.Lifecycle, log *slog.Logger, store *session.Store, cfg config.Config) error {
	if cfg.Session.IdleTTLMinutes <= 0 {
		return nil
	}
	sweeper, err := session.NewSweeper(log, store, cfg.Session.SweepInterval)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { sweeper.Start(); return nil },
		OnStop: func(context.Context) error {
			// Stop's context completes once any in-flight sweep returns.
			<-sweeper.Stop().Done()
			return nil
		},
	})
	return nil
}

// startServer brings the liveness endpoint up before polling begins so the
// external monitor sees the process as live immediately.
func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func startBot(lc fx.Lifecycle, log *slog.Logger, bot *telegram.Bot, dispatcher *dispatch.Dispatcher, chain *dispatch.ModelChain) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := bot.DeleteWebhook(true); err != nil {
				log.Warn("delete webhook failed", slog.Any("error", err))
			}
			log.Info("bot starting",
				slog.String("username", bot.Username()),
				slog.String("model", chain.Primary()),
			)
			go bot.Run(ctx, dispatcher)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
