package botapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivankudzin/tgdrop/internal/config"
	redisinfra "github.com/ivankudzin/tgdrop/internal/infra/redis"
	"github.com/ivankudzin/tgdrop/internal/infra/telegram"
	redrepo "github.com/ivankudzin/tgdrop/internal/repo/redis"
	"github.com/ivankudzin/tgdrop/internal/services/access"
	"github.com/ivankudzin/tgdrop/internal/services/expiry"
	"github.com/ivankudzin/tgdrop/internal/services/uploads"
	"github.com/ivankudzin/tgdrop/internal/transport/http/handlers"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	bot        *telegram.Bot
	dispatcher *telegram.Dispatcher
	server     *http.Server
	store      BundleStore
	redis      *goredis.Client
	timers     *expiry.TimerScheduler
	queue      *expiry.QueueScheduler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	bot, err := telegram.NewBot(cfg.Bot.Token, cfg.Bot.PollTimeoutSeconds, log)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	username := cfg.Bot.Username
	if username == "" {
		username = bot.Username()
	} else if self := bot.Username(); self != "" && self != username {
		log.Warn("configured bot username differs from the token's account",
			zap.String("configured", username),
			zap.String("actual", self))
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:    cfg,
		logger: log,
		bot:    bot,
		store:  store,
	}

	var scheduler expiry.Scheduler
	switch cfg.Expiry.Backend {
	case config.ExpiryRedis:
		client, err := redisinfra.NewClient(ctx, redisinfra.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init expiry queue: %w", err)
		}
		app.redis = client
		app.queue = expiry.NewQueueScheduler(redrepo.NewDeletionRepo(client, cfg.Redis.DeletionKey), bot, cfg.Expiry.PollInterval, log)
		scheduler = app.queue
	default:
		app.timers = expiry.NewTimerScheduler(bot, expiry.SystemClock(), log)
		scheduler = app.timers
	}

	uploadService := uploads.NewService(cfg.Bot.AdminID, store, uploads.NewSessionStore(), log)
	gate := access.NewGate(access.Config{
		AdminID:     cfg.Bot.AdminID,
		BotUsername: username,
		AdURL:       cfg.Bot.AdURL,
	}, store, log)

	router := NewRouter(RouterConfig{
		ChannelID:     cfg.Bot.ChannelID,
		BotUsername:   username,
		DeletionDelay: cfg.Expiry.Delay,
	}, uploadService, gate, store, scheduler, bot, log)

	app.dispatcher = telegram.NewDispatcher(router.Handlers(), cfg.Bot.MaxConcurrentUpdates, log)

	var webhook *handlers.WebhookHandler
	if cfg.Bot.Mode == config.ModeWebhook {
		dispatch := func(update tgbotapi.Update) {
			app.dispatcher.Dispatch(context.WithoutCancel(ctx), update)
		}
		webhook = handlers.NewWebhookHandler(bot.ParseWebhook, dispatch, cfg.Bot.WebhookSecret, log)
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)
	RegisterRoutes(r, Dependencies{
		Store:   store,
		Webhook: webhook,
		Logger:  log,
	})

	app.server = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return app, nil
}

// Run serves updates, the ops endpoints and the expiry queue until ctx is
// cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Bot.Mode == config.ModeWebhook {
		if err := a.bot.SetWebhook(a.cfg.Bot.WebhookURL, a.cfg.Bot.WebhookSecret); err != nil {
			a.shutdown()
			return fmt.Errorf("register webhook: %w", err)
		}
		a.logger.Info("webhook registered", zap.String("url", a.cfg.Bot.WebhookURL))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", a.cfg.HTTP.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.cfg.Bot.Mode != config.ModeWebhook {
		g.Go(func() error {
			return a.bot.Listen(gctx, a.dispatcher)
		})
	}

	if a.queue != nil {
		g.Go(func() error {
			return a.queue.Run(gctx)
		})
	}

	err := g.Wait()
	a.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) shutdown() {
	a.dispatcher.Wait()
	if a.timers != nil {
		a.timers.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close bundle store", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	a.logger.Info("bot stopped")
}
