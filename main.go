package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/config"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/notify"
	"github.com/mbolis/quick-forms/ratelimit"
	"github.com/mbolis/quick-forms/routes"
	"github.com/mbolis/quick-forms/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal("main.config: ", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.LogJSON {
		log.SetJSON()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open: ", err)
	}
	defer db.Close()

	counters, err := counterStore(ctx, cfg)
	if err != nil {
		log.Fatal("main.redis: ", err)
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.AMQPUrl != "" {
		amqp, err := notify.Dial(cfg.AMQPUrl, cfg.AMQPQueue)
		if err != nil {
			log.Fatal("main.amqp: ", err)
		}
		defer amqp.Close()
		publisher = amqp
		log.WithField("queue", cfg.AMQPQueue).Info("publishing submission notifications")
	}

	app := app.New(cfg, db, counters, publisher)
	go pruneTokens(ctx, app.Tokens)

	err = runServer(ctx, cfg, routes.Wire(app))
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server: ", err)
	}
}

// counterStore shares rate limit counters through redis when configured,
// otherwise they live in this process.
func counterStore(ctx context.Context, cfg config.Config) (ratelimit.CounterStore, error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryStore(), nil
	}

	client, err := ratelimit.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	ttl := cfg.SignInLimit.Window
	for _, p := range []config.Policy{cfg.SignUpLimit, cfg.SubmitLimit} {
		if p.Window > ttl {
			ttl = p.Window
		}
	}
	log.Info("rate limit counters shared through redis")
	return ratelimit.NewRedisStore(client, ttl), nil
}

func pruneTokens(ctx context.Context, tokens *store.TokenStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		n, err := tokens.PruneExpired(ctx, time.Now())
		if err != nil {
			log.WithError(err).Warn("main.prune_tokens")
		} else if n > 0 {
			log.Debugf("pruned %d expired refresh tokens", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main.shutdown")
		}
	}()

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
