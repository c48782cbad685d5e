package pos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"salez/internal/common/auth"
	"salez/internal/common/httpx"
	"salez/internal/common/logger"
	"salez/internal/config"
	"salez/internal/connections/database"
	"salez/internal/connections/localstore"
	"salez/internal/connections/rabbitmq"
	"salez/internal/docstore"
	"salez/internal/microservices/pos/handlers"
	"salez/internal/microservices/pos/repository"
	"salez/internal/microservices/pos/service"
)

const eventSource = "pos-service"

// Run serves the POS API until ctx ends.
func Run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	local, err := localstore.Open(cfg.LocalStore.Path)
	if err != nil {
		return fmt.Errorf("open local store %s: %w", cfg.LocalStore.Path, err)
	}
	defer local.Close()

	var events service.Events
	if cfg.RabbitMQ.Enabled {
		client, err := rabbitmq.DialRetry(ctx, cfg.RabbitMQ, 10, 2*time.Second)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := rabbitmq.DeclareAll(client.Channel()); err != nil {
			return err
		}
		events = rabbitmq.NewEventPublisher(client, cfg.RabbitMQ.NotificationTopic, eventSource)
		lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host, "port": cfg.RabbitMQ.Port})
	}

	repo := repository.New(store, local, lg)
	svc := service.New(repo, events, loc, lg)
	h := handlers.New(svc, cfg.Store.CartID, lg)

	router := handlers.Router(h, auth.New(cfg.Auth.JWTSecret, cfg.Auth.Disabled), handlers.RouterConfig{
		MaxConcurrent: cfg.HTTP.MaxConcurrent,
		RatePerSec:    cfg.HTTP.RatePerSec,
		Burst:         cfg.HTTP.Burst,
	}, lg)

	srv := httpx.New(fmt.Sprintf(":%d", cfg.HTTP.Port), router)

	schedDone := make(chan struct{})
	if cfg.Closing.Schedule != "" {
		sched, err := service.NewScheduler(cfg.Closing.Schedule, loc, svc.ClosingService, lg)
		if err != nil {
			return err
		}
		go func() {
			defer close(schedDone)
			sched.Run(ctx)
		}()
	} else {
		close(schedDone)
	}

	lg.Info("http_listening", map[string]any{
		"port":     cfg.HTTP.Port,
		"store":    cfg.Store.Driver,
		"timezone": loc.String(),
		"schedule": cfg.Closing.Schedule,
	})
	err = srv.Run(ctx)
	<-schedDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	lg.Info("graceful_shutdown", nil)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, lg *logger.Logger) (docstore.Store, func(), error) {
	opts := []docstore.Option{docstore.WithMaxAttempts(cfg.Store.TxMaxAttempts)}
	switch cfg.Store.Driver {
	case "memory":
		m := docstore.NewMemory(opts...)
		return m, func() { _ = m.Close() }, nil
	case "postgres":
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if _, _, err := database.Migrate(ctx, db, lg); err != nil {
			return nil, nil, err
		}
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		pg := docstore.NewPostgres(pool, lg, opts...)
		return pg, func() {
			_ = pg.Close()
			pool.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
