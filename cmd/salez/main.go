package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"salez/internal/common/auth"
	"salez/internal/common/logger"
	"salez/internal/config"
	"salez/internal/connections/database"
	"salez/internal/connections/rabbitmq"
	"salez/internal/domain"
	"salez/internal/microservices/notificator"
	"salez/internal/microservices/pos"
)

const modes = "pos-service | notification-subscriber | migrate | issue-token"

func main() {
	mode := flag.String("mode", "", modes)
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	port := flag.Int("port", 0, "pos-service: http port (overrides config)")
	store := flag.String("store", "", "pos-service: postgres | memory (overrides config)")
	subject := flag.String("subject", "", "issue-token: token subject")
	role := flag.String("role", string(domain.RoleCashier), "issue-token: CASHIER | CHEF | MANAGER")
	ttl := flag.Duration("ttl", 12*time.Hour, "issue-token: token lifetime")
	flag.Parse()

	lg := logger.New("bootstrap")

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": *cfgPath})
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *store != "" {
		cfg.Store.Driver = *store
	}
	if err := cfg.Validate(); err != nil {
		lg.Error("config_invalid", err, nil)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "pos-service":
		lg.Info("service_started", map[string]any{"service": "pos-service", "port": cfg.HTTP.Port, "store": cfg.Store.Driver})
		if err := pos.Run(ctx, cfg, logger.New("pos-service")); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "notification-subscriber":
		if cfg.RabbitMQ.Host == "" {
			fmt.Fprintln(os.Stderr, "rabbitmq.host is required for notification-subscriber")
			os.Exit(2)
		}
		lg.Info("service_started", map[string]any{"service": "notification-subscriber", "topic": cfg.RabbitMQ.NotificationTopic})
		if err := notificator.Run(ctx, cfg.RabbitMQ, logger.New("notification-subscriber")); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "migrate":
		if err := migrate(ctx, cfg, logger.New("migrate")); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "issue-token":
		r := domain.Role(strings.ToUpper(*role))
		if !r.Valid() || *subject == "" || cfg.Auth.JWTSecret == "" {
			fmt.Fprintln(os.Stderr, "issue-token needs --subject, a valid --role and auth.jwt_secret")
			os.Exit(2)
		}
		tok, err := auth.New(cfg.Auth.JWTSecret, false).Issue(*subject, r, *ttl)
		if err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
		fmt.Println(tok)
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}
}

// migrate applies the document schema and, when messaging is enabled, the
// AMQP topology.
func migrate(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	if cfg.Store.Driver == "postgres" {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		version, dirty, err := database.Migrate(ctx, db, lg)
		if err != nil {
			return err
		}
		lg.Info("schema_version", map[string]any{"version": version, "dirty": dirty})
	} else {
		lg.Info("schema_skipped", map[string]any{"store": cfg.Store.Driver})
	}

	if cfg.RabbitMQ.Enabled {
		client, err := rabbitmq.DialRetry(ctx, cfg.RabbitMQ, 10, 2*time.Second)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := rabbitmq.DeclareAll(client.Channel()); err != nil {
			return err
		}
		lg.Info("topology_declared", map[string]any{"host": cfg.RabbitMQ.Host})
	}
	return nil
}
