package notificator

import (
	"context"
	"time"

	"salez/internal/common/logger"
	"salez/internal/config"
	"salez/internal/connections/rabbitmq"
	"salez/internal/microservices/notificator/service"
)

// Run consumes the notifications queue until ctx ends.
func Run(ctx context.Context, cfg config.RabbitMQConfig, lg *logger.Logger) error {
	client, err := rabbitmq.DialRetry(ctx, cfg, 10, 2*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := rabbitmq.DeclareAll(client.Channel()); err != nil {
		return err
	}
	svc := service.New(client.Channel(), cfg.NotificationTopic, cfg.Prefetch, lg)
	return svc.NotificatorService.Notify(ctx)
}
