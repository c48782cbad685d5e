package service

import "salez/internal/common/logger"

type Service struct {
	NotificatorService NotificatorServiceInterface
}

func New(ch Channel, topic string, prefetch int, lg *logger.Logger) *Service {
	return &Service{NotificatorService: NewNotificatorService(ch, NewLogSink(lg), topic, prefetch, lg)}
}
