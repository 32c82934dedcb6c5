package transport

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	Protocol ProtocolType
	Timeout  time.Duration
	Retries  int
	Logger   *zap.SugaredLogger
}

func NewTransport(config Config) (Transport, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	switch config.Protocol {
	case HTTP1, "":
		return NewHTTP1Transport(config.Timeout, config.Retries, config.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", config.Protocol)
	}
}
