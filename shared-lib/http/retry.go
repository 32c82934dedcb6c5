package http

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 3 * time.Second
)

// NewRetryClient returns a client that retries idempotent requests on
// connection errors and 5xx replies.
func NewRetryClient(retries int, timeout time.Duration, log *zap.SugaredLogger) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = DefaultRetryWaitMin
	retryClient.RetryWaitMax = DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil
	if log != nil {
		retryClient.Logger = leveledLogger{log}
	}
	return retryClient
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warnw(msg, keysAndValues...)
}
