// Package client creates the shared HTTP client for the remote resource services.
package client

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

const (
	RequestTimeout        = 30 * time.Second
	HTTPTimeout           = 30 * time.Second
	IdleConnTimeout       = 30 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ResponseHeaderTimeout = 20 * time.Second
	ExpectContinueTimeout = 2 * time.Second
	KeepAlive             = 20 * time.Second
	MaxIdleConns          = 32
	RetryCount            = 5
	RetryWaitTime         = 100 * time.Millisecond
	RetryWaitTimeMax      = 3 * time.Second
)

// New creates a resty client with retries on transient failures.
// Retries live here, callers never retry themselves.
func New(logger log.Logger, baseURL string) *resty.Client {
	r := resty.New()
	r.SetLogger(&restyLogger{logger: logger})
	r.SetBaseURL(baseURL)
	r.SetHeader("User-Agent", "monitoring-config")
	r.SetTimeout(RequestTimeout)
	r.SetRetryCount(RetryCount)
	r.SetRetryWaitTime(RetryWaitTime)
	r.SetRetryMaxWaitTime(RetryWaitTimeMax)
	r.SetTransport(createTransport())
	r.AddRetryCondition(createRetry())
	r.OnAfterResponse(func(c *resty.Client, res *resty.Response) error {
		req := res.Request
		logger.Debugf(req.Context(), "%s %s | %d | %s", req.Method, req.URL, res.StatusCode(), res.Time())
		return nil
	})
	return r
}

// ResponseError converts an HTTP error response to an error value.
func ResponseError(res *resty.Response) error {
	req := res.Request
	return errors.Errorf(`%s %s | returned http code %d`, req.Method, req.URL, res.StatusCode())
}

// createRetry - retry on defined network and HTTP errors.
func createRetry() func(response *resty.Response, err error) bool {
	return func(response *resty.Response, err error) bool {
		// On network errors - except hostname not found
		if err != nil && (response == nil || response.StatusCode() == 0) {
			return !strings.Contains(err.Error(), "No address associated with hostname")
		}

		// On HTTP status codes
		switch response.StatusCode() {
		case
			http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
}

// createTransport with custom timeouts.
func createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   HTTPTimeout,
		KeepAlive: KeepAlive,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          MaxIdleConns,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: ResponseHeaderTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
		MaxIdleConnsPerHost:   MaxIdleConns,
	}
}

// restyLogger adapts the project logger to the resty.Logger interface.
type restyLogger struct {
	logger log.Logger
}

func (l *restyLogger) Errorf(format string, v ...any) {
	l.logger.Errorf(context.Background(), format, v...)
}

func (l *restyLogger) Warnf(format string, v ...any) {
	l.logger.Warnf(context.Background(), format, v...)
}

func (l *restyLogger) Debugf(format string, v ...any) {
	l.logger.Debugf(context.Background(), format, v...)
}
