// Package distlock provides distributed locks between processes, backed by etcd leases.
//
// A lock key is written to etcd bound to the session lease, so mutual exclusion
// holds across processes, and a lock of a crashed process is released
// automatically when the lease expires.
package distlock

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	etcd "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

type Provider struct {
	logger  log.Logger
	config  Config
	session *concurrency.Session
}

// NewProvider creates an etcd session whose lease backs all locks from this provider.
// Session creation is retried with a backoff until the ctx is done.
func NewProvider(ctx context.Context, config Config, logger log.Logger, client *etcd.Client) (p *Provider, err error) {
	logger = logger.WithComponent("distlock")
	startTime := time.Now()
	logger.Info(ctx, "creating etcd session")

	var session *concurrency.Session
	err = backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		session, err = concurrency.NewSession(client, concurrency.WithTTL(int(config.TTL.Seconds())))
		if err != nil {
			return err
		}

		// Connection check, wait for the first keep-alive
		if _, err := session.Client().KeepAliveOnce(ctx, session.Lease()); err != nil {
			_ = session.Close()
			return err
		}

		return nil
	}, backoff.WithContext(newSessionBackoff(), ctx))
	if err != nil {
		return nil, errors.Errorf("cannot create etcd session: %w", err)
	}

	logger.Infof(ctx, "created etcd session | %s", time.Since(startTime))
	return &Provider{logger: logger, config: config, session: session}, nil
}

// NewMutex creates a mutex backed by the provider session, the mutex is not locked.
func (p *Provider) NewMutex(name string) *Mutex {
	name = strings.Trim(name, "/")
	return &Mutex{
		logger: p.logger,
		name:   name,
		mtx:    concurrency.NewMutex(p.session, p.config.Prefix+name),
	}
}

// Orphan stops the lease keep-alive without revoking the lease.
// Locks backed by the session stay held until the lease expires,
// so the next lock attempt is serialized behind the lease TTL.
func (p *Provider) Orphan(ctx context.Context) {
	p.logger.Info(ctx, "orphaning etcd session, locks are held until the lease expires")
	p.session.Orphan()
}

// Close terminates the session, all locks backed by it are released.
func (p *Provider) Close(ctx context.Context) error {
	startTime := time.Now()
	p.logger.Info(ctx, "closing etcd session")
	if err := p.session.Close(); err != nil {
		return errors.Errorf("cannot close etcd session: %w", err)
	}
	p.logger.Infof(ctx, "closed etcd session | %s", time.Since(startTime))
	return nil
}

func newSessionBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0.2
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = time.Minute
	b.Reset()
	return b
}
